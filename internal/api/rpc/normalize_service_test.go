package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nav1203/plan-parser/internal/classify"
)

func gridOracle() *classify.MockOracle {
	return &classify.MockOracle{Mapping: &classify.Mapping{Columns: []classify.ColumnMapping{
		{ColumnName: "Order No.", Role: classify.RoleIdentifier, Field: "order_number", Confidence: 0.98},
		{ColumnName: "Style", Role: classify.RoleIdentifier, Field: "style", Confidence: 0.95},
		{ColumnName: "Qty", Role: classify.RoleQuantity, Field: "order_quantity", Confidence: 0.95},
		{ColumnName: "Cutting Date", Role: classify.RoleStageDate, Stage: "cutting", DateType: classify.DatePlanned, Confidence: 0.9},
	}}}
}

func gridRows() [][]string {
	return [][]string{
		{"Order No.", "Style", "Qty", "Cutting Date"},
		{"PO-1", "STY-A", "100", "05/03/2025"},
		{"PO-2", "STY-B", "200", "06/03/2025"},
	}
}

func TestNormalizeService_Normalize(t *testing.T) {
	svc := NewNormalizeService(nil, gridOracle(), Config{})

	resp, err := svc.Normalize(context.Background(), connect.NewRequest(&NormalizeRequest{Rows: gridRows()}))
	require.NoError(t, err)

	msg := resp.Msg
	assert.Equal(t, []string{"Order No.", "Style", "Qty", "Cutting Date"}, msg.Columns)
	assert.Equal(t, 1, msg.HeaderRowCount)
	require.NotNil(t, msg.Mapping)
	require.Len(t, msg.Records, 2)
	assert.Equal(t, "PO-1", msg.Records[0].OrderNumber)
	assert.Equal(t, 100, msg.Records[0].Quantity)
	require.NotNil(t, msg.Records[0].Dates)
	require.NotNil(t, msg.Records[0].Dates.Cutting)
	assert.Equal(t, "05/03/2025", *msg.Records[0].Dates.Cutting)
	assert.Nil(t, msg.Records[0].Source, "normalization does not attribute a workbook source")
}

func TestNormalizeService_EmptyRows(t *testing.T) {
	svc := NewNormalizeService(nil, gridOracle(), Config{})

	_, err := svc.Normalize(context.Background(), connect.NewRequest(&NormalizeRequest{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestNormalizeService_BadThreshold(t *testing.T) {
	svc := NewNormalizeService(nil, gridOracle(), Config{})

	_, err := svc.Normalize(context.Background(), connect.NewRequest(&NormalizeRequest{
		Rows:            gridRows(),
		HeaderThreshold: 1.5,
	}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestNormalizeService_OracleFailure(t *testing.T) {
	oracle := &classify.MockOracle{Err: &classify.SchemaError{Msg: "unknown role"}}
	svc := NewNormalizeService(nil, oracle, Config{})

	_, err := svc.Normalize(context.Background(), connect.NewRequest(&NormalizeRequest{Rows: gridRows()}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
}

func TestNormalizeService_ExplicitGroupColumns(t *testing.T) {
	rows := [][]string{
		{"Order No.", "Style", "Qty", "Cutting Date"},
		{"PO-1", "STY-A", "100", "05/03/2025"},
		{"PO-2", "", "200", "06/03/2025"},
	}
	svc := NewNormalizeService(nil, gridOracle(), Config{})

	t.Run("named column is filled", func(t *testing.T) {
		resp, err := svc.Normalize(context.Background(), connect.NewRequest(&NormalizeRequest{
			Rows:         rows,
			GroupColumns: []string{"Style"},
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"Style"}, resp.Msg.ColumnsFilled)
		require.Len(t, resp.Msg.Records, 2)
		assert.Equal(t, "STY-A", resp.Msg.Records[1].Style)
	})

	t.Run("empty list disables detection", func(t *testing.T) {
		resp, err := svc.Normalize(context.Background(), connect.NewRequest(&NormalizeRequest{
			Rows:         rows,
			GroupColumns: []string{},
		}))
		require.NoError(t, err)
		assert.Empty(t, resp.Msg.ColumnsFilled)
		assert.Len(t, resp.Msg.Records, 1, "the style-less row loses its identity and is dropped")
	})
}

func TestNormalizeHandler_RoundTrip(t *testing.T) {
	path, handler := NewNormalizeHandler(NewNormalizeService(nil, gridOracle(), Config{}))
	assert.Equal(t, NormalizeProcedure, path)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, err := json.Marshal(&NormalizeRequest{Rows: gridRows()})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg NormalizeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, 1, msg.HeaderRowCount)
	assert.Len(t, msg.Records, 2)
}

func TestNormalizeHandler_InvalidArgumentStatus(t *testing.T) {
	path, handler := NewNormalizeHandler(NewNormalizeService(nil, gridOracle(), Config{}))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader([]byte(`{"rows":[]}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var connectErr struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&connectErr))
	assert.Equal(t, "invalid_argument", connectErr.Code)
}
