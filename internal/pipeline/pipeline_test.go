package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/storage"
)

type fakeRecordStore struct {
	created [][]*storage.ProductionRecord
	err     error
}

func (f *fakeRecordStore) CreateMany(ctx context.Context, records []*storage.ProductionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, records)
	return nil
}

type fakeMetadataStore struct {
	created []*storage.ExtractionMetadata
	err     error
}

func (f *fakeMetadataStore) Create(ctx context.Context, meta *storage.ExtractionMetadata) error {
	if f.err != nil {
		return f.err
	}
	if meta.ID == uuid.Nil {
		meta.ID = uuid.New()
	}
	f.created = append(f.created, meta)
	return nil
}

// planWorkbook builds a two-header-row sheet where Style is set only on the
// first row of each group.
func planWorkbook(t *testing.T) []byte {
	t.Helper()

	rows := [][]interface{}{
		{"Order No.", "Style", "Qty", "Cutting", "Sewing"},
		{"", "", "", "Plan", "Plan"},
		{"PO-1", "STY-A", 100, "01/03/2025", "08/03/2025"},
		{"PO-2", "", 200, "02/03/2025", "09/03/2025"},
		{"PO-3", "STY-B", 300, "03/03/2025", "10/03/2025"},
	}

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func planOracle() *classify.MockOracle {
	return &classify.MockOracle{Mapping: &classify.Mapping{Columns: []classify.ColumnMapping{
		{ColumnName: "Order No.", Role: classify.RoleIdentifier, Field: "order_number", Confidence: 0.98},
		{ColumnName: "Style", Role: classify.RoleIdentifier, Field: "style", Confidence: 0.95},
		{ColumnName: "Qty", Role: classify.RoleQuantity, Field: "order_quantity", Confidence: 0.95},
		{ColumnName: "Cutting Plan", Role: classify.RoleStageDate, Stage: "cutting", DateType: classify.DatePlanned, Confidence: 0.9},
		{ColumnName: "Sewing Plan", Role: classify.RoleStageDate, Stage: "sewing", DateType: classify.DatePlanned, Confidence: 0.9},
	}}}
}

func testConfig() Config {
	return Config{HeaderThreshold: 0.3, NullThreshold: 0.1, SampleSize: 2, SampleSeed: 42}
}

func TestPipeline_Ingest(t *testing.T) {
	oracle := planOracle()
	records := &fakeRecordStore{}
	metas := &fakeMetadataStore{}
	p := New(nil, testConfig(), oracle, records, metas)

	result, err := p.Ingest(context.Background(), IngestRequest{
		Content:  bytes.NewReader(planWorkbook(t)),
		FileName: "march_plan.xlsx",
	})
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", result.SheetName)
	assert.Equal(t, 2, result.Header.HeaderRowCount)
	assert.Equal(t, []string{"Order No.", "Style", "Qty", "Cutting Plan", "Sewing Plan"}, result.Header.Columns)
	assert.Equal(t, []string{"Style"}, result.Expansion.ColumnsFilled)
	assert.Equal(t, 1, result.Expansion.CellsFilled())
	assert.Equal(t, 3, result.RowsParsed)
	assert.Equal(t, 3, result.RecordsCreated)
	assert.NotEqual(t, uuid.Nil, result.MetadataID)
	assert.NotNil(t, result.Mapping)
	assert.False(t, result.CompletedAt.Before(result.StartedAt))

	// The oracle saw one sample per merged column.
	assert.Equal(t, 1, oracle.Calls)
	assert.Len(t, oracle.LastSamples, 5)

	require.Len(t, records.created, 1)
	persisted := records.created[0]
	require.Len(t, persisted, 3)
	assert.Equal(t, "PO-1", persisted[0].OrderNumber)
	assert.Equal(t, "STY-A", persisted[1].Style, "group expansion carries the style down")
	assert.Equal(t, 200, persisted[1].Quantity)
	require.NotNil(t, persisted[0].Dates)
	require.NotNil(t, persisted[0].Dates.Cutting)
	assert.Equal(t, "01/03/2025", *persisted[0].Dates.Cutting)
	require.NotNil(t, persisted[0].Source)
	assert.Equal(t, "march_plan.xlsx", persisted[0].Source.File)
	assert.Equal(t, "Sheet1", persisted[0].Source.Sheet)

	require.Len(t, metas.created, 1)
	meta := metas.created[0]
	assert.Equal(t, result.MetadataID, meta.ID)
	assert.Equal(t, "march_plan.xlsx", meta.SourceFile)
	assert.Equal(t, 2, meta.HeaderRowCount)
	assert.Equal(t, 5, meta.OriginalRows)
	assert.Equal(t, 3, meta.FinalRows)
	assert.Equal(t, 3, meta.RecordsCreated)
	assert.Equal(t, 1, meta.CellsFilled)
	assert.NotEmpty(t, meta.ColumnMapping)
}

func TestPipeline_ExplicitGroupColumnsBypassDetection(t *testing.T) {
	oracle := planOracle()
	records := &fakeRecordStore{}
	p := New(nil, testConfig(), oracle, records, &fakeMetadataStore{})

	// An empty non-nil list disables forward filling entirely, so the row
	// with a blank style loses its identity and is dropped.
	result, err := p.Ingest(context.Background(), IngestRequest{
		Content:      bytes.NewReader(planWorkbook(t)),
		FileName:     "march_plan.xlsx",
		GroupColumns: []string{},
	})
	require.NoError(t, err)

	assert.Empty(t, result.Expansion.ColumnsFilled)
	assert.Equal(t, 2, result.RecordsCreated)
}

func TestPipeline_OracleFailureAbortsIngest(t *testing.T) {
	records := &fakeRecordStore{}
	metas := &fakeMetadataStore{}
	oracle := &classify.MockOracle{Err: &classify.ParseError{Msg: "no JSON object found in response"}}
	p := New(nil, testConfig(), oracle, records, metas)

	_, err := p.Ingest(context.Background(), IngestRequest{
		Content:  bytes.NewReader(planWorkbook(t)),
		FileName: "march_plan.xlsx",
	})

	require.Error(t, err)
	var parseErr *classify.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Empty(t, records.created, "nothing may be persisted after a classification failure")
	assert.Empty(t, metas.created)
	assert.Equal(t, 1, oracle.Calls, "the oracle is attempted exactly once")
}

func TestPipeline_RecordStoreFailure(t *testing.T) {
	records := &fakeRecordStore{err: errors.New("connection reset")}
	metas := &fakeMetadataStore{}
	p := New(nil, testConfig(), planOracle(), records, metas)

	_, err := p.Ingest(context.Background(), IngestRequest{
		Content:  bytes.NewReader(planWorkbook(t)),
		FileName: "march_plan.xlsx",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist records")
	assert.Empty(t, metas.created, "metadata must not be written when records failed")
}

func TestPipeline_MetadataStoreFailure(t *testing.T) {
	metas := &fakeMetadataStore{err: errors.New("connection reset")}
	p := New(nil, testConfig(), planOracle(), &fakeRecordStore{}, metas)

	_, err := p.Ingest(context.Background(), IngestRequest{
		Content:  bytes.NewReader(planWorkbook(t)),
		FileName: "march_plan.xlsx",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist metadata")
}

func TestPipeline_InvalidWorkbook(t *testing.T) {
	oracle := planOracle()
	p := New(nil, testConfig(), oracle, &fakeRecordStore{}, &fakeMetadataStore{})

	_, err := p.Ingest(context.Background(), IngestRequest{
		Content:  bytes.NewReader([]byte("not a workbook")),
		FileName: "march_plan.xlsx",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read workbook")
	assert.Zero(t, oracle.Calls)
}

func TestPipeline_ZeroConfigDefaults(t *testing.T) {
	p := New(nil, Config{}, planOracle(), &fakeRecordStore{}, &fakeMetadataStore{})

	result, err := p.Ingest(context.Background(), IngestRequest{
		Content:  bytes.NewReader(planWorkbook(t)),
		FileName: "march_plan.xlsx",
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.RecordsCreated)
}
