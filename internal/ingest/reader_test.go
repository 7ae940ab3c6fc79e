package ingest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		filename string
		expected bool
	}{
		{"plan.xlsx", true},
		{"plan.xls", true},
		{"PLAN.XLSX", true},
		{"archive/march plan.xlsx", true},
		{"plan.csv", false},
		{"plan.xlsx.exe", false},
		{"plan", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.expected, AllowedExtension(tc.filename))
		})
	}
}

// workbookBytes builds an in-memory workbook with the given rows on the
// named sheet.
func workbookBytes(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadWorkbook_FirstSheet(t *testing.T) {
	content := workbookBytes(t, "Sheet1", [][]interface{}{
		{"Order", "Style", "Order"},
		{"No.", "Code", "Qty"},
		{"PO-1", "STY-A", 100},
	})

	grid, sheetName, err := ReadWorkbook(bytes.NewReader(content), "")

	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheetName)
	require.Len(t, grid, 3)
	assert.Equal(t, "Order", grid[0][0].Str)
	assert.Equal(t, CellNumber, grid[2][2].Kind)
	assert.Equal(t, float64(100), grid[2][2].Num)
}

func TestReadWorkbook_NamedSheet(t *testing.T) {
	content := workbookBytes(t, "March Plan", [][]interface{}{
		{"Order No.", "Qty"},
		{"PO-9", 50},
	})

	grid, sheetName, err := ReadWorkbook(bytes.NewReader(content), "March Plan")

	require.NoError(t, err)
	assert.Equal(t, "March Plan", sheetName)
	require.Len(t, grid, 2)
	assert.Equal(t, "PO-9", grid[1][0].Str)
}

func TestReadWorkbook_SheetNotFound(t *testing.T) {
	content := workbookBytes(t, "Sheet1", [][]interface{}{{"Order No."}})

	_, _, err := ReadWorkbook(bytes.NewReader(content), "Missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
}

func TestReadWorkbook_NotAWorkbook(t *testing.T) {
	_, _, err := ReadWorkbook(bytes.NewReader([]byte("not a workbook")), "")

	require.Error(t, err)
	var readErr *ReadError
	assert.True(t, errors.As(err, &readErr))
}

func TestReadWorkbook_PadsRaggedRows(t *testing.T) {
	content := workbookBytes(t, "Sheet1", [][]interface{}{
		{"Order No.", "Style", "Qty"},
		{"PO-1"},
	})

	grid, _, err := ReadWorkbook(bytes.NewReader(content), "")

	require.NoError(t, err)
	require.Len(t, grid, 2)
	require.Len(t, grid[1], 3)
	assert.True(t, grid[1][1].IsNull())
}

func TestGridFromStrings(t *testing.T) {
	grid := GridFromStrings([][]string{
		{"Order No.", "Qty", ""},
		{"PO-1", "100"},
		{"PO-2", "  ", "03/04/2025"},
	})

	require.Len(t, grid, 3)
	for _, row := range grid {
		require.Len(t, row, 3)
	}

	assert.Equal(t, CellString, grid[0][0].Kind)
	assert.True(t, grid[0][2].IsNull())
	assert.Equal(t, CellNumber, grid[1][1].Kind)
	assert.True(t, grid[1][2].IsNull(), "short row pads with nulls")
	assert.True(t, grid[2][1].IsNull(), "whitespace is null")
	assert.Equal(t, CellString, grid[2][2].Kind)
}
