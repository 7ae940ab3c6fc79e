package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(rows ...[]string) [][]Cell {
	return GridFromStrings(rows)
}

func TestDetectHeaderRows(t *testing.T) {
	tests := []struct {
		name      string
		rows      [][]string
		threshold float64
		expected  int
	}{
		{
			name: "two header rows",
			rows: [][]string{
				{"Order", "Style", "Order"},
				{"No.", "Code", "Qty"},
				{"PO-1", "STY-A", "100"},
			},
			threshold: 0.3,
			expected:  2,
		},
		{
			name: "single header row",
			rows: [][]string{
				{"Order No.", "Qty"},
				{"PO-1", "100"},
			},
			threshold: 0.3,
			expected:  1,
		},
		{
			name: "data from the first row",
			rows: [][]string{
				{"PO-1", "100", "03/04/2025"},
				{"PO-2", "200", "04/04/2025"},
			},
			threshold: 0.3,
			expected:  0,
		},
		{
			name: "all rows look like headers",
			rows: [][]string{
				{"Order", "Style"},
				{"No.", "Code"},
			},
			threshold: 0.3,
			expected:  0,
		},
		{
			name: "blank spacer rows above the header",
			rows: [][]string{
				{"", "", ""},
				{"Order No.", "Style", "Qty"},
				{"PO-1", "STY-A", "100"},
			},
			threshold: 0.3,
			expected:  2,
		},
		{
			name: "higher threshold pushes the boundary down",
			rows: [][]string{
				{"Order", "Style", "Qty"},
				{"PO-1", "STY-A", "100"},
				{"1", "2", "3"},
			},
			threshold: 0.5,
			expected:  2,
		},
		{
			name:      "empty grid",
			rows:      nil,
			threshold: 0.3,
			expected:  0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DetectHeaderRows(grid(tc.rows...), tc.threshold))
		})
	}
}

func TestMergeHeaders_TwoRows(t *testing.T) {
	g := grid(
		[]string{"Order", "Style", "Order"},
		[]string{"No.", "Code", "Qty"},
		[]string{"PO-1", "STY-A", "100"},
		[]string{"PO-2", "STY-B", "250"},
	)

	table, info := MergeHeaders(g, 2)

	assert.Equal(t, []string{"Order No.", "Style Code", "Order Qty"}, table.Columns)
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, Shape{Rows: 4, Cols: 3}, info.OriginalShape)
	assert.Equal(t, Shape{Rows: 2, Cols: 3}, info.ResultShape)
	assert.Equal(t, 2, info.HeaderRowCount)
	assert.Equal(t, table.Columns, info.Columns)

	assert.Equal(t, "PO-1", table.Rows[0][0].Str)
	assert.Equal(t, float64(100), table.Rows[0][2].Num)
}

func TestMergeHeaders_SpanningGroupLabel(t *testing.T) {
	// "Dates" spans three merged cells; the fill propagates it across the span.
	g := grid(
		[]string{"Order No.", "Dates", "", ""},
		[]string{"", "Fabric", "Cutting", "Sewing"},
		[]string{"PO-1", "01/02/2025", "08/02/2025", "15/02/2025"},
	)

	table, _ := MergeHeaders(g, 2)

	assert.Equal(t, []string{"Order No.", "Dates Fabric", "Dates Cutting", "Dates Sewing"}, table.Columns)
}

func TestMergeHeaders_CollapsesRepeatedFragments(t *testing.T) {
	g := grid(
		[]string{"Fabric", "Color", "Fabric"},
		[]string{"Fabric", "Color", "Qty"},
		[]string{"Qty", "Name", "Fabric"},
		[]string{"100", "Navy", "60"},
	)

	table, _ := MergeHeaders(g, 3)

	// Only immediately repeated fragments collapse; the third column's
	// non-adjacent "Fabric" survives.
	assert.Equal(t, []string{"Fabric Qty", "Color Name", "Fabric Qty Fabric"}, table.Columns)
}

func TestMergeHeaders_SyntheticNames(t *testing.T) {
	g := grid(
		[]string{"", "Style"},
		[]string{"PO-1", "STY-A"},
	)

	table, _ := MergeHeaders(g, 1)

	require.Len(t, table.Columns, 2)
	assert.Equal(t, "Column_0", table.Columns[0])
	assert.Equal(t, "Style", table.Columns[1])
}

func TestMergeHeaders_ZeroCount(t *testing.T) {
	g := grid(
		[]string{"PO-1", "100"},
		[]string{"PO-2", "200"},
	)

	table, info := MergeHeaders(g, 0)

	assert.Equal(t, []string{"Column_0", "Column_1"}, table.Columns)
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, 0, info.HeaderRowCount)
}

func TestMergeHeaders_CountBeyondGrid(t *testing.T) {
	g := grid([]string{"PO-1", "100"})

	table, _ := MergeHeaders(g, 5)

	assert.Equal(t, []string{"Column_0", "Column_1"}, table.Columns)
	assert.Equal(t, 1, table.NumRows())
}

func TestMergeHeaders_PadsRaggedRows(t *testing.T) {
	g := GridFromStrings([][]string{
		{"Order No.", "Style", "Qty"},
		{"PO-1"},
	})

	table, _ := MergeHeaders(g, 1)

	require.Len(t, table.Rows[0], 3)
	assert.True(t, table.Rows[0][1].IsNull())
	assert.True(t, table.Rows[0][2].IsNull())
}
