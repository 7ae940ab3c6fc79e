package ingest

import (
	"fmt"
	"strings"
)

// Shape is a row/column count pair.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// HeaderInfo reports what header detection and merging did to a grid.
type HeaderInfo struct {
	OriginalShape  Shape    `json:"original_shape"`
	HeaderRowCount int      `json:"header_row_count"`
	ResultShape    Shape    `json:"result_shape"`
	Columns        []string `json:"columns"`
}

// DetectHeaderRows scans the grid top to bottom and returns the index of
// the first row whose non-null cells look like data at ratio >= threshold.
// That index is the header row count: everything above it is header,
// the row itself is the first data row. Returns 0 when no row qualifies,
// in which case the whole grid is treated as data.
func DetectHeaderRows(grid [][]Cell, threshold float64) int {
	for i, row := range grid {
		if isDataRow(row, threshold) {
			return i
		}
	}
	return 0
}

// isDataRow computes the data ratio over the row's non-null cells.
func isDataRow(row []Cell, threshold float64) bool {
	nonNull := 0
	data := 0
	for _, c := range row {
		if c.IsNull() {
			continue
		}
		nonNull++
		if IsDataValue(c) {
			data++
		}
	}
	if nonNull == 0 {
		return false
	}
	return float64(data)/float64(nonNull) >= threshold
}

// MergeHeaders collapses the first headerRowCount rows of the grid into one
// semantic label per column and returns the remaining rows as a Table.
//
// Header rows are forward-filled left to right first, so a label spanning
// horizontally merged cells propagates across its span. Per column, the
// non-empty fragments are collected top to bottom, immediately repeated
// fragments are collapsed, and the survivors are joined with single spaces.
// Columns with no fragments get a positional Column_<idx> name.
//
// A headerRowCount of 0 skips merging entirely: every column receives its
// positional name and all rows are kept as data.
func MergeHeaders(grid [][]Cell, headerRowCount int) (*Table, HeaderInfo) {
	width := gridWidth(grid)
	info := HeaderInfo{
		OriginalShape:  Shape{Rows: len(grid), Cols: width},
		HeaderRowCount: headerRowCount,
	}

	if headerRowCount <= 0 || headerRowCount > len(grid) {
		columns := make([]string, width)
		for i := range columns {
			columns[i] = syntheticColumnName(i)
		}
		rows := rectangularize(cloneGrid(grid), width)
		info.ResultShape = Shape{Rows: len(rows), Cols: width}
		info.Columns = columns
		return &Table{Columns: columns, Rows: rows}, info
	}

	headers := rectangularize(cloneGrid(grid[:headerRowCount]), width)
	for _, row := range headers {
		fillRowForward(row)
	}

	columns := make([]string, width)
	for col := 0; col < width; col++ {
		var fragments []string
		for _, row := range headers {
			c := row[col]
			if c.IsNull() {
				continue
			}
			s := strings.TrimSpace(c.String())
			if s == "" {
				continue
			}
			// Collapse immediately repeated fragments; keep non-adjacent repeats.
			if len(fragments) > 0 && fragments[len(fragments)-1] == s {
				continue
			}
			fragments = append(fragments, s)
		}
		if len(fragments) == 0 {
			columns[col] = syntheticColumnName(col)
		} else {
			columns[col] = strings.Join(fragments, " ")
		}
	}

	rows := rectangularize(cloneGrid(grid[headerRowCount:]), width)
	info.ResultShape = Shape{Rows: len(rows), Cols: width}
	info.Columns = columns
	return &Table{Columns: columns, Rows: rows}, info
}

// fillRowForward propagates the last non-null value rightward in place.
func fillRowForward(row []Cell) {
	last := EmptyCell()
	for i, c := range row {
		if c.IsNull() {
			row[i] = last
		} else {
			last = c
		}
	}
}

// syntheticColumnName returns the deterministic placeholder for a column
// with no header fragments.
func syntheticColumnName(idx int) string {
	return fmt.Sprintf("Column_%d", idx)
}

func gridWidth(grid [][]Cell) int {
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

func cloneGrid(grid [][]Cell) [][]Cell {
	out := make([][]Cell, len(grid))
	for i, row := range grid {
		r := make([]Cell, len(row))
		copy(r, row)
		out[i] = r
	}
	return out
}
