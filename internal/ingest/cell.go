// Package ingest provides the spreadsheet normalization pipeline for the plan parser.
package ingest

import (
	"strconv"
	"time"
)

// CellKind identifies the kind of value a spreadsheet cell holds.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellTime
)

// Cell is a single untyped spreadsheet cell value.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
	Time time.Time
}

// EmptyCell returns a null cell.
func EmptyCell() Cell {
	return Cell{Kind: CellEmpty}
}

// StringCell returns a text cell.
func StringCell(s string) Cell {
	return Cell{Kind: CellString, Str: s}
}

// NumberCell returns a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Num: f}
}

// TimeCell returns a date/time cell.
func TimeCell(t time.Time) Cell {
	return Cell{Kind: CellTime, Time: t}
}

// IsNull reports whether the cell carries no value.
func (c Cell) IsNull() bool {
	return c.Kind == CellEmpty
}

// String renders the cell as text. Numbers drop trailing zeros, times use
// a full timestamp form, null cells render empty.
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return c.Str
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellTime:
		return c.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Table is an ordered grid of cells with one label per column. Duplicate
// column labels are allowed; columns are addressed by index.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// Column returns the cells of column idx in row order.
func (t *Table) Column(idx int) []Cell {
	col := make([]Cell, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			col = append(col, row[idx])
		} else {
			col = append(col, EmptyCell())
		}
	}
	return col
}

// NullRatio returns the fraction of null cells in column idx.
func (t *Table) NullRatio(idx int) float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	nulls := 0
	for _, row := range t.Rows {
		if idx >= len(row) || row[idx].IsNull() {
			nulls++
		}
	}
	return float64(nulls) / float64(len(t.Rows))
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	rows := make([][]Cell, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]Cell, len(row))
		copy(r, row)
		rows[i] = r
	}
	return &Table{Columns: cols, Rows: rows}
}

// rectangularize pads ragged rows with null cells to width.
func rectangularize(rows [][]Cell, width int) [][]Cell {
	for i, row := range rows {
		for len(row) < width {
			row = append(row, EmptyCell())
		}
		rows[i] = row
	}
	return rows
}
