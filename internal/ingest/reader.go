package ingest

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// AllowedExtension reports whether filename carries an accepted workbook
// extension. Only .xlsx and .xls uploads reach the pipeline.
func AllowedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return true
	default:
		return false
	}
}

// ReadError indicates workbook content or sheet selection that could not
// be read into a grid. The upload surface reports it as unprocessable
// content rather than a server fault.
type ReadError struct {
	Msg string
	Err error
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ReadWorkbook parses workbook content into a raw cell grid with no header
// assumptions. sheet selects a sheet by name; empty selects the first
// sheet. Returns the grid and the name of the sheet that was read.
//
// Cells arrive as the formatted strings Excel displays; numeric text is
// typed as numbers, everything else stays text. Ragged rows are padded to
// the widest row. Legacy binary .xls content is rejected by the underlying
// reader with a descriptive error.
func ReadWorkbook(r io.Reader, sheet string) ([][]Cell, string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, "", &ReadError{Msg: "open workbook", Err: err}
	}
	defer f.Close()

	sheetName := sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, "", &ReadError{Msg: "workbook has no sheets"}
		}
	} else {
		idx, err := f.GetSheetIndex(sheetName)
		if err != nil {
			return nil, "", &ReadError{Msg: fmt.Sprintf("look up sheet %q", sheetName), Err: err}
		}
		if idx < 0 {
			return nil, "", &ReadError{Msg: fmt.Sprintf("sheet %q not found", sheetName)}
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, "", &ReadError{Msg: fmt.Sprintf("read sheet %q", sheetName), Err: err}
	}

	return GridFromStrings(rows), sheetName, nil
}

// GridFromStrings types a grid of raw text values into cells and pads
// ragged rows. Callers that already hold tabular text, such as the RPC
// surface, enter the pipeline here.
func GridFromStrings(rows [][]string) [][]Cell {
	grid := make([][]Cell, len(rows))
	width := 0
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, raw := range row {
			cells[j] = inferCell(raw)
		}
		grid[i] = cells
		if len(cells) > width {
			width = len(cells)
		}
	}
	return rectangularize(grid, width)
}

// inferCell types a formatted cell value: blank becomes null, numeric text
// becomes a number, everything else stays a trimmed-as-is string.
func inferCell(raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return EmptyCell()
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return NumberCell(n)
	}
	return StringCell(raw)
}
