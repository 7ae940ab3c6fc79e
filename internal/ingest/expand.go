package ingest

// ExpandInfo reports the effect of group-column forward filling.
// RowsAffected is the total null count across filled columns before the
// expansion ran.
type ExpandInfo struct {
	ColumnsFilled    []string       `json:"columns_filled"`
	NullCountsBefore map[string]int `json:"null_counts_before"`
	NullCountsAfter  map[string]int `json:"null_counts_after"`
	RowsAffected     int            `json:"rows_affected"`
	TotalRows        int            `json:"total_rows"`
}

// CellsFilled returns the total number of cells populated by the expansion.
func (e ExpandInfo) CellsFilled() int {
	total := 0
	for col, before := range e.NullCountsBefore {
		total += before - e.NullCountsAfter[col]
	}
	return total
}

// ExpandGroups forward-fills group columns: columns whose values are only
// set on the first row of a repeated group, a spreadsheet merged-cell
// artifact. The input table is not modified.
//
// When explicit is nil, group columns are detected: a column qualifies if
// its null ratio lies in [nullThreshold, 1.0) and its first row is
// non-null. Fully empty columns and columns that start with a null are
// never detected; the latter rule keeps sparse-from-the-start columns from
// being filled with unrelated values.
//
// A non-nil explicit list bypasses detection and fills the named columns
// unconditionally; names not present in the table are silently ignored.
func ExpandGroups(t *Table, nullThreshold float64, explicit []string) (*Table, ExpandInfo) {
	out := t.Clone()
	out.Rows = rectangularize(out.Rows, len(out.Columns))
	info := ExpandInfo{
		NullCountsBefore: make(map[string]int),
		NullCountsAfter:  make(map[string]int),
		TotalRows:        out.NumRows(),
	}

	var targets []int
	if explicit != nil {
		targets = columnIndexesByName(out, explicit)
	} else {
		targets = detectGroupColumns(out, nullThreshold)
	}

	for _, idx := range targets {
		name := out.Columns[idx]
		before := countNulls(out, idx)

		last := EmptyCell()
		for _, row := range out.Rows {
			if row[idx].IsNull() {
				if !last.IsNull() {
					row[idx] = last
				}
			} else {
				last = row[idx]
			}
		}

		info.ColumnsFilled = append(info.ColumnsFilled, name)
		info.NullCountsBefore[name] = before
		info.NullCountsAfter[name] = countNulls(out, idx)
		info.RowsAffected += before
	}

	return out, info
}

// detectGroupColumns returns the indexes of columns matching the group
// heuristic; iteration is by index so duplicate column names are handled.
func detectGroupColumns(t *Table, nullThreshold float64) []int {
	if t.NumRows() == 0 {
		return nil
	}
	var targets []int
	for idx := range t.Columns {
		ratio := t.NullRatio(idx)
		if ratio < nullThreshold || ratio >= 1.0 {
			continue
		}
		if t.Rows[0][idx].IsNull() {
			continue
		}
		targets = append(targets, idx)
	}
	return targets
}

// columnIndexesByName returns every index whose label appears in names,
// preserving table column order.
func columnIndexesByName(t *Table, names []string) []int {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var targets []int
	for idx, col := range t.Columns {
		if wanted[col] {
			targets = append(targets, idx)
		}
	}
	return targets
}

func countNulls(t *Table, idx int) int {
	nulls := 0
	for _, row := range t.Rows {
		if row[idx].IsNull() {
			nulls++
		}
	}
	return nulls
}
