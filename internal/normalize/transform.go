package normalize

import (
	"strconv"
	"strings"

	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/ingest"
	"github.com/Nav1203/plan-parser/internal/storage"
)

// Records folds every table row into a ProductionRecord using the column
// role mapping. Rows that end up without an order number or style are
// dropped entirely. Null cells contribute nothing to a record; parse
// failures degrade to defaults rather than failing the row.
func Records(t *ingest.Table, mapping *classify.Mapping, source *storage.RecordSource) []*storage.ProductionRecord {
	byColumn := mapping.ByColumn()
	records := make([]*storage.ProductionRecord, 0, t.NumRows())

	for _, row := range t.Rows {
		if rec := transformRow(t.Columns, row, byColumn, source); rec != nil {
			records = append(records, rec)
		}
	}
	return records
}

func transformRow(columns []string, row []ingest.Cell, byColumn map[string]classify.ColumnMapping, source *storage.RecordSource) *storage.ProductionRecord {
	var (
		orderNumber string
		style       string
		fabric      *string
		color       *string
		quantity    int
		quantitySet bool
		dates       storage.ProductionDates
		stages      = make(map[string]storage.StageData)
	)

	for idx, name := range columns {
		if idx >= len(row) {
			break
		}
		cell := row[idx]
		if cell.IsNull() {
			continue
		}

		m, known := byColumn[name]
		if !known {
			continue
		}

		switch m.Role {
		case classify.RoleIdentifier:
			value := strings.TrimSpace(cell.String())
			switch m.Field {
			case "order_number":
				orderNumber = value
			case "style":
				style = value
			case "fabric", "fabric_spec":
				fabric = &value
			case "color":
				color = &value
			}

		case classify.RoleQuantity:
			if n, ok := parseQuantity(cell); ok && !quantitySet {
				quantity = n
				quantitySet = true
			}
			if m.Stage != "" {
				field := m.Field
				if field == "" {
					field = "quantity"
				}
				setStageField(stages, m.Stage, field, rawStageValue(cell))
			}

		case classify.RoleStageDate:
			normalized, ok := Date(cell)
			if m.Stage == "" {
				continue
			}
			field := "date"
			if m.DateType != "" {
				field = string(m.DateType) + "_date"
			}
			value := storage.StageNull()
			if ok {
				value = storage.StageString(normalized)
			}
			setStageField(stages, m.Stage, field, value)
			if ok {
				dates.Set(m.Stage, normalized)
			}
		}
	}

	if orderNumber == "" || style == "" {
		return nil
	}

	rec := &storage.ProductionRecord{
		OrderNumber: orderNumber,
		Style:       style,
		Fabric:      fabric,
		Color:       color,
		Quantity:    quantity,
		Status:      storage.RecordStatusPending,
		StageOrder:  storage.DefaultStageOrder(),
	}
	if !dates.IsZero() {
		rec.Dates = &dates
	}
	if prunedStages := pruneStages(stages); len(prunedStages) > 0 {
		rec.Stages = prunedStages
	}
	if source != nil {
		src := *source
		rec.Source = &src
	}
	return rec
}

// parseQuantity extracts an integer from a cell. Numeric cells truncate;
// string cells tolerate thousands separators and decimal text.
func parseQuantity(cell ingest.Cell) (int, bool) {
	switch cell.Kind {
	case ingest.CellNumber:
		return int(cell.Num), true
	case ingest.CellString:
		s := strings.ReplaceAll(strings.TrimSpace(cell.Str), ",", "")
		if s == "" {
			return 0, false
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

// rawStageValue carries the cell over as the matching stage scalar.
func rawStageValue(cell ingest.Cell) storage.StageValue {
	switch cell.Kind {
	case ingest.CellNumber:
		return storage.StageNumber(cell.Num)
	case ingest.CellEmpty:
		return storage.StageNull()
	default:
		return storage.StageString(cell.String())
	}
}

func setStageField(stages map[string]storage.StageData, stage, field string, value storage.StageValue) {
	data, ok := stages[stage]
	if !ok {
		data = storage.StageData{StageName: stage, Fields: make(map[string]storage.StageValue)}
	}
	data.Fields[field] = value
	stages[stage] = data
}

// pruneStages drops stage entries that collected no fields.
func pruneStages(stages map[string]storage.StageData) map[string]storage.StageData {
	out := make(map[string]storage.StageData, len(stages))
	for name, data := range stages {
		if len(data.Fields) == 0 {
			continue
		}
		out[name] = data
	}
	return out
}
