// Package storage provides database models and repositories for the plan
// parser.
package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RecordStatus represents the production lifecycle status of a record.
type RecordStatus string

const (
	RecordStatusPending      RecordStatus = "pending"
	RecordStatusInProduction RecordStatus = "in_production"
	RecordStatusCompleted    RecordStatus = "completed"
	RecordStatusCancelled    RecordStatus = "cancelled"
)

// ValidRecordStatus reports whether s is a known lifecycle status.
func ValidRecordStatus(s RecordStatus) bool {
	switch s {
	case RecordStatusPending, RecordStatusInProduction, RecordStatusCompleted, RecordStatusCancelled:
		return true
	}
	return false
}

// DefaultStageOrder returns the canonical top-level milestone sequence.
func DefaultStageOrder() []string {
	return []string{"fabric", "cutting", "sewing", "shipping"}
}

// StageValueKind discriminates the scalar types a stage field can hold.
type StageValueKind int

const (
	StageValueNull StageValueKind = iota
	StageValueString
	StageValueNumber
)

// StageValue is a tagged scalar stored under a stage field: a string
// (often a normalized date), a number, or null. It marshals to the
// natural JSON scalar.
type StageValue struct {
	Kind StageValueKind
	Str  string
	Num  float64
}

// StageString returns a string-valued StageValue.
func StageString(s string) StageValue {
	return StageValue{Kind: StageValueString, Str: s}
}

// StageNumber returns a number-valued StageValue.
func StageNumber(n float64) StageValue {
	return StageValue{Kind: StageValueNumber, Num: n}
}

// StageNull returns the null StageValue.
func StageNull() StageValue {
	return StageValue{Kind: StageValueNull}
}

// String renders the value for display. Null renders as the empty string.
func (v StageValue) String() string {
	switch v.Kind {
	case StageValueString:
		return v.Str
	case StageValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v StageValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case StageValueString:
		return json.Marshal(v.Str)
	case StageValueNumber:
		return json.Marshal(v.Num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a bare JSON scalar into the tagged form.
func (v *StageValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case nil:
		*v = StageNull()
	case string:
		*v = StageString(val)
	case float64:
		*v = StageNumber(val)
	case bool:
		*v = StageString(fmt.Sprintf("%t", val))
	default:
		return fmt.Errorf("unsupported stage value %s", string(data))
	}
	return nil
}

// StageData holds the extracted field values for a single production stage.
type StageData struct {
	StageName string                `json:"stage_name"`
	Fields    map[string]StageValue `json:"fields"`
}

// ProductionDates holds the four canonical milestone dates in dd/mm/yyyy
// form.
type ProductionDates struct {
	Fabric   *string `json:"fabric,omitempty"`
	Cutting  *string `json:"cutting,omitempty"`
	Sewing   *string `json:"sewing,omitempty"`
	Shipping *string `json:"shipping,omitempty"`
}

// Set assigns a canonical milestone date. It reports false when the stage
// is not one of the four top-level milestones.
func (d *ProductionDates) Set(stage, date string) bool {
	switch stage {
	case "fabric":
		d.Fabric = &date
	case "cutting":
		d.Cutting = &date
	case "sewing":
		d.Sewing = &date
	case "shipping":
		d.Shipping = &date
	default:
		return false
	}
	return true
}

// IsZero reports whether no milestone date has been set.
func (d ProductionDates) IsZero() bool {
	return d.Fabric == nil && d.Cutting == nil && d.Sewing == nil && d.Shipping == nil
}

// RecordSource identifies the workbook a record was extracted from.
type RecordSource struct {
	File  string `json:"file"`
	Sheet string `json:"sheet"`
}

// ProductionRecord represents one production order line item.
type ProductionRecord struct {
	ID          uuid.UUID            `json:"id" db:"id"`
	OrderNumber string               `json:"order_number" db:"order_number"`
	Style       string               `json:"style" db:"style"`
	Fabric      *string              `json:"fabric,omitempty" db:"fabric"`
	Color       *string              `json:"color,omitempty" db:"color"`
	Quantity    int                  `json:"quantity" db:"quantity"`
	Status      RecordStatus         `json:"status" db:"status"`
	Dates       *ProductionDates     `json:"dates,omitempty" db:"dates"`
	Stages      map[string]StageData `json:"stages,omitempty" db:"stages"`
	StageOrder  []string             `json:"stage_order" db:"stage_order"`
	Source      *RecordSource        `json:"source,omitempty" db:"source"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at" db:"updated_at"`
}

// ExtractionMetadata captures the audit trail for one ingested workbook:
// how headers were detected, how the table was reshaped, and the column
// role mapping the classification produced.
type ExtractionMetadata struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	SourceFile     string          `json:"source_file" db:"source_file"`
	SourceSheet    string          `json:"source_sheet" db:"source_sheet"`
	HeaderRowCount int             `json:"header_row_count" db:"header_row_count"`
	OriginalRows   int             `json:"original_rows" db:"original_rows"`
	OriginalCols   int             `json:"original_cols" db:"original_cols"`
	FinalRows      int             `json:"final_rows" db:"final_rows"`
	FinalCols      int             `json:"final_cols" db:"final_cols"`
	Columns        []string        `json:"columns" db:"columns"`
	ColumnsFilled  []string        `json:"columns_filled" db:"columns_filled"`
	CellsFilled    int             `json:"cells_filled" db:"cells_filled"`
	RecordsCreated int             `json:"records_created" db:"records_created"`
	ColumnMapping  json.RawMessage `json:"column_mapping" db:"column_mapping"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
