// Package classify sends column metadata to the classification oracle and
// parses its structured role-mapping response.
package classify

// Role is the semantic role the oracle assigns to a spreadsheet column.
type Role string

const (
	RoleIdentifier Role = "identifier"
	RoleQuantity   Role = "quantity"
	RoleStageDate  Role = "stage_date"
	RoleIgnore     Role = "ignore"
)

// validRoles is the closed set of roles the oracle may return.
var validRoles = map[Role]bool{
	RoleIdentifier: true,
	RoleQuantity:   true,
	RoleStageDate:  true,
	RoleIgnore:     true,
}

// DateType qualifies whether a stage date is a plan or an observation.
type DateType string

const (
	DatePlanned DateType = "planned"
	DateActual  DateType = "actual"
	DateUnknown DateType = "unknown"
)

// Canonical production stages. The oracle maps synonyms and abbreviations
// onto this closed vocabulary.
const (
	StageFabric     = "fabric"
	StageCutting    = "cutting"
	StageEmbroidery = "embroidery"
	StageSewing     = "sewing"
	StageFinishing  = "finishing"
	StageVAP        = "vap"
	StagePacking    = "packing"
	StageShipping   = "shipping"
)

// CanonicalStages lists the closed stage vocabulary in process order.
var CanonicalStages = []string{
	StageFabric,
	StageCutting,
	StageEmbroidery,
	StageSewing,
	StageFinishing,
	StageVAP,
	StagePacking,
	StageShipping,
}

// IsCanonicalStage reports whether s belongs to the stage vocabulary.
func IsCanonicalStage(s string) bool {
	for _, stage := range CanonicalStages {
		if s == stage {
			return true
		}
	}
	return false
}

// ColumnSample is the compact per-column representation presented to the
// oracle: the merged header name plus a few randomly sampled values.
type ColumnSample struct {
	ColumnName   string   `json:"column_name"`
	SampleValues []string `json:"sample_values"`
}

// ColumnMapping is the oracle's verdict for a single column. Field, Stage,
// DateType, and Notes are empty when the oracle returned null.
type ColumnMapping struct {
	ColumnName string   `json:"column_name"`
	Role       Role     `json:"role"`
	Field      string   `json:"field"`
	Stage      string   `json:"stage"`
	DateType   DateType `json:"date_type"`
	Confidence float64  `json:"confidence"`
	Notes      string   `json:"notes"`
}

// Mapping is the oracle's full response: one entry per input column.
type Mapping struct {
	Columns []ColumnMapping `json:"columns"`
}

// ByColumn indexes the mapping by column name. Duplicate header names share
// a single entry, mirroring how rows are later keyed.
func (m *Mapping) ByColumn() map[string]ColumnMapping {
	out := make(map[string]ColumnMapping, len(m.Columns))
	for _, c := range m.Columns {
		out[c.ColumnName] = c
	}
	return out
}
