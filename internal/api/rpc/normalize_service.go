// Package rpc provides Connect service implementations for the plan parser.
package rpc

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/ingest"
	"github.com/Nav1203/plan-parser/internal/normalize"
	"github.com/Nav1203/plan-parser/internal/observability"
	"github.com/Nav1203/plan-parser/internal/storage"
)

// NormalizeProcedure is the Connect procedure path for grid normalization.
const NormalizeProcedure = "/planparser.v1.NormalizeService/Normalize"

// NormalizeService normalizes raw spreadsheet grids without persisting the
// result, for programmatic clients that manage their own storage.
type NormalizeService struct {
	logger *observability.Logger
	oracle classify.Oracle
	config Config
}

// Config holds normalization defaults applied when a request leaves the
// corresponding field unset.
type Config struct {
	HeaderThreshold float64
	NullThreshold   float64
	SampleSize      int
}

// NewNormalizeService creates a new normalize service.
func NewNormalizeService(logger *observability.Logger, oracle classify.Oracle, cfg Config) *NormalizeService {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	if cfg.HeaderThreshold <= 0 {
		cfg.HeaderThreshold = 0.3
	}
	if cfg.NullThreshold <= 0 {
		cfg.NullThreshold = 0.1
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 2
	}
	return &NormalizeService{
		logger: logger,
		oracle: oracle,
		config: cfg,
	}
}

// NormalizeRequest represents the Connect request message. Rows is the raw
// grid exactly as it appears in the sheet, headers included.
type NormalizeRequest struct {
	Rows            [][]string `json:"rows"`
	GroupColumns    []string   `json:"group_columns,omitempty"`
	HeaderThreshold float64    `json:"header_threshold,omitempty"`
	SampleSize      int        `json:"sample_size,omitempty"`
}

// NormalizeResponse represents the Connect response message.
type NormalizeResponse struct {
	Columns        []string                    `json:"columns"`
	HeaderRowCount int                         `json:"header_row_count"`
	ColumnsFilled  []string                    `json:"columns_filled"`
	Mapping        *classify.Mapping           `json:"mapping"`
	Records        []*storage.ProductionRecord `json:"records"`
}

// Normalize handles the unary normalization procedure: header detection
// and merging, group column expansion, column classification, and record
// transformation, with nothing written to storage.
func (s *NormalizeService) Normalize(ctx context.Context, req *connect.Request[NormalizeRequest]) (*connect.Response[NormalizeResponse], error) {
	msg := req.Msg

	if len(msg.Rows) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("rows is required"))
	}

	headerThreshold := msg.HeaderThreshold
	if headerThreshold <= 0 {
		headerThreshold = s.config.HeaderThreshold
	}
	if headerThreshold > 1 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("header_threshold must be in (0, 1]"))
	}
	sampleSize := msg.SampleSize
	if sampleSize <= 0 {
		sampleSize = s.config.SampleSize
	}

	grid := ingest.GridFromStrings(msg.Rows)
	headerCount := ingest.DetectHeaderRows(grid, headerThreshold)
	table, headerInfo := ingest.MergeHeaders(grid, headerCount)
	expanded, expandInfo := ingest.ExpandGroups(table, s.config.NullThreshold, msg.GroupColumns)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	samples := ingest.SampleColumns(expanded, sampleSize, rng)

	mapping, err := s.oracle.ClassifyColumns(ctx, samples)
	if err != nil {
		s.logger.Error().Err(err).Msg("Column classification failed")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	records := normalize.Records(expanded, mapping, nil)

	s.logger.Info().
		Int("header_rows", headerInfo.HeaderRowCount).
		Int("columns", len(headerInfo.Columns)).
		Int("records", len(records)).
		Msg("Grid normalized")

	resp := &NormalizeResponse{
		Columns:        headerInfo.Columns,
		HeaderRowCount: headerInfo.HeaderRowCount,
		ColumnsFilled:  expandInfo.ColumnsFilled,
		Mapping:        mapping,
		Records:        records,
	}

	return connect.NewResponse(resp), nil
}

// NewNormalizeHandler returns the procedure path and the HTTP handler for
// mounting the service on a router.
func NewNormalizeHandler(svc *NormalizeService) (string, http.Handler) {
	return NormalizeProcedure, connect.NewUnaryHandler(NormalizeProcedure, svc.Normalize)
}
