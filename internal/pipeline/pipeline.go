// Package pipeline orchestrates workbook ingestion end to end: grid
// reading, header merging, group expansion, column classification, row
// transformation, and persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/ingest"
	"github.com/Nav1203/plan-parser/internal/normalize"
	"github.com/Nav1203/plan-parser/internal/observability"
	"github.com/Nav1203/plan-parser/internal/storage"
)

// RecordStore persists transformed production records.
type RecordStore interface {
	CreateMany(ctx context.Context, records []*storage.ProductionRecord) error
}

// MetadataStore persists extraction audit records.
type MetadataStore interface {
	Create(ctx context.Context, meta *storage.ExtractionMetadata) error
}

// Config holds pipeline tuning parameters.
type Config struct {
	// HeaderThreshold is the minimum ratio of data-like cells for a row
	// to count as the first data row.
	HeaderThreshold float64
	// NullThreshold is the minimum null ratio for group-column detection.
	NullThreshold float64
	// SampleSize is the number of value samples sent per column to the
	// classification oracle.
	SampleSize int
	// SampleSeed fixes the sampling shuffle for deterministic runs.
	// Zero seeds from the clock.
	SampleSeed int64
}

// Pipeline runs the ingestion sequence for one workbook per call. Runs
// share no mutable state, so concurrent ingestions of different files
// are safe.
type Pipeline struct {
	logger  *observability.Logger
	config  Config
	oracle  classify.Oracle
	records RecordStore
	metas   MetadataStore
}

// New creates an ingestion pipeline. Zero-valued thresholds fall back to
// the standard defaults.
func New(logger *observability.Logger, cfg Config, oracle classify.Oracle, records RecordStore, metas MetadataStore) *Pipeline {
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
	return &Pipeline{
		logger:  logger,
		config:  cfg,
		oracle:  oracle,
		records: records,
		metas:   metas,
	}
}

// IngestRequest describes one workbook ingestion.
type IngestRequest struct {
	Content  io.Reader
	FileName string
	// SheetName selects a sheet by name; empty selects the first sheet.
	SheetName string
	// GroupColumns, when non-nil, bypasses group-column detection and
	// forward-fills exactly the named columns.
	GroupColumns []string
}

// IngestResult reports what one ingestion produced.
type IngestResult struct {
	MetadataID     uuid.UUID
	Records        []*storage.ProductionRecord
	RecordsCreated int
	RowsParsed     int
	SheetName      string
	Header         ingest.HeaderInfo
	Expansion      ingest.ExpandInfo
	Mapping        *classify.Mapping
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
}

// Ingest runs the full sequence for a single workbook. A classification
// or storage failure aborts the ingest with nothing persisted from the
// failed step onward; the oracle is attempted exactly once.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	started := time.Now()
	log := p.logger.WithContext(ctx).WithSource(req.FileName)

	log.Info().
		Str("sheet", req.SheetName).
		Msg("Starting workbook ingestion")

	// Step 1: Read the raw grid
	grid, sheetName, err := ingest.ReadWorkbook(req.Content, req.SheetName)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}

	// Step 2+3: Detect header rows and merge them into column labels
	headerCount := ingest.DetectHeaderRows(grid, p.config.HeaderThreshold)
	table, headerInfo := ingest.MergeHeaders(grid, headerCount)

	log.Debug().
		Int("header_rows", headerCount).
		Int("columns", len(table.Columns)).
		Int("rows", table.NumRows()).
		Msg("Merged headers")

	// Step 4: Forward-fill group columns
	expanded, expandInfo := ingest.ExpandGroups(table, p.config.NullThreshold, req.GroupColumns)

	if len(expandInfo.ColumnsFilled) > 0 {
		log.Debug().
			Strs("columns_filled", expandInfo.ColumnsFilled).
			Int("cells_filled", expandInfo.CellsFilled()).
			Msg("Expanded group columns")
	}

	// Step 5: Sample column values for classification
	samples := ingest.SampleColumns(expanded, p.config.SampleSize, p.sampleRand())

	// Step 6: Classify columns via the oracle, single attempt
	mapping, err := p.oracle.ClassifyColumns(ctx, samples)
	if err != nil {
		log.Error().Err(err).Msg("Column classification failed, aborting ingest")
		return nil, fmt.Errorf("classify columns: %w", err)
	}

	// Step 7: Transform rows into production records
	source := &storage.RecordSource{File: req.FileName, Sheet: sheetName}
	records := normalize.Records(expanded, mapping, source)

	// Step 8: Persist records, then the extraction audit trail
	if err := p.records.CreateMany(ctx, records); err != nil {
		return nil, fmt.Errorf("persist records: %w", err)
	}

	meta, err := buildMetadata(req.FileName, sheetName, headerInfo, expandInfo, mapping, len(records))
	if err != nil {
		return nil, err
	}
	if err := p.metas.Create(ctx, meta); err != nil {
		return nil, fmt.Errorf("persist metadata: %w", err)
	}

	result := &IngestResult{
		MetadataID:     meta.ID,
		Records:        records,
		RecordsCreated: len(records),
		RowsParsed:     expanded.NumRows(),
		SheetName:      sheetName,
		Header:         headerInfo,
		Expansion:      expandInfo,
		Mapping:        mapping,
		StartedAt:      started,
		CompletedAt:    time.Now(),
	}
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	log.Info().
		Str("metadata_id", meta.ID.String()).
		Int("rows_parsed", result.RowsParsed).
		Int("records_created", result.RecordsCreated).
		Dur("duration", result.Duration).
		Msg("Workbook ingestion completed")

	return result, nil
}

func (p *Pipeline) sampleRand() *rand.Rand {
	seed := p.config.SampleSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func buildMetadata(file, sheet string, header ingest.HeaderInfo, expansion ingest.ExpandInfo, mapping *classify.Mapping, recordCount int) (*storage.ExtractionMetadata, error) {
	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, fmt.Errorf("encode column mapping: %w", err)
	}
	return &storage.ExtractionMetadata{
		SourceFile:     file,
		SourceSheet:    sheet,
		HeaderRowCount: header.HeaderRowCount,
		OriginalRows:   header.OriginalShape.Rows,
		OriginalCols:   header.OriginalShape.Cols,
		FinalRows:      header.ResultShape.Rows,
		FinalCols:      header.ResultShape.Cols,
		Columns:        header.Columns,
		ColumnsFilled:  expansion.ColumnsFilled,
		CellsFilled:    expansion.CellsFilled(),
		RecordsCreated: recordCount,
		ColumnMapping:  mappingJSON,
	}, nil
}
