package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// txBeginner is satisfied by *sql.DB. Repositories constructed over an
// existing transaction fall back to plain statement execution.
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// RecordFilter narrows production record queries. Zero-value fields are
// not applied. Style and OrderNumber match case-insensitive substrings;
// Status matches exactly.
type RecordFilter struct {
	Style       string
	Status      RecordStatus
	OrderNumber string
	Skip        int
	Limit       int
}

func (f RecordFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Style != "" {
		args = append(args, "%"+strings.ToLower(f.Style)+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(style) LIKE $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.OrderNumber != "" {
		args = append(args, "%"+strings.ToLower(f.OrderNumber)+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(order_number) LIKE $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const recordColumns = `id, order_number, style, fabric, color, quantity, status,
		dates, stages, stage_order, source_file, source_sheet, created_at, updated_at`

// ProductionRepository handles production record CRUD operations.
type ProductionRepository struct {
	db DB
}

// NewProductionRepository creates a new production record repository.
func NewProductionRepository(db DB) *ProductionRepository {
	return &ProductionRepository{db: db}
}

// Create inserts a single production record.
func (r *ProductionRepository) Create(ctx context.Context, rec *ProductionRecord) error {
	return insertRecord(ctx, r.db, rec)
}

// CreateMany inserts records as a single all-or-nothing batch. When the
// underlying handle can open transactions the batch is wrapped in one;
// a failure rolls the whole batch back.
func (r *ProductionRepository) CreateMany(ctx context.Context, records []*ProductionRecord) error {
	if len(records) == 0 {
		return nil
	}

	beginner, ok := r.db.(txBeginner)
	if !ok {
		for _, rec := range records {
			if err := insertRecord(ctx, r.db, rec); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	for _, rec := range records {
		if err := insertRecord(ctx, tx, rec); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetByID retrieves a production record by ID.
func (r *ProductionRepository) GetByID(ctx context.Context, id uuid.UUID) (*ProductionRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM production_records WHERE id = $1
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List retrieves production records matching the filter, newest first,
// along with the total match count before pagination.
func (r *ProductionRepository) List(ctx context.Context, filter RecordFilter) ([]*ProductionRecord, int, error) {
	where, args := filter.where()

	var total int
	countQuery := `SELECT COUNT(*) FROM production_records` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM production_records` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*ProductionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// Update rewrites the mutable fields of a production record.
func (r *ProductionRepository) Update(ctx context.Context, rec *ProductionRecord) error {
	rec.UpdatedAt = time.Now()

	dates, stages, stageOrder, err := encodeRecordJSON(rec)
	if err != nil {
		return err
	}

	query := `
		UPDATE production_records SET
			order_number = $1, style = $2, fabric = $3, color = $4, quantity = $5,
			status = $6, dates = $7, stages = $8, stage_order = $9,
			source_file = $10, source_sheet = $11, updated_at = $12
		WHERE id = $13
	`
	sourceFile, sourceSheet := sourceColumns(rec.Source)
	result, err := r.db.ExecContext(ctx, query,
		rec.OrderNumber, rec.Style, rec.Fabric, rec.Color, rec.Quantity,
		rec.Status, dates, stages, stageOrder,
		sourceFile, sourceSheet, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a production record by ID.
func (r *ProductionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM production_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every record matching the filter and returns the
// count removed. An empty filter deletes all records.
func (r *ProductionRepository) DeleteMany(ctx context.Context, filter RecordFilter) (int64, error) {
	where, args := filter.where()
	result, err := r.db.ExecContext(ctx, `DELETE FROM production_records`+where, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// FindByOrderNumber retrieves the most recent record with an exact order
// number match.
func (r *ProductionRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*ProductionRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM production_records
		WHERE order_number = $1
		ORDER BY created_at DESC, id
		LIMIT 1
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, orderNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// FindBySource retrieves all records extracted from a given workbook sheet.
func (r *ProductionRepository) FindBySource(ctx context.Context, file, sheet string) ([]*ProductionRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM production_records
		WHERE source_file = $1 AND source_sheet = $2
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.QueryContext(ctx, query, file, sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ProductionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertByOrderNumber updates the most recent record carrying the same
// order number, or inserts when none exists.
func (r *ProductionRepository) UpsertByOrderNumber(ctx context.Context, rec *ProductionRecord) error {
	existing, err := r.FindByOrderNumber(ctx, rec.OrderNumber)
	if errors.Is(err, ErrNotFound) {
		return r.Create(ctx, rec)
	}
	if err != nil {
		return err
	}

	rec.ID = existing.ID
	rec.CreatedAt = existing.CreatedAt
	return r.Update(ctx, rec)
}

func insertRecord(ctx context.Context, db DB, rec *ProductionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = time.Now()
	if rec.Status == "" {
		rec.Status = RecordStatusPending
	}
	if len(rec.StageOrder) == 0 {
		rec.StageOrder = DefaultStageOrder()
	}

	dates, stages, stageOrder, err := encodeRecordJSON(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO production_records (id, order_number, style, fabric, color, quantity,
			status, dates, stages, stage_order, source_file, source_sheet, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	sourceFile, sourceSheet := sourceColumns(rec.Source)
	_, err = db.ExecContext(ctx, query,
		rec.ID, rec.OrderNumber, rec.Style, rec.Fabric, rec.Color, rec.Quantity,
		rec.Status, dates, stages, stageOrder,
		sourceFile, sourceSheet, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// encodeRecordJSON serializes the document-shaped fields. JSON parameters
// travel as strings so both drivers store them into TEXT or JSONB columns.
func encodeRecordJSON(rec *ProductionRecord) (dates, stages, stageOrder interface{}, err error) {
	if rec.Dates != nil {
		b, e := json.Marshal(rec.Dates)
		if e != nil {
			return nil, nil, nil, fmt.Errorf("encode dates: %w", e)
		}
		dates = string(b)
	}
	if len(rec.Stages) > 0 {
		b, e := json.Marshal(rec.Stages)
		if e != nil {
			return nil, nil, nil, fmt.Errorf("encode stages: %w", e)
		}
		stages = string(b)
	}
	order := rec.StageOrder
	if len(order) == 0 {
		order = DefaultStageOrder()
	}
	b, e := json.Marshal(order)
	if e != nil {
		return nil, nil, nil, fmt.Errorf("encode stage order: %w", e)
	}
	stageOrder = string(b)
	return dates, stages, stageOrder, nil
}

func sourceColumns(src *RecordSource) (file, sheet string) {
	if src == nil {
		return "", ""
	}
	return src.File, src.Sheet
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s rowScanner) (*ProductionRecord, error) {
	rec := &ProductionRecord{}
	var (
		datesJSON      sql.NullString
		stagesJSON     sql.NullString
		stageOrderJSON sql.NullString
		sourceFile     string
		sourceSheet    string
	)

	err := s.Scan(
		&rec.ID, &rec.OrderNumber, &rec.Style, &rec.Fabric, &rec.Color, &rec.Quantity,
		&rec.Status, &datesJSON, &stagesJSON, &stageOrderJSON,
		&sourceFile, &sourceSheet, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if datesJSON.Valid && datesJSON.String != "" {
		dates := &ProductionDates{}
		if err := json.Unmarshal([]byte(datesJSON.String), dates); err != nil {
			return nil, fmt.Errorf("decode dates: %w", err)
		}
		rec.Dates = dates
	}
	if stagesJSON.Valid && stagesJSON.String != "" {
		if err := json.Unmarshal([]byte(stagesJSON.String), &rec.Stages); err != nil {
			return nil, fmt.Errorf("decode stages: %w", err)
		}
	}
	if stageOrderJSON.Valid && stageOrderJSON.String != "" {
		if err := json.Unmarshal([]byte(stageOrderJSON.String), &rec.StageOrder); err != nil {
			return nil, fmt.Errorf("decode stage order: %w", err)
		}
	}
	if len(rec.StageOrder) == 0 {
		rec.StageOrder = DefaultStageOrder()
	}
	if sourceFile != "" || sourceSheet != "" {
		rec.Source = &RecordSource{File: sourceFile, Sheet: sourceSheet}
	}
	return rec, nil
}

const metadataColumns = `id, source_file, source_sheet, header_row_count,
		original_rows, original_cols, final_rows, final_cols,
		columns, columns_filled, cells_filled, records_created, column_mapping, created_at`

// MetadataRepository handles extraction metadata operations. Metadata is
// immutable after creation, so only insert and read paths exist.
type MetadataRepository struct {
	db DB
}

// NewMetadataRepository creates a new extraction metadata repository.
func NewMetadataRepository(db DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// Create inserts one extraction audit record.
func (r *MetadataRepository) Create(ctx context.Context, meta *ExtractionMetadata) error {
	if meta.ID == uuid.Nil {
		meta.ID = uuid.New()
	}
	meta.CreatedAt = time.Now()

	columns, err := encodeStringList(meta.Columns)
	if err != nil {
		return err
	}
	filled, err := encodeStringList(meta.ColumnsFilled)
	if err != nil {
		return err
	}

	var mapping interface{}
	if len(meta.ColumnMapping) > 0 {
		mapping = string(meta.ColumnMapping)
	}

	query := `
		INSERT INTO extraction_metadata (id, source_file, source_sheet, header_row_count,
			original_rows, original_cols, final_rows, final_cols,
			columns, columns_filled, cells_filled, records_created, column_mapping, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query,
		meta.ID, meta.SourceFile, meta.SourceSheet, meta.HeaderRowCount,
		meta.OriginalRows, meta.OriginalCols, meta.FinalRows, meta.FinalCols,
		columns, filled, meta.CellsFilled, meta.RecordsCreated, mapping, meta.CreatedAt,
	)
	return err
}

// GetByID retrieves extraction metadata by ID.
func (r *MetadataRepository) GetByID(ctx context.Context, id uuid.UUID) (*ExtractionMetadata, error) {
	query := `
		SELECT ` + metadataColumns + `
		FROM extraction_metadata WHERE id = $1
	`
	meta, err := scanMetadata(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return meta, err
}

// List retrieves extraction metadata, newest first, with the total count.
// A non-empty sourceFile restricts the listing to that file's ingest runs.
func (r *MetadataRepository) List(ctx context.Context, sourceFile string, skip, limit int) ([]*ExtractionMetadata, int, error) {
	var (
		where string
		args  []interface{}
	)
	if sourceFile != "" {
		args = append(args, sourceFile)
		where = fmt.Sprintf(" WHERE source_file = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extraction_metadata`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + metadataColumns + ` FROM extraction_metadata` + where + ` ORDER BY created_at DESC, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if skip > 0 {
		args = append(args, skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var metas []*ExtractionMetadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, 0, err
		}
		metas = append(metas, meta)
	}
	return metas, total, rows.Err()
}

func scanMetadata(s rowScanner) (*ExtractionMetadata, error) {
	meta := &ExtractionMetadata{}
	var (
		columnsJSON sql.NullString
		filledJSON  sql.NullString
		mappingJSON sql.NullString
	)

	err := s.Scan(
		&meta.ID, &meta.SourceFile, &meta.SourceSheet, &meta.HeaderRowCount,
		&meta.OriginalRows, &meta.OriginalCols, &meta.FinalRows, &meta.FinalCols,
		&columnsJSON, &filledJSON, &meta.CellsFilled, &meta.RecordsCreated,
		&mappingJSON, &meta.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if columnsJSON.Valid && columnsJSON.String != "" {
		if err := json.Unmarshal([]byte(columnsJSON.String), &meta.Columns); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
	}
	if filledJSON.Valid && filledJSON.String != "" {
		if err := json.Unmarshal([]byte(filledJSON.String), &meta.ColumnsFilled); err != nil {
			return nil, fmt.Errorf("decode columns_filled: %w", err)
		}
	}
	if mappingJSON.Valid && mappingJSON.String != "" {
		meta.ColumnMapping = json.RawMessage(mappingJSON.String)
	}
	return meta, nil
}

func encodeStringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode string list: %w", err)
	}
	return string(b), nil
}
