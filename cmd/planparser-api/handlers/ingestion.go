// Package handlers provides HTTP handlers for the plan parser API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/ingest"
	"github.com/Nav1203/plan-parser/internal/observability"
	"github.com/Nav1203/plan-parser/internal/pipeline"
)

// IngestionHandler handles spreadsheet upload and extraction requests.
type IngestionHandler struct {
	logger         *observability.Logger
	pipeline       *pipeline.Pipeline
	maxUploadBytes int64
}

// NewIngestionHandler creates a new ingestion handler.
func NewIngestionHandler(logger *observability.Logger, p *pipeline.Pipeline, maxUploadBytes int64) *IngestionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &IngestionHandler{
		logger:         logger,
		pipeline:       p,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadResponseDTO represents the API response for a processed upload.
type UploadResponseDTO struct {
	Message        string   `json:"message"`
	MetadataID     string   `json:"metadata_id"`
	SheetName      string   `json:"sheet_name"`
	HeaderRowCount int      `json:"header_row_count"`
	Columns        []string `json:"columns"`
	RowsParsed     int      `json:"rows_parsed"`
	RecordsCreated int      `json:"records_created"`
	DurationMS     int64    `json:"duration_ms"`
}

// Upload handles POST /api/v1/production/upload.
//
// The request is multipart form data with the workbook under the "file"
// field. Optional form fields: "sheet" selects a sheet by name, and
// "group_columns" names merged columns to fill as a comma separated list,
// bypassing heuristic detection.
func (h *IngestionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file field is required", err.Error())
		return
	}
	defer file.Close()

	if !ingest.AllowedExtension(header.Filename) {
		h.writeError(w, http.StatusBadRequest, "Invalid file type. Please upload an Excel file (.xlsx or .xls)", "")
		return
	}

	sheet := r.FormValue("sheet")
	groupColumns := splitCommaList(r.FormValue("group_columns"))

	h.logger.Info().
		Str("file", header.Filename).
		Str("sheet", sheet).
		Int64("size_bytes", header.Size).
		Msg("Processing upload")

	result, err := h.pipeline.Ingest(ctx, pipeline.IngestRequest{
		Content:      file,
		FileName:     header.Filename,
		SheetName:    sheet,
		GroupColumns: groupColumns,
	})
	if err != nil {
		status := http.StatusInternalServerError
		var readErr *ingest.ReadError
		var parseErr *classify.ParseError
		var schemaErr *classify.SchemaError
		if errors.As(err, &readErr) || errors.As(err, &parseErr) || errors.As(err, &schemaErr) {
			status = http.StatusUnprocessableEntity
		}
		h.writeError(w, status, "extraction failed", err.Error())
		return
	}

	resp := UploadResponseDTO{
		Message:        "Workbook processed",
		MetadataID:     result.MetadataID.String(),
		SheetName:      result.SheetName,
		HeaderRowCount: result.Header.HeaderRowCount,
		Columns:        result.Header.Columns,
		RowsParsed:     result.RowsParsed,
		RecordsCreated: result.RecordsCreated,
		DurationMS:     result.Duration.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// splitCommaList splits a comma separated form value, trimming whitespace
// and dropping empty entries.
func splitCommaList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (h *IngestionHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
