package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Nav1203/plan-parser/internal/observability"
	"github.com/Nav1203/plan-parser/internal/storage"
)

// MetadataHandler handles extraction metadata read requests.
type MetadataHandler struct {
	logger *observability.Logger
	repo   *storage.MetadataRepository
}

// NewMetadataHandler creates a new metadata handler.
func NewMetadataHandler(logger *observability.Logger, repo *storage.MetadataRepository) *MetadataHandler {
	return &MetadataHandler{
		logger: logger,
		repo:   repo,
	}
}

// MetadataListResponseDTO represents a paginated list of extraction runs.
type MetadataListResponseDTO struct {
	Items []*storage.ExtractionMetadata `json:"items"`
	Total int                           `json:"total"`
	Skip  int                           `json:"skip"`
	Limit int                           `json:"limit"`
}

// List handles GET /api/v1/metadata.
func (h *MetadataHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid skip parameter", err.Error())
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit parameter", err.Error())
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	sourceFile := r.URL.Query().Get("source_file")

	items, total, err := h.repo.List(ctx, sourceFile, skip, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list metadata", err.Error())
		return
	}
	if items == nil {
		items = []*storage.ExtractionMetadata{}
	}

	resp := MetadataListResponseDTO{
		Items: items,
		Total: total,
		Skip:  skip,
		Limit: limit,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Get handles GET /api/v1/metadata/{id}.
func (h *MetadataHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid metadata id", err.Error())
		return
	}

	meta, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "metadata not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to get metadata", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meta)
}

func (h *MetadataHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
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
