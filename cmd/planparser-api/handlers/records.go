package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Nav1203/plan-parser/internal/observability"
	"github.com/Nav1203/plan-parser/internal/storage"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// RecordsHandler handles production record read and write requests.
type RecordsHandler struct {
	logger *observability.Logger
	repo   *storage.ProductionRepository
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(logger *observability.Logger, repo *storage.ProductionRepository) *RecordsHandler {
	return &RecordsHandler{
		logger: logger,
		repo:   repo,
	}
}

// RecordListResponseDTO represents a paginated list of production records.
type RecordListResponseDTO struct {
	Items []*storage.ProductionRecord `json:"items"`
	Total int                         `json:"total"`
	Skip  int                         `json:"skip"`
	Limit int                         `json:"limit"`
}

// List handles GET /api/v1/production.
//
// Query parameters: skip, limit, style (substring match), status (exact),
// order_number (substring match).
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
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

	status := r.URL.Query().Get("status")
	if status != "" && !storage.ValidRecordStatus(storage.RecordStatus(status)) {
		h.writeError(w, http.StatusBadRequest, "invalid status parameter", "status must be one of pending, in_production, completed, cancelled")
		return
	}

	filter := storage.RecordFilter{
		Style:       r.URL.Query().Get("style"),
		Status:      storage.RecordStatus(status),
		OrderNumber: r.URL.Query().Get("order_number"),
		Skip:        skip,
		Limit:       limit,
	}

	items, total, err := h.repo.List(ctx, filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list records", err.Error())
		return
	}
	if items == nil {
		items = []*storage.ProductionRecord{}
	}

	resp := RecordListResponseDTO{
		Items: items,
		Total: total,
		Skip:  skip,
		Limit: limit,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Get handles GET /api/v1/production/{id}.
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid record id", err.Error())
		return
	}

	rec, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "record not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to get record", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// Delete handles DELETE /api/v1/production/{id}.
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid record id", err.Error())
		return
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "record not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to delete record", err.Error())
		return
	}

	h.logger.Info().Str("record_id", id.String()).Msg("Record deleted")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Record deleted successfully"})
}

// GetByOrder handles GET /api/v1/production/order/{orderNumber}.
//
// When several records share the order number the most recent one is
// returned.
func (h *RecordsHandler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "orderNumber is required", "")
		return
	}

	rec, err := h.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "record not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to get record", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// UpsertRecordDTO represents the writable fields of a production record.
type UpsertRecordDTO struct {
	Style      string                        `json:"style"`
	Fabric     *string                       `json:"fabric"`
	Color      *string                       `json:"color"`
	Quantity   int                           `json:"quantity"`
	Status     string                        `json:"status"`
	Dates      *storage.ProductionDates      `json:"dates"`
	Stages     map[string]storage.StageData  `json:"stages"`
	StageOrder []string                      `json:"stage_order"`
}

// UpsertByOrder handles PUT /api/v1/production/order/{orderNumber}.
//
// Updates the existing record with that order number or creates one when
// none exists.
func (h *RecordsHandler) UpsertByOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		h.writeError(w, http.StatusBadRequest, "orderNumber is required", "")
		return
	}

	var reqDTO UpsertRecordDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if reqDTO.Style == "" {
		h.writeError(w, http.StatusBadRequest, "style is required", "")
		return
	}
	if reqDTO.Status != "" && !storage.ValidRecordStatus(storage.RecordStatus(reqDTO.Status)) {
		h.writeError(w, http.StatusBadRequest, "invalid status", "status must be one of pending, in_production, completed, cancelled")
		return
	}

	rec := &storage.ProductionRecord{
		OrderNumber: orderNumber,
		Style:       reqDTO.Style,
		Fabric:      reqDTO.Fabric,
		Color:       reqDTO.Color,
		Quantity:    reqDTO.Quantity,
		Status:      storage.RecordStatus(reqDTO.Status),
		Dates:       reqDTO.Dates,
		Stages:      reqDTO.Stages,
		StageOrder:  reqDTO.StageOrder,
	}

	if err := h.repo.UpsertByOrderNumber(ctx, rec); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to upsert record", err.Error())
		return
	}

	h.logger.Info().
		Str("order_number", orderNumber).
		Str("record_id", rec.ID.String()).
		Msg("Record upserted")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New(name + " must not be negative")
	}
	return v, nil
}

func (h *RecordsHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
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
