package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/services"
)

// UpdateMetadataRequest is the PUT body for one table's user-owned fields.
type UpdateMetadataRequest struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// BulkUpdateMetadataRequest is the PUT body for a bulk user-field update.
type BulkUpdateMetadataRequest struct {
	Tables []services.MetadataEdit `json:"tables"`
}

// MetadataHandler handles table metadata registry requests.
type MetadataHandler struct {
	metadataService services.MetadataService
	logger          *zap.Logger
}

// NewMetadataHandler creates a new metadata handler.
func NewMetadataHandler(metadataService services.MetadataService, logger *zap.Logger) *MetadataHandler {
	return &MetadataHandler{
		metadataService: metadataService,
		logger:          logger,
	}
}

// RegisterRoutes registers the metadata handler's routes on the given mux.
func (h *MetadataHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/metadata", h.List)
	mux.HandleFunc("PUT /api/metadata", h.BulkUpdate)
	mux.HandleFunc("GET /api/tables/{name}/metadata", h.Get)
	mux.HandleFunc("PUT /api/tables/{name}/metadata", h.Update)
	mux.HandleFunc("POST /api/tables/{name}/analyze", h.Analyze)
}

// List handles GET /api/metadata.
func (h *MetadataHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.metadataService.List(r.Context())
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success": true,
		"tables":  entries,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// BulkUpdate handles PUT /api/metadata.
// Writes only the user-owned fields of each listed table.
func (h *MetadataHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req BulkUpdateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.metadataService.BulkUpdate(r.Context(), req.Tables); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"success": true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/tables/{name}/metadata.
func (h *MetadataHandler) Get(w http.ResponseWriter, r *http.Request) {
	meta, err := h.metadataService.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success":  true,
		"metadata": meta,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/tables/{name}/metadata.
func (h *MetadataHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	name := r.PathValue("name")
	if err := h.metadataService.UpdateUserFields(r.Context(), name, req.DisplayName, req.Description); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"success": true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Analyze handles POST /api/tables/{name}/analyze.
// Regenerates the auto description from the warehouse copy of the table.
func (h *MetadataHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	meta, err := h.metadataService.Analyze(r.Context(), r.PathValue("name"))
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success":  true,
		"metadata": meta,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
