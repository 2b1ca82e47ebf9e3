package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/services"
)

// SyncTableRequest is the POST body for a single table sync. TargetTable
// defaults to the source table name.
type SyncTableRequest struct {
	SourceTable string `json:"source_table"`
	TargetTable string `json:"target_table"`
}

// SyncMultipleRequest is the POST body for a batch sync.
type SyncMultipleRequest struct {
	Tables []SyncTableRequest `json:"tables"`
}

// SyncHandler handles on-demand sync requests.
type SyncHandler struct {
	syncService services.SyncService
	logger      *zap.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncService services.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// RegisterRoutes registers the sync handler's routes on the given mux.
func (h *SyncHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/datasource/{id}/sync", h.SyncOne)
	mux.HandleFunc("POST /api/datasource/{id}/sync-multiple", h.SyncMultiple)
}

// SyncOne handles POST /api/datasource/{id}/sync.
// The outcome rides in the result body; a failed table sync is still a 200.
func (h *SyncHandler) SyncOne(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid datasource ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req SyncTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.SourceTable == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "source_table is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.TargetTable == "" {
		req.TargetTable = req.SourceTable
	}

	result := h.syncService.SyncOne(r.Context(), id, req.SourceTable, req.TargetTable)

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SyncMultiple handles POST /api/datasource/{id}/sync-multiple.
// Results come back in request order; each table fails independently.
func (h *SyncHandler) SyncMultiple(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid datasource ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req SyncMultipleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	reqs := make([]services.SyncRequest, len(req.Tables))
	for i, t := range req.Tables {
		if t.SourceTable == "" {
			if err := ErrorResponse(w, http.StatusBadRequest, "source_table is required for every table"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		target := t.TargetTable
		if target == "" {
			target = t.SourceTable
		}
		reqs[i] = services.SyncRequest{SourceTable: t.SourceTable, TargetTable: target}
	}

	batch, err := h.syncService.SyncMultiple(r.Context(), id, reqs)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, batch); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
