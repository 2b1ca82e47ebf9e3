package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/services"
)

// TestConnectionRequest carries unsaved connection details.
type TestConnectionRequest struct {
	SourceType string `json:"source_type"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
}

// CreateDatasourceRequest is the POST body for saving a profile.
type CreateDatasourceRequest struct {
	Name       string `json:"name"`
	SourceType string `json:"source_type"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
}

// DatasourceResponse is one profile with the password masked.
type DatasourceResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SourceType string `json:"source_type"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toDatasourceResponse(ds *models.DataSource) DatasourceResponse {
	return DatasourceResponse{
		ID:         ds.ID.String(),
		Name:       ds.Name,
		SourceType: ds.SourceType,
		Host:       ds.Host,
		Port:       ds.Port,
		User:       ds.User,
		Password:   models.MaskedPassword,
		Database:   ds.Database,
		CreatedAt:  ds.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  ds.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// DatasourcesHandler handles datasource profile and remote catalog requests.
type DatasourcesHandler struct {
	datasourceService services.DatasourceService
	logger            *zap.Logger
}

// NewDatasourcesHandler creates a new datasources handler.
func NewDatasourcesHandler(datasourceService services.DatasourceService, logger *zap.Logger) *DatasourcesHandler {
	return &DatasourcesHandler{
		datasourceService: datasourceService,
		logger:            logger,
	}
}

// RegisterRoutes registers the datasources handler's routes on the given mux.
func (h *DatasourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/datasource/test", h.TestConnection)
	mux.HandleFunc("POST /api/datasource", h.Create)
	mux.HandleFunc("GET /api/datasource", h.List)
	mux.HandleFunc("DELETE /api/datasource/{id}", h.Delete)
	mux.HandleFunc("GET /api/datasource/{id}/tables", h.ListTables)
	mux.HandleFunc("GET /api/datasource/{id}/tables/{table}/preview", h.Preview)
}

// TestConnection handles POST /api/datasource/test.
// Verifies the supplied credentials and returns the visible databases.
func (h *DatasourcesHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req TestConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	databases, err := h.datasourceService.TestConnection(r.Context(), services.ConnectionParams{
		SourceType: req.SourceType,
		Host:       req.Host,
		Port:       req.Port,
		User:       req.User,
		Password:   req.Password,
		Database:   req.Database,
	})
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success":   true,
		"databases": databases,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/datasource.
func (h *DatasourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDatasourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	ds := &models.DataSource{
		Name:       req.Name,
		SourceType: req.SourceType,
		Host:       req.Host,
		Port:       req.Port,
		User:       req.User,
		Database:   req.Database,
	}
	if err := h.datasourceService.Save(r.Context(), ds, req.Password); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success": true,
		"id":      ds.ID.String(),
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/datasource.
func (h *DatasourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	datasources, err := h.datasourceService.List(r.Context())
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	items := make([]DatasourceResponse, len(datasources))
	for i, ds := range datasources {
		items[i] = toDatasourceResponse(ds)
	}

	response := map[string]any{
		"success":     true,
		"datasources": items,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/datasource/{id}.
// The profile's sync tasks are removed with it.
func (h *DatasourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid datasource ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.datasourceService.Delete(r.Context(), id); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"success": true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListTables handles GET /api/datasource/{id}/tables.
func (h *DatasourcesHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid datasource ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	tables, err := h.datasourceService.ListTables(r.Context(), id)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	catalog := make([]models.RemoteTable, len(tables))
	for i, table := range tables {
		catalog[i] = models.RemoteTable{Name: table.Name, EstimatedRows: table.EstimatedRows}
	}

	response := map[string]any{
		"success": true,
		"tables":  catalog,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Preview handles GET /api/datasource/{id}/tables/{table}/preview?rows=N.
func (h *DatasourcesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid datasource ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	rowCap := 0
	if raw := r.URL.Query().Get("rows"); raw != "" {
		rowCap, err = strconv.Atoi(raw)
		if err != nil || rowCap < 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "rows must be a non-negative integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	preview, err := h.datasourceService.Preview(r.Context(), id, r.PathValue("table"), rowCap)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success": true,
		"preview": preview,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
