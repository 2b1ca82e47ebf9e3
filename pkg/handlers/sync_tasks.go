package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/services"
)

// ScheduleTaskRequest is the POST body for a sync task definition. Schedule
// fields are flat on the wire; pointer fields distinguish absent from zero.
type ScheduleTaskRequest struct {
	DatasourceID       string `json:"datasource_id"`
	SourceTable        string `json:"source_table"`
	TargetTable        string `json:"target_table"`
	ScheduleType       string `json:"schedule_type"`
	ScheduleMinute     int    `json:"schedule_minute"`
	ScheduleHour       *int   `json:"schedule_hour"`
	ScheduleDayOfWeek  *int   `json:"schedule_day_of_week"`
	ScheduleDayOfMonth *int   `json:"schedule_day_of_month"`
	EnabledForAI       bool   `json:"enabled_for_ai"`
}

// UpdateTaskRequest is the PUT body. Every field is optional; absent fields
// keep the task's current value. Changing schedule_type requires whichever
// time fields the new cadence needs.
type UpdateTaskRequest struct {
	TargetTable        *string `json:"target_table"`
	ScheduleType       *string `json:"schedule_type"`
	ScheduleMinute     *int    `json:"schedule_minute"`
	ScheduleHour       *int    `json:"schedule_hour"`
	ScheduleDayOfWeek  *int    `json:"schedule_day_of_week"`
	ScheduleDayOfMonth *int    `json:"schedule_day_of_month"`
	EnabledForAI       *bool   `json:"enabled_for_ai"`
}

// SyncTaskResponse is one task with its schedule flattened into the same
// field names the create request uses.
type SyncTaskResponse struct {
	ID                 string `json:"id"`
	DatasourceID       string `json:"datasource_id"`
	SourceTable        string `json:"source_table"`
	TargetTable        string `json:"target_table"`
	ScheduleType       string `json:"schedule_type"`
	ScheduleMinute     int    `json:"schedule_minute"`
	ScheduleHour       *int   `json:"schedule_hour,omitempty"`
	ScheduleDayOfWeek  *int   `json:"schedule_day_of_week,omitempty"`
	ScheduleDayOfMonth *int   `json:"schedule_day_of_month,omitempty"`
	EnabledForAI       bool   `json:"enabled_for_ai"`

	LastRunAt      *string `json:"last_run_at,omitempty"`
	LastRunSuccess *bool   `json:"last_run_success,omitempty"`
	LastRunRows    *int64  `json:"last_run_rows,omitempty"`
	LastRunError   string  `json:"last_run_error,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toSyncTaskResponse(task *models.SyncTask) SyncTaskResponse {
	kind, minute, hour, dow, dom := models.RecurrenceFields(task.Recurrence)
	resp := SyncTaskResponse{
		ID:                 task.ID.String(),
		DatasourceID:       task.DatasourceID.String(),
		SourceTable:        task.SourceTable,
		TargetTable:        task.TargetTable,
		ScheduleType:       kind,
		ScheduleMinute:     minute,
		ScheduleHour:       hour,
		ScheduleDayOfWeek:  dow,
		ScheduleDayOfMonth: dom,
		EnabledForAI:       task.EnabledForAI,
		LastRunSuccess:     task.LastRunSuccess,
		LastRunRows:        task.LastRunRows,
		LastRunError:       task.LastRunError,
		CreatedAt:          task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:          task.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if task.LastRunAt != nil {
		at := task.LastRunAt.Format("2006-01-02T15:04:05Z07:00")
		resp.LastRunAt = &at
	}
	return resp
}

// SyncTasksHandler handles sync task scheduling requests.
type SyncTasksHandler struct {
	taskService     services.SyncTaskService
	metadataService services.MetadataService
	logger          *zap.Logger
}

// NewSyncTasksHandler creates a new sync tasks handler.
func NewSyncTasksHandler(taskService services.SyncTaskService, metadataService services.MetadataService, logger *zap.Logger) *SyncTasksHandler {
	return &SyncTasksHandler{
		taskService:     taskService,
		metadataService: metadataService,
		logger:          logger,
	}
}

// RegisterRoutes registers the sync tasks handler's routes on the given mux.
func (h *SyncTasksHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sync/schedule", h.Schedule)
	mux.HandleFunc("GET /api/sync/tasks", h.List)
	mux.HandleFunc("PUT /api/sync/tasks/{id}", h.Update)
	mux.HandleFunc("DELETE /api/sync/tasks/{id}", h.Delete)
	mux.HandleFunc("PATCH /api/sync/tasks/{id}/ai", h.ToggleAI)
	mux.HandleFunc("GET /api/sync/ai-enabled-tables", h.ListAIEnabled)
}

// decodeTask parses a task request body into a model. The target table
// defaults to the source table name.
func (h *SyncTasksHandler) decodeTask(w http.ResponseWriter, r *http.Request) (*models.SyncTask, bool) {
	var req ScheduleTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}

	datasourceID, err := uuid.Parse(req.DatasourceID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid datasource ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}

	rec, err := models.ParseRecurrence(req.ScheduleType, req.ScheduleMinute,
		req.ScheduleHour, req.ScheduleDayOfWeek, req.ScheduleDayOfMonth)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}

	target := req.TargetTable
	if target == "" {
		target = req.SourceTable
	}

	return &models.SyncTask{
		DatasourceID: datasourceID,
		SourceTable:  req.SourceTable,
		TargetTable:  target,
		Recurrence:   rec,
		EnabledForAI: req.EnabledForAI,
	}, true
}

// Schedule handles POST /api/sync/schedule.
// Scheduling an already-scheduled triple replaces its recurrence.
func (h *SyncTasksHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	task, ok := h.decodeTask(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Schedule(r.Context(), task); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success": true,
		"task":    toSyncTaskResponse(task),
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/sync/tasks.
func (h *SyncTasksHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.List(r.Context())
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	items := make([]SyncTaskResponse, len(tasks))
	for i, task := range tasks {
		items[i] = toSyncTaskResponse(task)
	}

	response := map[string]any{
		"success": true,
		"tasks":   items,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/sync/tasks/{id}. The body is a partial definition:
// only the fields present change, applied on top of the stored task.
func (h *SyncTasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid task ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	task, err := h.taskService.Get(r.Context(), id)
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	kind, minute, hour, dow, dom := models.RecurrenceFields(task.Recurrence)
	if req.ScheduleType != nil {
		kind = *req.ScheduleType
	}
	if req.ScheduleMinute != nil {
		minute = *req.ScheduleMinute
	}
	if req.ScheduleHour != nil {
		hour = req.ScheduleHour
	}
	if req.ScheduleDayOfWeek != nil {
		dow = req.ScheduleDayOfWeek
	}
	if req.ScheduleDayOfMonth != nil {
		dom = req.ScheduleDayOfMonth
	}

	rec, err := models.ParseRecurrence(kind, minute, hour, dow, dom)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	task.Recurrence = rec

	if req.TargetTable != nil && *req.TargetTable != "" {
		task.TargetTable = *req.TargetTable
	}
	if req.EnabledForAI != nil {
		task.EnabledForAI = *req.EnabledForAI
	}

	if err := h.taskService.Update(r.Context(), task); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success": true,
		"task":    toSyncTaskResponse(task),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/sync/tasks/{id}.
func (h *SyncTasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid task ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.taskService.Delete(r.Context(), id); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"success": true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ToggleAI handles PATCH /api/sync/tasks/{id}/ai.
func (h *SyncTasksHandler) ToggleAI(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid task ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req struct {
		EnabledForAI bool `json:"enabled_for_ai"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.taskService.SetEnabledForAI(r.Context(), id, req.EnabledForAI); err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success":        true,
		"enabled_for_ai": req.EnabledForAI,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListAIEnabled handles GET /api/sync/ai-enabled-tables.
func (h *SyncTasksHandler) ListAIEnabled(w http.ResponseWriter, r *http.Request) {
	tables, err := h.metadataService.ListAIEnabled(r.Context())
	if err != nil {
		RespondError(w, h.logger, err)
		return
	}

	response := map[string]any{
		"success": true,
		"tables":  tables,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
