package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/logging"
)

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes the failure envelope and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, detail string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"detail":  detail,
	})
}

// StatusForError maps a service error onto an HTTP status code.
func StatusForError(err error) int {
	var schemaErr *apperrors.SchemaError
	var connErr *apperrors.ConnectionError

	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrInUse):
		return http.StatusConflict
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &connErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps, sanitizes, and writes a service error. 5xx causes are
// logged at error level; client errors at debug.
func RespondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusForError(err)
	detail := logging.SanitizeError(err)

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("Request rejected", zap.Int("status", status), zap.String("detail", detail))
	}

	if writeErr := ErrorResponse(w, status, detail); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
