package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/apperrors"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		detail     string
	}{
		{"bad request", http.StatusBadRequest, "invalid input"},
		{"not found", http.StatusNotFound, "resource not found"},
		{"internal error", http.StatusInternalServerError, "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			err := ErrorResponse(w, tt.statusCode, tt.detail)
			if err != nil {
				t.Fatalf("ErrorResponse returned error: %v", err)
			}

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != tt.statusCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.statusCode)
			}

			ct := resp.Header.Get("Content-Type")
			if ct != "application/json" {
				t.Errorf("Content-Type = %q, want %q", ct, "application/json")
			}

			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}

			if success, ok := body["success"].(bool); !ok || success {
				t.Errorf("body[success] = %v, want false", body["success"])
			}
			if body["detail"] != tt.detail {
				t.Errorf("body[detail] = %q, want %q", body["detail"], tt.detail)
			}
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", apperrors.ErrInvalidInput, http.StatusBadRequest},
		{"wrapped invalid input", fmt.Errorf("port: %w", apperrors.ErrInvalidInput), http.StatusBadRequest},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"conflict", apperrors.ErrConflict, http.StatusConflict},
		{"in use", apperrors.ErrInUse, http.StatusConflict},
		{
			"schema error",
			&apperrors.SchemaError{Table: "orders", Column: "shape", SourceType: "geometry"},
			http.StatusUnprocessableEntity,
		},
		{
			"connection error",
			apperrors.NewConnectionError(apperrors.ReasonNetwork, errors.New("connection refused")),
			http.StatusBadGateway,
		},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusForError(tt.err); got != tt.want {
				t.Errorf("StatusForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRespondError_SanitizesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	err := apperrors.NewConnectionError(apperrors.ReasonNetwork,
		errors.New("dial tcp: reader:hunter2@tcp(db.internal:3306): connection refused"))

	RespondError(w, zap.NewNop(), err)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	detail, _ := body["detail"].(string)
	if detail == "" {
		t.Fatal("expected a non-empty detail")
	}
	if strings.Contains(detail, "hunter2") {
		t.Errorf("detail leaks credentials: %q", detail)
	}
}

func TestWriteJSON_Status200(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"key": "value"}

	err := WriteJSON(w, http.StatusOK, data)
	if err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	resp := w.Result()
	defer resp.Body.Close()

	// Status 200 is the default for ResponseRecorder, WriteJSON should not call WriteHeader
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["key"] != "value" {
		t.Errorf("body[key] = %q, want %q", body["key"], "value")
	}
}

func TestWriteJSON_NonOKStatus(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]int{"count": 5}

	err := WriteJSON(w, http.StatusCreated, data)
	if err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}

func TestWriteJSON_UnencodableData(t *testing.T) {
	w := httptest.NewRecorder()
	data := make(chan int) // channels cannot be JSON-encoded

	err := WriteJSON(w, http.StatusOK, data)
	if err == nil {
		t.Error("expected error for unencodable data, got nil")
	}
}
