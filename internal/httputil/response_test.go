package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tombee/graphexec/pkg/errors"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "success with map",
			status:     http.StatusOK,
			data:       map[string]string{"message": "success"},
			wantStatus: http.StatusOK,
			wantJSON:   `{"message":"success"}`,
		},
		{
			name:       "accepted with struct",
			status:     http.StatusAccepted,
			data:       struct{ ID string }{ID: "run-1"},
			wantStatus: http.StatusAccepted,
			wantJSON:   `{"ID":"run-1"}`,
		},
		{
			name:       "error status code",
			status:     http.StatusInternalServerError,
			data:       map[string]string{"error": "something went wrong"},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   `{"error":"something went wrong"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.status, tt.data)

			if w.Code != tt.wantStatus {
				t.Errorf("WriteJSON() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("WriteJSON() Content-Type = %v, want application/json", ct)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantJSON {
				t.Errorf("WriteJSON() body = %v, want %v", got, tt.wantJSON)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, "run not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("WriteError() status = %v, want %v", w.Code, http.StatusNotFound)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "run not found" {
		t.Errorf("WriteError() error = %v, want %v", body["error"], "run not found")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &errors.NotFoundError{Resource: "graph", ID: "x"}, http.StatusNotFound},
		{"validation", &errors.ValidationError{Field: "start_at", Message: "bad"}, http.StatusBadRequest},
		{"config", &errors.ConfigError{Key: "tool", Reason: "missing"}, http.StatusBadRequest},
		{"other", errors.Wrap(http.ErrServerClosed, "oops"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %v, want %v", got, tt.want)
			}
		})
	}
}
