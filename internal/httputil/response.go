package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tombee/graphexec/pkg/errors"
)

// WriteJSON writes a JSON response with the given status code and data.
// If encoding fails, it logs the error.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", slog.Any("error", err))
	}
}

// WriteError writes a JSON error response with the given status code and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{
		"error": message,
	})
}

// WriteErrorFrom maps a typed error to an HTTP status and writes it.
func WriteErrorFrom(w http.ResponseWriter, err error) {
	WriteError(w, StatusFor(err), err.Error())
}

// StatusFor returns the HTTP status code for a typed error: 404 for not
// found, 400 for validation and configuration problems, 500 otherwise.
func StatusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidation(err):
		return http.StatusBadRequest
	default:
		var ce *errors.ConfigError
		if errors.As(err, &ce) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
