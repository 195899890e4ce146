package handler

// Response helpers. Every error response has the same shape:
//
//	{"error": "not_found", "message": "playlist not found with id abc123"}
//
// so the frontend always knows what fields to expect. Revoked-access errors
// additionally carry "error_type": "spotify_access_revoked" so the client
// can prompt a reconnect instead of showing a generic failure.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/vibelist/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
	Field     string `json:"field,omitempty"`
}

// writeJSON sends a JSON response. Headers and status must go out before the
// body; once Encode writes, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it. The service
// layer stays free of HTTP status codes; this is the single place they are
// assigned.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrInsufficientCredits):
			status = http.StatusForbidden
			errorType = "insufficient_credits"
		case errors.Is(err, apperror.ErrAccessRevoked):
			// The provider's own status (401 or 403) passes through.
			status = appErr.Status
			if status == 0 {
				status = http.StatusForbidden
			}
			writeJSON(w, status, ErrorResponse{
				Error:     "access_revoked",
				Message:   appErr.Message,
				ErrorType: "spotify_access_revoked",
			})
			return
		case errors.Is(err, apperror.ErrRateLimited):
			status = http.StatusTooManyRequests
			errorType = "rate_limited"
		case errors.Is(err, apperror.ErrGeneration):
			status = http.StatusBadGateway
			errorType = "generation_failed"
		case errors.Is(err, apperror.ErrUpstream):
			status = http.StatusBadGateway
			errorType = "upstream_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Unknown error: a generic 500. The raw message might contain SQL or
	// file paths, so it never reaches the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
