package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/emotion-check/internal/analysis"
	"github.com/kozaktomas/emotion-check/internal/api"
	"github.com/kozaktomas/emotion-check/internal/session"
	"github.com/kozaktomas/emotion-check/internal/web/middleware"
	"github.com/rs/zerolog/log"
)

// Shared error messages.
const (
	errNoData             = "No data received"
	errInvalidRequestBody = "invalid request body"
	errSessionNotFound    = "Session not found"
	errEndpointNotFound   = "Endpoint not found"
	errInternal           = "Internal server error"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, api.ErrorResponse{Response: api.Response{Success: false, Error: message}})
}

// decodeJSON reads the request body into dst. It writes the error response and
// returns false when the body is missing, empty, malformed or too large.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, middleware.FileTooLargeMessage)
			return false
		}
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		respondError(w, http.StatusBadRequest, errNoData)
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	if len(probe) == 0 {
		respondError(w, http.StatusBadRequest, errNoData)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// respondServiceError maps an analysis service error to a status code.
func respondServiceError(w http.ResponseWriter, err error, op string) {
	var reqErr *analysis.RequestError
	switch {
	case errors.As(err, &reqErr):
		respondError(w, http.StatusBadRequest, reqErr.Message)
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, errSessionNotFound)
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// NotFound answers unknown routes with a JSON error.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusNotFound, errEndpointNotFound)
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
