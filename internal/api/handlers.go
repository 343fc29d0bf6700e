package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rma-advocacia/client-portal/internal/engagement"
	"github.com/rma-advocacia/client-portal/internal/portal"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondCommandError maps portal and engagement errors onto the envelope
func respondCommandError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var notFound *engagement.NotFoundError
	var invalid *engagement.ValidationError

	switch {
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &invalid):
		respondError(w, http.StatusBadRequest, "validation_error", invalid.Error())
	case errors.Is(err, portal.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", "no active session")
	default:
		attrs := []any{"error", err, "request_id", middleware.GetReqID(r.Context())}
		if client := ClientFromContext(r.Context()); client != nil {
			attrs = append(attrs, "client", client.MaskedCode())
		}
		slog.Error("failed to "+action, attrs...)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

// pathParam returns a URL parameter with percent-escapes resolved.
// Stage and document names carry spaces and accents.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// decodeJSON decodes the request body, answering 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results, ok := s.health.CheckAll(r.Context())
	if !ok {
		slog.Warn("readiness check failed", "checks", results)
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": results,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": results,
	})
}
