package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"zblog/internal/ledger"
	"zblog/internal/models"
	"zblog/internal/orchestrator"
	"zblog/internal/session"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

type requestIDKey struct{}

// withRequestID tags every request with an id, reusing the caller's when present
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "request_id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// statusFor maps a service error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrPostNotFound), errors.Is(err, models.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSignatureUnavailable), errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, orchestrator.ErrTransactionFailed), errors.Is(err, orchestrator.ErrDecryptFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON sends v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, message string, code int) {
	writeJSON(w, code, models.ErrorResponse{
		Error:     http.StatusText(code),
		Message:   message,
		Code:      code,
		RequestID: requestID(r),
	})
}

// sendServiceError logs err and sends it with its mapped status
func (s *Server) sendServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "op", op, "request_id", requestID(r), "error", err)
	} else {
		slog.Debug("Request rejected", "op", op, "request_id", requestID(r), "status", code, "error", err)
	}
	s.sendError(w, r, err.Error(), code)
}

// decodeBody decodes a JSON request body into v
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// pagination parses ?limit= and ?offset= with the given default limit
func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	query := r.URL.Query()

	limit = defaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
