// internal/handlers/response.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/pkg/logger"
)

const (
	maxJSONBody = 1 << 20
	// UserIDHeader carries the shopper identity set by the edge proxy
	UserIDHeader = "X-User-ID"
)

// responder carries the JSON helpers shared by every handler
type responder struct {
	logger *slog.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "err", err)
	}
}

func (h responder) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	requestID, _ := r.Context().Value(logger.ContextKeyRequestID).(string)
	h.respondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		RequestID: requestID,
	})
}

// respondServiceError maps domain errors to status codes; anything else is logged and
// reported as fallback with a 500.
func (h responder) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), fallback, "err", err)
		h.respondError(w, r, status, fallback)
		return
	}
	h.logger.DebugContext(r.Context(), "request rejected",
		slog.Int("status", status),
		"err", err)
	h.respondError(w, r, status, err.Error())
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

// userIDFrom returns the shopper id from the request header, falling back to the context
func userIDFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
		return id
	}
	id, _ := r.Context().Value(logger.ContextKeyUserID).(string)
	return id
}

// pageParams reads page and limit query values, capped at 100 items
func pageParams(r *http.Request) (page, pageSize int) {
	page, pageSize = 1, 20

	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			pageSize = min(l, 100)
		}
	}
	return page, pageSize
}
