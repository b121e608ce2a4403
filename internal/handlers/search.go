// internal/handlers/search.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammerola/storefront-be/internal/core/ports"
)

// SearchHandler serves product search
type SearchHandler struct {
	responder
	service ports.SearchService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service ports.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		responder: responder{logger: logger.With(slog.String("handler", "search"))},
		service:   service,
	}
}

// Search handles GET /api/v1/search?q=&limit=&fuzzy=
// Catalog failures are reported in the body as ok=false, never as an HTTP error.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := ports.SearchOptions{
		UseFuzzy: true,
		UserID:   userIDFrom(r),
	}
	if v := q.Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			h.respondError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = l
	}
	if v := q.Get("fuzzy"); v != "" {
		fuzzy, err := strconv.ParseBool(v)
		if err != nil {
			h.respondError(w, r, http.StatusBadRequest, "fuzzy must be a boolean")
			return
		}
		opts.UseFuzzy = fuzzy
	}

	resp := h.service.SearchProducts(r.Context(), q.Get("q"), opts)
	w.Header().Set("Cache-Control", "no-store")
	h.respondJSON(w, http.StatusOK, resp)
}
