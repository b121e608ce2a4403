// internal/handlers/favorites.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ammerola/storefront-be/internal/core/ports"
)

// FavoriteHandler serves the favorites of the calling user
type FavoriteHandler struct {
	responder
	service ports.FavoriteService
}

func NewFavoriteHandler(service ports.FavoriteService, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		responder: responder{logger: logger.With(slog.String("handler", "favorites"))},
		service:   service,
	}
}

// Toggle handles POST /api/v1/favorites/{productId}
func (h *FavoriteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(r.PathValue("productId"))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	favorite, err := h.service.Toggle(r.Context(), userIDFrom(r), productID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to toggle favorite")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": productID,
		"favorite":   favorite,
	})
}

// List handles GET /api/v1/favorites
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context(), userIDFrom(r))
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to list favorites")
		return
	}
	h.respondJSON(w, http.StatusOK, products)
}
