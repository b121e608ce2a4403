// internal/handlers/orders.go
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// OrderHandler handles order HTTP requests
type OrderHandler struct {
	responder
	service ports.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(service ports.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		responder: responder{logger: logger.With(slog.String("handler", "orders"))},
		service:   service,
	}
}

// GetOrder handles GET /api/v1/orders/{id}. Shoppers only see their own orders.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to retrieve order")
		return
	}
	if user := userIDFrom(r); user == "" || user != order.UserID {
		h.respondError(w, r, http.StatusNotFound, "Order not found")
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// ListMyOrders handles GET /api/v1/orders
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	user := userIDFrom(r)
	if user == "" {
		h.respondError(w, r, http.StatusBadRequest, "user id is required")
		return
	}

	page, pageSize := pageParams(r)
	h.list(w, r, ports.OrderListParams{UserID: user, Page: page, PageSize: pageSize})
}

// AdminGetOrder handles GET /api/v1/admin/orders/{id}
func (h *OrderHandler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to retrieve order")
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// ListOrders handles GET /api/v1/admin/orders?status=&user_id=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	h.list(w, r, ports.OrderListParams{
		UserID:   r.URL.Query().Get("user_id"),
		Status:   domain.OrderStatus(r.URL.Query().Get("status")),
		Page:     page,
		PageSize: pageSize,
	})
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, params ports.OrderListParams) {
	result, err := h.service.ListOrders(r.Context(), params)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to list orders")
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// UpdateStatus handles PATCH /api/v1/admin/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to update order status")
		return
	}

	h.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id.String()),
		slog.String("status", string(order.Status)))

	h.respondJSON(w, http.StatusOK, order)
}

// UpdateStatusRequest moves an order to a new status
type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// Validate validates the request
func (r *UpdateStatusRequest) Validate() error {
	if !r.Status.IsValid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	return nil
}
