// internal/handlers/cart.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ammerola/storefront-be/internal/cart"
	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
	"github.com/ammerola/storefront-be/internal/pkg/logger"
)

// CartSessions resolves live cart sessions by id. A session is held until release is called.
type CartSessions interface {
	Acquire(ctx context.Context, id string) (s *cart.Session, release func(), err error)
	Delete(ctx context.Context, id string) error
}

// CartHandler serves cart sessions, checkout and stock validation
type CartHandler struct {
	responder
	sessions CartSessions
	orders   ports.OrderService
	probe    ports.InventoryProbe
}

// NewCartHandler creates a new cart handler
func NewCartHandler(sessions CartSessions, orders ports.OrderService, probe ports.InventoryProbe, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		responder: responder{logger: logger.With(slog.String("handler", "cart"))},
		sessions:  sessions,
		orders:    orders,
		probe:     probe,
	}
}

// CartView is the client view of a cart
type CartView struct {
	ID           string                `json:"id"`
	Lines        []domain.CartLine     `json:"lines"`
	Warnings     []domain.StockWarning `json:"warnings"`
	ItemCount    int                   `json:"item_count"`
	RefreshCount uint64                `json:"refresh_count"`
}

func newCartView(s *cart.Session) CartView {
	lines := s.Store.Lines()
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return CartView{
		ID:           s.ID,
		Lines:        lines,
		Warnings:     s.Reconciler.Warnings(),
		ItemCount:    count,
		RefreshCount: s.Reconciler.RefreshCount(),
	}
}

// GetCart handles GET /api/v1/carts/{id}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	h.respondJSON(w, http.StatusOK, newCartView(s))
}

// AddItem handles POST /api/v1/carts/{id}/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	if err := s.Store.Add(req.ToDomain()); err != nil {
		h.respondServiceError(w, r, err, "Failed to add item")
		return
	}
	h.respondJSON(w, http.StatusOK, newCartView(s))
}

// UpdateItem handles PUT /api/v1/carts/{id}/items; a quantity of zero removes the line
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Slug == "" {
		h.respondError(w, r, http.StatusBadRequest, "slug is required")
		return
	}
	if req.Quantity < 0 || req.Quantity > domain.MaxLineQuantity {
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("quantity must be between 0 and %d", domain.MaxLineQuantity))
		return
	}

	s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	if !s.Store.SetQuantity(req.ToDomain().Key(), req.Quantity) {
		h.respondError(w, r, http.StatusNotFound, "Cart line not found")
		return
	}
	h.respondJSON(w, http.StatusOK, newCartView(s))
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items?slug=&color=&size=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := domain.LineKey{Slug: q.Get("slug"), Color: q.Get("color"), Size: q.Get("size")}
	if key.Slug == "" {
		h.respondError(w, r, http.StatusBadRequest, "slug is required")
		return
	}

	s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	if !s.Store.Remove(key) {
		h.respondError(w, r, http.StatusNotFound, "Cart line not found")
		return
	}
	h.respondJSON(w, http.StatusOK, newCartView(s))
}

// DeleteCart handles DELETE /api/v1/carts/{id}
func (h *CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !cart.ValidID(id) {
		h.respondError(w, r, http.StatusBadRequest, "Invalid cart ID")
		return
	}
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, "Failed to delete cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/v1/carts/{id}/refresh. The pass runs after the debounce window.
func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()
	s.Reconciler.Refresh()
	h.respondJSON(w, http.StatusAccepted, newCartView(s))
}

// Checkout handles POST /api/v1/carts/{id}/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, release, ok := h.session(w, r)
	if !ok {
		return
	}
	defer release()

	order, err := h.orders.Checkout(ctx, ports.CheckoutRequest{
		UserID:   userIDFrom(r),
		Lines:    s.Store.Lines(),
		Shipping: req.Shipping,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			// let the reconciler bring the cart back in line with stock
			s.Reconciler.Refresh()
		}
		h.respondServiceError(w, r, err, "Failed to place order")
		return
	}

	s.Store.Clear()

	h.logger.InfoContext(ctx, "order placed",
		slog.String("cart_id", s.ID),
		slog.String("order_id", order.ID.String()))

	h.respondJSON(w, http.StatusCreated, order)
}

// ValidateStock handles POST /api/v1/stock/validate
func (h *CartHandler) ValidateStock(w http.ResponseWriter, r *http.Request) {
	var req StockValidationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.probe.Probe(r.Context(), req.Lines)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stock validation failed", "err", err)
		resp = &domain.StockProbeResponse{OK: false, Adjustments: []domain.StockAdjustment{}}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// WithCartID tags the request context with the cart id so every log line carries it
func WithCartID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id := r.PathValue("id"); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), logger.ContextKeyCartID, id))
		}
		next(w, r)
	}
}

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*cart.Session, func(), bool) {
	s, release, err := h.sessions.Acquire(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to open cart")
		return nil, nil, false
	}
	return s, release, true
}

// CartItemRequest identifies a cart line and its quantity
type CartItemRequest struct {
	Slug     string `json:"slug"`
	Color    string `json:"color,omitempty"`
	Size     string `json:"size,omitempty"`
	Quantity int    `json:"quantity"`
	Title    string `json:"title,omitempty"`
}

// Validate validates the request
func (r *CartItemRequest) Validate() error {
	line := r.ToDomain()
	return line.Validate()
}

// ToDomain converts the request to a cart line
func (r *CartItemRequest) ToDomain() domain.CartLine {
	return domain.CartLine{
		Slug:     r.Slug,
		Color:    r.Color,
		Size:     r.Size,
		Quantity: r.Quantity,
		Title:    r.Title,
	}
}

// CheckoutRequest is the body of a checkout
type CheckoutRequest struct {
	Shipping domain.ShippingAddress `json:"shipping"`
}

// StockValidationRequest is a batch of lines to check against stock
type StockValidationRequest struct {
	Lines []domain.CartLine `json:"lines"`
}

// Validate validates the request
func (r *StockValidationRequest) Validate() error {
	if len(r.Lines) == 0 {
		return fmt.Errorf("lines are required")
	}
	for i := range r.Lines {
		if err := r.Lines[i].Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
	}
	return nil
}
