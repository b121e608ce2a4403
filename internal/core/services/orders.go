// internal/core/services/orders.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// OrderService places orders and drives their status lifecycle
type OrderService struct {
	orders   ports.OrderRepository
	products ports.ProductRepository
	notifier ports.OrderNotifier
	taxRate  decimal.Decimal
	logger   *slog.Logger
}

var _ ports.OrderService = (*OrderService)(nil)

// NewOrderService creates a new order service. notifier may be nil.
func NewOrderService(
	orders ports.OrderRepository,
	products ports.ProductRepository,
	notifier ports.OrderNotifier,
	taxRate decimal.Decimal,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		notifier: notifier,
		taxRate:  taxRate,
		logger:   logger.With(slog.String("service", "orders")),
	}
}

// Checkout prices the cart lines against the catalog and places the order.
// Stock for every line is taken in the same transaction that stores the order.
func (s *OrderService) Checkout(ctx context.Context, req ports.CheckoutRequest) (*domain.Order, error) {
	if len(req.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	order := &domain.Order{
		UserID:   req.UserID,
		Shipping: req.Shipping,
		Items:    make([]domain.OrderItem, 0, len(req.Lines)),
	}

	for _, line := range req.Lines {
		if err := line.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}

		product, err := s.products.FindBySlug(ctx, line.Slug)
		if err != nil {
			return nil, fmt.Errorf("failed to load product %s: %w", line.Slug, err)
		}
		if !product.IsActive {
			return nil, fmt.Errorf("failed to load product %s: %w", line.Slug, domain.ErrNotFound)
		}

		order.Items = append(order.Items, domain.OrderItem{
			ProductID: product.ID,
			Slug:      product.Slug,
			Title:     product.Title,
			Color:     line.Color,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: product.PriceFor(line.Color, line.Size),
		})
	}

	if err := order.Validate(); err != nil {
		if errors.Is(err, domain.ErrEmptyCart) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	order.PrepareForStorage()
	order.CalculateTotals(s.taxRate)

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	ordersPlaced.Inc()

	if s.notifier != nil {
		if err := s.notifier.OrderPlaced(ctx, order); err != nil {
			s.logger.WarnContext(ctx, "failed to notify order placed",
				slog.String("order_id", order.ID.String()),
				"err", err)
		}
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID.String()),
		slog.String("user_id", order.UserID),
		slog.Int("items", order.ItemCount),
		slog.String("total", order.Total.StringFixed(2)))

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListOrders retrieves a page of orders, optionally filtered by user and status
func (s *OrderService) ListOrders(ctx context.Context, params ports.OrderListParams) (*ports.OrderListResult, error) {
	if params.Status != "" && !params.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, params.Status)
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	items, total, err := s.orders.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &ports.OrderListResult{
		Items:      items,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: total,
		TotalPages: totalPages(total, params.PageSize),
	}, nil
}

// UpdateStatus moves the order to status when the transition is allowed
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if !order.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, order.Status, status)
	}

	var paidAt *time.Time
	if status == domain.OrderStatusPaid {
		now := time.Now()
		paidAt = &now
	}

	if err := s.orders.UpdateStatus(ctx, id, status, paidAt); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	order.Status = status
	if paidAt != nil {
		order.PaidAt = paidAt
	}
	order.UpdatedAt = time.Now()

	return order, nil
}
