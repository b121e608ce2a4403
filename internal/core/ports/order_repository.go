// internal/core/ports/order_repository.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/google/uuid"
)

// OrderRepository defines the persistence port for orders
type OrderRepository interface {
	// Create stores the order and decrements stock for every item in one transaction.
	// It returns domain.ErrInsufficientStock when any item cannot be satisfied.
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, paidAt *time.Time) error
}

// OrderListParams holds parameters for listing orders
type OrderListParams struct {
	UserID   string
	Status   domain.OrderStatus
	Page     int
	PageSize int
}

// SearchLogRepository persists search analytics
type SearchLogRepository interface {
	Save(ctx context.Context, log *domain.SearchLog) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// TopTerms returns the most searched terms since the given time; zeroOnly keeps
	// only searches that returned nothing.
	TopTerms(ctx context.Context, since time.Time, limit int, zeroOnly bool) ([]domain.TermStat, error)
}
