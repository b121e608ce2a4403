package ports

import (
	"context"
	"io"

	"github.com/ammerola/storefront-be/internal/core/domain"
)

// InventoryProbe checks a batch of cart lines against live stock.
// Lines missing from the response need no adjustment.
type InventoryProbe interface {
	Probe(ctx context.Context, lines []domain.CartLine) (*domain.StockProbeResponse, error)
}

// SearchAnalytics records searches. Callers treat it as fire-and-forget.
type SearchAnalytics interface {
	Record(ctx context.Context, entry domain.SearchLog) error
}

// OrderNotifier is told about placed orders
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order *domain.Order) error
}

// ObjectStorage holds product images and uploaded catalog spreadsheets
type ObjectStorage interface {
	// Upload stores data under key and returns its public location
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
