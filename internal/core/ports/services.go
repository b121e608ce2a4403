// internal/core/ports/services.go
package ports

import (
	"context"
	"io"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/google/uuid"
)

// SearchOptions tunes a product search
type SearchOptions struct {
	Limit    int
	UseFuzzy bool
	UserID   string
}

// SearchResponse is the outcome of a product search. OK is false when the catalog
// could not be read; such failures are never returned as errors.
type SearchResponse struct {
	OK         bool                  `json:"ok"`
	Results    []domain.SearchResult `json:"results"`
	Total      int                   `json:"total"`
	Suggestion string                `json:"suggestion,omitempty"`
}

// SearchService defines the application service port for product search
type SearchService interface {
	SearchProducts(ctx context.Context, query string, opts SearchOptions) *SearchResponse
}

// ProductListResult holds a page of products
type ProductListResult struct {
	Items      []domain.Product `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalCount int64            `json:"total_count"`
	TotalPages int              `json:"total_pages"`
}

// CatalogService defines the application service port for catalog management
type CatalogService interface {
	GetProduct(ctx context.Context, slug string) (*domain.Product, error)
	ListProducts(ctx context.Context, params ProductListParams) (*ProductListResult, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, id uuid.UUID, product *domain.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	UpsertVariants(ctx context.Context, productID uuid.UUID, variants []domain.Variant) error
	UploadImage(ctx context.Context, productID uuid.UUID, filename string, data io.Reader, contentType string) (string, error)
	ImportProducts(ctx context.Context, products []domain.Product) (int, error)

	CategoryTree(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// CheckoutRequest is everything needed to place an order
type CheckoutRequest struct {
	UserID   string
	Lines    []domain.CartLine
	Shipping domain.ShippingAddress
}

// OrderListResult holds a page of orders
type OrderListResult struct {
	Items      []domain.Order `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalCount int64          `json:"total_count"`
	TotalPages int            `json:"total_pages"`
}

// OrderService defines the application service port for orders
type OrderService interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, params OrderListParams) (*OrderListResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

// FavoriteService defines the application service port for favorites
type FavoriteService interface {
	Toggle(ctx context.Context, userID string, productID uuid.UUID) (bool, error)
	List(ctx context.Context, userID string) ([]domain.Product, error)
}
