// internal/core/ports/product_repository.go
package ports

import (
	"context"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/google/uuid"
)

// ProductRepository defines the persistence port for the catalog.
// Products returned by read methods carry variants and badge aggregates.
type ProductRepository interface {
	// SearchExact matches title, description or slug by case-insensitive substring,
	// or tags by case-insensitive membership.
	SearchExact(ctx context.Context, term string, limit int) ([]domain.Product, error)
	// ListRecent returns at most limit active products, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.Product, error)

	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)
	List(ctx context.Context, params ProductListParams) ([]domain.Product, int64, error)

	Save(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	UpsertBySlug(ctx context.Context, product *domain.Product) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	UpsertVariants(ctx context.Context, productID uuid.UUID, variants []domain.Variant) error
	AddImage(ctx context.Context, productID uuid.UUID, url string) error
}

// ProductListParams holds parameters for listing products
type ProductListParams struct {
	CategorySlug    string
	Gender          string
	IncludeInactive bool
	Page            int
	PageSize        int
}

// CategoryRepository defines the persistence port for categories
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	Save(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StockRepository reads stock snapshots for inventory probes
type StockRepository interface {
	FindStock(ctx context.Context, slugs []string) ([]domain.ProductStock, error)
}

// FavoriteRepository persists user favorites
type FavoriteRepository interface {
	// Toggle adds the favorite when absent and removes it otherwise; it reports the new state.
	Toggle(ctx context.Context, userID string, productID uuid.UUID) (bool, error)
	ListProducts(ctx context.Context, userID string) ([]domain.Product, error)
}
