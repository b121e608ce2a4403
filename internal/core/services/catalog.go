// internal/core/services/catalog.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// CategoryTreeCacheKey holds the rebuilt category tree
const CategoryTreeCacheKey = "categories"

const categoryTreeTTL = 10 * time.Minute

// CatalogService manages products, variants, categories and product images
type CatalogService struct {
	products      ports.ProductRepository
	categories    ports.CategoryRepository
	storage       ports.ObjectStorage
	cache         ports.CacheRepository
	invalidator   CatalogInvalidator
	maxImageBytes int64
	logger        *slog.Logger
}

var _ ports.CatalogService = (*CatalogService)(nil)

// CatalogDeps groups the collaborators of the catalog service.
// Storage, Cache and Invalidator may be nil.
type CatalogDeps struct {
	Products      ports.ProductRepository
	Categories    ports.CategoryRepository
	Storage       ports.ObjectStorage
	Cache         ports.CacheRepository
	Invalidator   CatalogInvalidator
	MaxImageBytes int64
}

// NewCatalogService creates a new catalog service
func NewCatalogService(deps CatalogDeps, logger *slog.Logger) *CatalogService {
	maxBytes := deps.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &CatalogService{
		products:      deps.Products,
		categories:    deps.Categories,
		storage:       deps.Storage,
		cache:         deps.Cache,
		invalidator:   deps.Invalidator,
		maxImageBytes: maxBytes,
		logger:        logger.With(slog.String("service", "catalog")),
	}
}

// GetProduct returns an active product by slug
func (s *CatalogService) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if !product.IsActive {
		return nil, fmt.Errorf("failed to get product: %w", domain.ErrNotFound)
	}
	return product, nil
}

// ListProducts retrieves a page of products
func (s *CatalogService) ListProducts(ctx context.Context, params ports.ProductListParams) (*ports.ProductListResult, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	items, total, err := s.products.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &ports.ProductListResult{
		Items:      items,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: total,
		TotalPages: totalPages(total, params.PageSize),
	}, nil
}

// CreateProduct validates and stores a new product with its variants
func (s *CatalogService) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	product.PrepareForStorage()

	if err := s.products.Save(ctx, product); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID.String()),
		slog.String("slug", product.Slug))

	return nil
}

// UpdateProduct replaces the product fields. Variants are upserted when provided.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	product.ID = id
	product.PrepareForStorage()

	if err := s.products.Update(ctx, product); err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	if len(product.Variants) > 0 {
		if err := s.products.UpsertVariants(ctx, id, product.Variants); err != nil {
			return fmt.Errorf("failed to update variants: %w", err)
		}
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", id.String()))

	return nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.products.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id.String()))
	return nil
}

// UpsertVariants creates or updates variants keyed by color and size
func (s *CatalogService) UpsertVariants(ctx context.Context, productID uuid.UUID, variants []domain.Variant) error {
	if len(variants) == 0 {
		return fmt.Errorf("%w: at least one variant is required", domain.ErrValidation)
	}
	for i := range variants {
		if err := variants[i].Validate(); err != nil {
			return fmt.Errorf("%w: variant %s/%s: %v", domain.ErrValidation, variants[i].Color, variants[i].Size, err)
		}
		if variants[i].ID == uuid.Nil {
			variants[i].ID = uuid.New()
		}
		variants[i].ProductID = productID
	}

	if err := s.products.UpsertVariants(ctx, productID, variants); err != nil {
		return fmt.Errorf("failed to upsert variants: %w", err)
	}

	s.invalidate(ctx)
	return nil
}

// UploadImage stores an image for the product and appends its URL to the product images
func (s *CatalogService) UploadImage(ctx context.Context, productID uuid.UUID, filename string, data io.Reader, contentType string) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("image storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrValidation, contentType)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return "", fmt.Errorf("failed to find product: %w", err)
	}

	body, err := io.ReadAll(io.LimitReader(data, s.maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(body)) > s.maxImageBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", domain.ErrValidation, s.maxImageBytes)
	}

	key := fmt.Sprintf("products/%s/%s%s", productID, uuid.New(), strings.ToLower(filepath.Ext(filename)))
	url, err := s.storage.Upload(ctx, key, bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	if err := s.products.AddImage(ctx, productID, url); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned image", slog.String("key", key), "err", delErr)
		}
		return "", fmt.Errorf("failed to attach image: %w", err)
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "product image uploaded",
		slog.String("product_id", productID.String()),
		slog.String("key", key),
		slog.Int("bytes", len(body)))

	return url, nil
}

// ImportProducts upserts products by slug. CategoryName is resolved against existing
// categories by name or slug. It returns how many products were stored; per-row
// failures are joined into the returned error.
func (s *CatalogService) ImportProducts(ctx context.Context, products []domain.Product) (int, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load categories: %w", err)
	}

	lookup := make(map[string]uuid.UUID, len(categories)*2)
	for _, c := range categories {
		lookup[strings.ToLower(c.Name)] = c.ID
		lookup[c.Slug] = c.ID
	}

	var errs []error
	imported := 0
	for i := range products {
		p := &products[i]
		if p.CategoryName != "" && p.CategoryID == nil {
			key := strings.ToLower(strings.TrimSpace(p.CategoryName))
			id, ok := lookup[key]
			if !ok {
				id, ok = lookup[domain.Slugify(key)]
			}
			if ok {
				p.CategoryID = &id
			}
		}

		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("row %d (%s): %w", i+1, p.Title, err))
			continue
		}
		p.PrepareForStorage()

		if err := s.products.UpsertBySlug(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("row %d (%s): %w", i+1, p.Slug, err))
			continue
		}
		imported++
	}

	if imported > 0 {
		s.invalidate(ctx)
	}

	s.logger.InfoContext(ctx, "catalog import finished",
		slog.Int("rows", len(products)),
		slog.Int("imported", imported),
		slog.Int("failed", len(errs)))

	return imported, errors.Join(errs...)
}

// CategoryTree returns the categories as a tree, cached until the next catalog write
func (s *CatalogService) CategoryTree(ctx context.Context) ([]*domain.Category, error) {
	if s.cache != nil {
		var cached []*domain.Category
		if err := s.cache.Get(ctx, CategoryTreeCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, ports.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "category cache read failed", "err", err)
		}
	}

	flat, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	tree := domain.BuildCategoryTree(flat)
	if tree == nil {
		tree = []*domain.Category{}
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, CategoryTreeCacheKey, tree, categoryTreeTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to cache category tree", "err", err)
		}
	}

	return tree, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, category *domain.Category) error {
	if err := category.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	category.PrepareForStorage()

	if err := s.categories.Save(ctx, category); err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", category.ID.String()),
		slog.String("slug", category.Slug))
	return nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateCatalog(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate catalog cache", "err", err)
	}
}
