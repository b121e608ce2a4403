// internal/adapters/db/stock_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

type stockRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewStockRepository creates a repository reading stock snapshots
func NewStockRepository(db *Database, logger *slog.Logger) ports.StockRepository {
	return &stockRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "stock")),
	}
}

// FindStock returns stock for the active products among slugs. Unknown slugs are omitted.
func (r *stockRepository) FindStock(ctx context.Context, slugs []string) ([]domain.ProductStock, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	type stockRow struct {
		id    uuid.UUID
		stock domain.ProductStock
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, slug, title, stock
		FROM products
		WHERE slug = ANY($1) AND deleted_at IS NULL AND is_active`, slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}

	found, err := collectRows(rows, func(row pgx.Rows) (stockRow, error) {
		var s stockRow
		err := row.Scan(&s.id, &s.stock.Slug, &s.stock.Title, &s.stock.Stock)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stock: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}

	ids := make([]string, len(found))
	index := make(map[uuid.UUID]int, len(found))
	for i, s := range found {
		ids[i] = s.id.String()
		index[s.id] = i
	}

	rows, err = r.db.Query(ctx, `
		SELECT id, product_id, color, size, stock, sku, price
		FROM product_variants
		WHERE product_id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query variant stock: %w", err)
	}

	variants, err := collectRows(rows, scanVariant)
	if err != nil {
		return nil, fmt.Errorf("failed to scan variant stock: %w", err)
	}
	for _, v := range variants {
		if i, ok := index[v.ProductID]; ok {
			found[i].stock.Variants = append(found[i].stock.Variants, v)
		}
	}

	result := make([]domain.ProductStock, len(found))
	for i, s := range found {
		result[i] = s.stock
	}

	r.logger.DebugContext(ctx, "stock snapshot loaded",
		slog.Int("requested", len(slugs)),
		slog.Int("found", len(result)))

	return result, nil
}
