// internal/adapters/db/favorite_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

type favoriteRepository struct {
	db       *Database
	products *productRepository
	logger   *slog.Logger
}

// NewFavoriteRepository creates a new favorite repository
func NewFavoriteRepository(db *Database, logger *slog.Logger) ports.FavoriteRepository {
	return &favoriteRepository{
		db:       db,
		products: &productRepository{db: db, logger: logger},
		logger:   logger.With(slog.String("repository", "favorite")),
	}
}

// Toggle flips the favorite state for the user and product
func (r *favoriteRepository) Toggle(ctx context.Context, userID string, productID uuid.UUID) (bool, error) {
	var favorited bool

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND deleted_at IS NULL)`,
			productID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`, userID, productID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			favorited = false
			return nil
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO favorites (user_id, product_id) VALUES ($1, $2)`, userID, productID); err != nil {
			return err
		}
		favorited = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}

	r.logger.DebugContext(ctx, "favorite toggled",
		slog.String("product_id", productID.String()),
		slog.Bool("favorited", favorited))

	return favorited, nil
}

// ListProducts returns the user's favorite products, most recently favorited first
func (r *favoriteRepository) ListProducts(ctx context.Context, userID string) ([]domain.Product, error) {
	qb := selectProducts().
		Join("favorites fav ON fav.product_id = p.id").
		Where(squirrel.Eq{"fav.user_id": userID}).
		OrderBy("fav.created_at DESC")

	products, err := r.products.queryProducts(ctx, r.db, qb)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return products, nil
}
