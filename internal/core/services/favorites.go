// internal/core/services/favorites.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
	"github.com/google/uuid"
)

// FavoriteService toggles and lists user favorites
type FavoriteService struct {
	repo        ports.FavoriteRepository
	invalidator CatalogInvalidator
	logger      *slog.Logger
}

var _ ports.FavoriteService = (*FavoriteService)(nil)

// NewFavoriteService creates a new favorite service. invalidator may be nil.
func NewFavoriteService(repo ports.FavoriteRepository, invalidator CatalogInvalidator, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{
		repo:        repo,
		invalidator: invalidator,
		logger:      logger.With(slog.String("service", "favorites")),
	}
}

// Toggle flips the favorite and reports whether the product is now a favorite
func (s *FavoriteService) Toggle(ctx context.Context, userID string, productID uuid.UUID) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	favorite, err := s.repo.Toggle(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}

	// favorite counts feed the trending badge
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateCatalog(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate catalog cache", "err", err)
		}
	}

	s.logger.InfoContext(ctx, "favorite toggled",
		slog.String("user_id", userID),
		slog.String("product_id", productID.String()),
		slog.Bool("favorite", favorite))

	return favorite, nil
}

func (s *FavoriteService) List(ctx context.Context, userID string) ([]domain.Product, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	products, err := s.repo.ListProducts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return products, nil
}
