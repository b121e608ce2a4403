// internal/core/services/stock.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// StockService answers inventory probes for cart reconciliation
type StockService struct {
	repo   ports.StockRepository
	logger *slog.Logger
}

var _ ports.InventoryProbe = (*StockService)(nil)

// NewStockService creates a new stock service
func NewStockService(repo ports.StockRepository, logger *slog.Logger) *StockService {
	return &StockService{
		repo:   repo,
		logger: logger.With(slog.String("service", "stock")),
	}
}

// Probe checks every line against live stock and returns the lines that cannot be satisfied.
// Unknown or inactive products report zero availability.
func (s *StockService) Probe(ctx context.Context, lines []domain.CartLine) (*domain.StockProbeResponse, error) {
	resp := &domain.StockProbeResponse{OK: true, Adjustments: []domain.StockAdjustment{}}
	if len(lines) == 0 {
		return resp, nil
	}

	seen := make(map[string]struct{}, len(lines))
	slugs := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.Slug]; ok {
			continue
		}
		seen[l.Slug] = struct{}{}
		slugs = append(slugs, l.Slug)
	}

	stock, err := s.repo.FindStock(ctx, slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}

	bySlug := make(map[string]*domain.ProductStock, len(stock))
	for i := range stock {
		bySlug[stock[i].Slug] = &stock[i]
	}

	for _, l := range lines {
		title := l.Slug
		available := 0
		if ps, ok := bySlug[l.Slug]; ok {
			title = ps.Title
			available = ps.Available(l.Color, l.Size)
		}

		if available >= l.Quantity {
			continue
		}

		kind := "reduced"
		if available <= 0 {
			kind = "removed"
			available = 0
		}
		stockAdjustments.WithLabelValues(kind).Inc()

		resp.Adjustments = append(resp.Adjustments, domain.StockAdjustment{
			Slug:      l.Slug,
			Color:     l.Color,
			Size:      l.Size,
			Title:     title,
			Available: available,
		})
	}

	s.logger.DebugContext(ctx, "stock probe",
		slog.Int("lines", len(lines)),
		slog.Int("adjustments", len(resp.Adjustments)))

	return resp, nil
}
