// internal/core/services/types.go
package services

import (
	"context"
	"math"
)

// Page size bounds for listings
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CatalogInvalidator drops cached catalog views after writes
type CatalogInvalidator interface {
	InvalidateCatalog(ctx context.Context) error
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}
