// internal/core/domain/cart.go
package domain

import (
	"fmt"
	"strings"
)

// LineKey identifies a cart line: distinct tuples are distinct lines even for the same product
type LineKey struct {
	Slug  string `json:"slug"`
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

func (k LineKey) String() string {
	return k.Slug + "|" + k.Color + "|" + k.Size
}

// Less orders keys by slug, color, size
func (k LineKey) Less(o LineKey) bool {
	if k.Slug != o.Slug {
		return k.Slug < o.Slug
	}
	if k.Color != o.Color {
		return k.Color < o.Color
	}
	return k.Size < o.Size
}

// MaxLineQuantity caps the units a single cart line can hold
const MaxLineQuantity = 999

// CartLine is a product/variant/quantity tuple held in a cart
type CartLine struct {
	Slug     string `json:"slug"`
	Color    string `json:"color,omitempty"`
	Size     string `json:"size,omitempty"`
	Quantity int    `json:"quantity"`
	Title    string `json:"title,omitempty"`
}

// Key returns the line identity
func (l CartLine) Key() LineKey {
	return LineKey{Slug: l.Slug, Color: l.Color, Size: l.Size}
}

// Validate checks the line can be stored in a cart
func (l *CartLine) Validate() error {
	l.Slug = strings.TrimSpace(l.Slug)
	if l.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if l.Quantity > MaxLineQuantity {
		return fmt.Errorf("quantity cannot exceed %d", MaxLineQuantity)
	}
	return nil
}

// WarningKind is the severity of a stock warning
type WarningKind string

const (
	WarningKindWarning WarningKind = "warning"
	WarningKindError   WarningKind = "error"
)

// StockWarning is a user-facing notice about a cart line produced by reconciliation
type StockWarning struct {
	Slug    string      `json:"slug"`
	Color   string      `json:"color,omitempty"`
	Size    string      `json:"size,omitempty"`
	Message string      `json:"message"`
	Kind    WarningKind `json:"kind"`
}

// Key returns the tuple the warning belongs to
func (w StockWarning) Key() LineKey {
	return LineKey{Slug: w.Slug, Color: w.Color, Size: w.Size}
}

// OutOfStockWarning is emitted when a line was removed for lack of stock
func OutOfStockWarning(key LineKey, title string) StockWarning {
	if title == "" {
		title = key.Slug
	}
	return StockWarning{
		Slug:    key.Slug,
		Color:   key.Color,
		Size:    key.Size,
		Message: fmt.Sprintf("%s is no longer in stock", title),
		Kind:    WarningKindError,
	}
}

// LowStockWarning is emitted when a line quantity was lowered to what remains
func LowStockWarning(key LineKey, available int) StockWarning {
	return StockWarning{
		Slug:    key.Slug,
		Color:   key.Color,
		Size:    key.Size,
		Message: fmt.Sprintf("Only %d units remain", available),
		Kind:    WarningKindWarning,
	}
}

// StockAdjustment is a line the inventory probe found short of stock
type StockAdjustment struct {
	Slug      string `json:"slug"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Title     string `json:"title"`
	Available int    `json:"newQuantity"`
}

// Key returns the tuple the adjustment belongs to
func (a StockAdjustment) Key() LineKey {
	return LineKey{Slug: a.Slug, Color: a.Color, Size: a.Size}
}

// StockProbeResponse is the batched probe answer. Lines not listed need no adjustment.
type StockProbeResponse struct {
	OK          bool              `json:"ok"`
	Adjustments []StockAdjustment `json:"adjustments"`
}

// ProductStock is the stock snapshot of one product used to answer probes
type ProductStock struct {
	Slug     string
	Title    string
	Stock    int
	Variants []Variant
}

// Available returns the units available for a color/size tuple.
// Lines without color and size draw from the whole product.
func (s *ProductStock) Available(color, size string) int {
	if len(s.Variants) == 0 {
		return s.Stock
	}
	if color == "" && size == "" {
		total := 0
		for _, v := range s.Variants {
			total += v.Stock
		}
		return total
	}
	for _, v := range s.Variants {
		if strings.EqualFold(v.Color, color) && strings.EqualFold(v.Size, size) {
			return v.Stock
		}
	}
	return 0
}
