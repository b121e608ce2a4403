// internal/core/domain/product.go
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Badge marks popular products in search results
type Badge string

// Badge constants
const (
	BadgeNone       Badge = ""
	BadgeBestseller Badge = "bestseller"
	BadgeTrending   Badge = "trending"
)

// Badge thresholds
const (
	BestsellerMinOrdered = 50
	TrendingMinFavorites = 10
)

// Gender is the audience a product is aimed at
type Gender string

const (
	GenderMen    Gender = "men"
	GenderWomen  Gender = "women"
	GenderKid    Gender = "kid"
	GenderUnisex Gender = "unisex"
)

// ProductStats carries the aggregates used for badges
type ProductStats struct {
	OrderedQuantity int `json:"ordered_quantity"`
	FavoriteCount   int `json:"favorite_count"`
}

// Badge returns the badge earned by these aggregates. Bestseller wins over trending.
func (s ProductStats) Badge() Badge {
	if s.OrderedQuantity > BestsellerMinOrdered {
		return BadgeBestseller
	} else if s.FavoriteCount > TrendingMinFavorites {
		return BadgeTrending
	}
	return BadgeNone
}

// Product represents a catalog product
type Product struct {
	ID           uuid.UUID       `json:"id"`
	Slug         string          `json:"slug"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Tags         []string        `json:"tags"`
	Gender       Gender          `json:"gender,omitempty"`
	CategoryID   *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Images       []string        `json:"images"`
	Variants     []Variant       `json:"variants,omitempty"`
	IsActive     bool            `json:"is_active"`
	Stats        ProductStats    `json:"stats"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
}

// Variant is a purchasable color/size combination of a product
type Variant struct {
	ID        uuid.UUID        `json:"id"`
	ProductID uuid.UUID        `json:"product_id"`
	Color     string           `json:"color,omitempty"`
	Size      string           `json:"size,omitempty"`
	Stock     int              `json:"stock"`
	SKU       string           `json:"sku,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// SearchResult is a product annotated for search responses
type SearchResult struct {
	Product
	FuzzyScore int   `json:"fuzzy_score,omitempty"`
	Badge      Badge `json:"badge,omitempty"`
}

// SearchText is the text fuzzy ranking runs against
func (p *Product) SearchText() string {
	parts := make([]string, 0, 3+len(p.Tags))
	parts = append(parts, p.Title, p.Description)
	parts = append(parts, p.Tags...)
	parts = append(parts, p.CategoryName)
	return strings.Join(parts, " ")
}

// TotalStock returns the stock across variants, or the product stock when it has none
func (p *Product) TotalStock() int {
	if len(p.Variants) == 0 {
		return p.Stock
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// PriceFor returns the variant price override when present
func (p *Product) PriceFor(color, size string) decimal.Decimal {
	for _, v := range p.Variants {
		if v.Color == color && v.Size == size && v.Price != nil {
			return *v.Price
		}
	}
	return p.Price
}

// Validate performs domain validation on the product
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	for _, v := range p.Variants {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variant %s/%s: %w", v.Color, v.Size, err)
		}
	}
	if p.Gender == "" {
		p.Gender = GenderUnisex
	}
	return nil
}

// PrepareForStorage fills ids, slug, normalized tags and timestamps
func (p *Product) PrepareForStorage() {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	p.Tags = NormalizeTags(p.Tags)

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	for i := range p.Variants {
		if p.Variants[i].ID == uuid.Nil {
			p.Variants[i].ID = uuid.New()
		}
		p.Variants[i].ProductID = p.ID
	}
}

// Validate performs domain validation on the variant
func (v *Variant) Validate() error {
	if v.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	if v.Price != nil && v.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	return nil
}

// Slugify turns a title into a url-safe slug. Accents are folded ("Algodón" -> "algodon").
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(strings.ToLower(strings.TrimSpace(s))) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case r == '_' || r == '-' || unicode.IsSpace(r):
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// NormalizeTags lowercases, trims and de-duplicates tags, preserving order
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
