package domain

import (
	"time"

	"github.com/google/uuid"
)

// SearchLog is one search recorded for analytics
type SearchLog struct {
	ID           uuid.UUID `json:"id"`
	Term         string    `json:"term"`
	ResultsCount int       `json:"results_count"`
	UserID       string    `json:"user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TermStat aggregates the searches for one normalized term
type TermStat struct {
	Term       string  `json:"term"`
	Searches   int64   `json:"searches"`
	AvgResults float64 `json:"avg_results"`
}

// Favorite links a user to a product
type Favorite struct {
	UserID    string    `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
