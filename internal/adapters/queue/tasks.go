// internal/adapters/queue/tasks.go
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-be/internal/core/domain"
)

// Task types
const (
	TypeSearchLog         = "search:log"
	TypeCatalogImport     = "catalog:import"
	TypeOrderNotify       = "order:notify"
	TypeCleanupSearchLogs = "cleanup:search_logs"
)

// Queue names
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// SearchLogPayload is the payload of a search:log task
type SearchLogPayload struct {
	Term         string    `json:"term"`
	ResultsCount int       `json:"results_count"`
	UserID       string    `json:"user_id,omitempty"`
	SearchedAt   time.Time `json:"searched_at"`
}

// ToDomain converts the payload into a storable search log
func (p SearchLogPayload) ToDomain() *domain.SearchLog {
	return &domain.SearchLog{
		ID:           uuid.New(),
		Term:         p.Term,
		ResultsCount: p.ResultsCount,
		UserID:       p.UserID,
		CreatedAt:    p.SearchedAt,
	}
}

// CatalogImportPayload is the payload of a catalog:import task
type CatalogImportPayload struct {
	JobID       string `json:"job_id"`
	ObjectKey   string `json:"object_key"`
	Filename    string `json:"filename"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// OrderNotifyPayload is the payload of an order:notify task
type OrderNotifyPayload struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    string    `json:"user_id"`
	ItemCount int       `json:"item_count"`
	Total     string    `json:"total"`
	PlacedAt  time.Time `json:"placed_at"`
}

// NewSearchLogTask builds a search:log task
func NewSearchLogTask(entry domain.SearchLog) (*asynq.Task, error) {
	at := entry.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return newTask(TypeSearchLog, SearchLogPayload{
		Term:         entry.Term,
		ResultsCount: entry.ResultsCount,
		UserID:       entry.UserID,
		SearchedAt:   at,
	})
}

// NewCatalogImportTask builds a catalog:import task
func NewCatalogImportTask(p CatalogImportPayload) (*asynq.Task, error) {
	return newTask(TypeCatalogImport, p)
}

// NewOrderNotifyTask builds an order:notify task
func NewOrderNotifyTask(o *domain.Order) (*asynq.Task, error) {
	return newTask(TypeOrderNotify, OrderNotifyPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		ItemCount: o.ItemCount,
		Total:     o.Total.StringFixed(2),
		PlacedAt:  o.CreatedAt,
	})
}

// NewCleanupSearchLogsTask builds a cleanup:search_logs task
func NewCleanupSearchLogsTask() *asynq.Task {
	return asynq.NewTask(TypeCleanupSearchLogs, nil)
}

// DecodePayload unmarshals a task payload into dest
func DecodePayload(t *asynq.Task, dest interface{}) error {
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", t.Type(), err)
	}
	return nil
}

func newTask(typ string, payload interface{}) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return asynq.NewTask(typ, b), nil
}
