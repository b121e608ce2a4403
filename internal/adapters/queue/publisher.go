// internal/adapters/queue/publisher.go
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// Enqueuer is the subset of *asynq.Client the publisher needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher enqueues background work for the worker process
type Publisher struct {
	client            Enqueuer
	notificationQueue string
	logger            *slog.Logger
}

var (
	_ ports.SearchAnalytics = (*Publisher)(nil)
	_ ports.OrderNotifier   = (*Publisher)(nil)
)

// NewPublisher creates a publisher on top of an asynq client
func NewPublisher(client Enqueuer, notificationQueue string, logger *slog.Logger) *Publisher {
	if notificationQueue == "" {
		notificationQueue = QueueDefault
	}
	return &Publisher{
		client:            client,
		notificationQueue: notificationQueue,
		logger:            logger.With(slog.String("component", "publisher")),
	}
}

// Record enqueues a search log entry on the low priority queue
func (p *Publisher) Record(ctx context.Context, entry domain.SearchLog) error {
	task, err := NewSearchLogTask(entry)
	if err != nil {
		return err
	}

	if _, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Second),
	); err != nil {
		return fmt.Errorf("failed to enqueue search log: %w", err)
	}
	return nil
}

// OrderPlaced enqueues an order notification
func (p *Publisher) OrderPlaced(ctx context.Context, order *domain.Order) error {
	task, err := NewOrderNotifyTask(order)
	if err != nil {
		return err
	}

	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.notificationQueue),
		asynq.MaxRetry(5),
		asynq.TaskID("order-notify-"+order.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue order notification: %w", err)
	}

	p.logger.InfoContext(ctx, "order notification enqueued",
		slog.String("order_id", order.ID.String()),
		slog.String("task_id", info.ID))
	return nil
}

// EnqueueCatalogImport schedules a spreadsheet import and returns the task id
func (p *Publisher) EnqueueCatalogImport(ctx context.Context, payload CatalogImportPayload) (string, error) {
	task, err := NewCatalogImportTask(payload)
	if err != nil {
		return "", err
	}

	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.TaskID(payload.JobID),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue catalog import: %w", err)
	}

	p.logger.InfoContext(ctx, "catalog import enqueued",
		slog.String("job_id", payload.JobID),
		slog.String("task_id", info.ID))
	return info.ID, nil
}
