// internal/workers/notifications_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-be/internal/adapters/queue"
)

// NotificationProcessor handles order notifications. Confirmations are written to
// the structured log only; no mail or push channel is attached.
type NotificationProcessor struct {
	logger *slog.Logger
}

// NewNotificationProcessor creates a new notification processor
func NewNotificationProcessor(logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		logger: logger.With(slog.String("processor", "notification")),
	}
}

// ProcessOrderNotify logs the confirmation for a placed order
func (p *NotificationProcessor) ProcessOrderNotify(ctx context.Context, t *asynq.Task) error {
	var payload queue.OrderNotifyPayload
	if err := queue.DecodePayload(t, &payload); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	p.logger.InfoContext(ctx, "order confirmation",
		slog.String("order_id", payload.OrderID.String()),
		slog.String("user_id", payload.UserID),
		slog.Int("items", payload.ItemCount),
		slog.String("total", payload.Total),
		slog.Time("placed_at", payload.PlacedAt))

	return nil
}
