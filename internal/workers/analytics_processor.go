// internal/workers/analytics_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-be/internal/adapters/queue"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

const maxLoggedTermLength = 200

// AnalyticsProcessor persists search analytics
type AnalyticsProcessor struct {
	logs   ports.SearchLogRepository
	logger *slog.Logger
}

// NewAnalyticsProcessor creates a new analytics processor
func NewAnalyticsProcessor(logs ports.SearchLogRepository, logger *slog.Logger) *AnalyticsProcessor {
	return &AnalyticsProcessor{
		logs:   logs,
		logger: logger.With(slog.String("processor", "analytics")),
	}
}

// ProcessSearchLog stores one search:log task
func (p *AnalyticsProcessor) ProcessSearchLog(ctx context.Context, t *asynq.Task) error {
	var payload queue.SearchLogPayload
	if err := queue.DecodePayload(t, &payload); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	entry := payload.ToDomain()
	entry.Term = strings.TrimSpace(entry.Term)
	if entry.Term == "" {
		p.logger.DebugContext(ctx, "skipping empty search term")
		return nil
	}
	if len(entry.Term) > maxLoggedTermLength {
		entry.Term = strings.ToValidUTF8(entry.Term[:maxLoggedTermLength], "")
	}

	if err := p.logs.Save(ctx, entry); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "search logged",
		slog.String("term", entry.Term),
		slog.Int("results", entry.ResultsCount))
	return nil
}
