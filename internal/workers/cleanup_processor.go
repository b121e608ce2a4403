// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-be/internal/core/ports"
)

// CleanupProcessor handles cleanup tasks
type CleanupProcessor struct {
	logs      ports.SearchLogRepository
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewCleanupProcessor creates a new cleanup processor. retention defaults to 90 days.
func NewCleanupProcessor(logs ports.SearchLogRepository, retention time.Duration, logger *slog.Logger) *CleanupProcessor {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &CleanupProcessor{
		logs:      logs,
		retention: retention,
		logger:    logger.With(slog.String("processor", "cleanup")),
		now:       time.Now,
	}
}

// CleanupSearchLogs removes search logs older than the retention window
func (p *CleanupProcessor) CleanupSearchLogs(ctx context.Context, t *asynq.Task) error {
	cutoff := p.now().Add(-p.retention)
	p.logger.InfoContext(ctx, "cleaning up search logs", slog.Time("cutoff", cutoff))

	deleted, err := p.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup search logs: %w", err)
	}

	p.logger.InfoContext(ctx, "search logs cleaned up",
		slog.Int64("rows_deleted", deleted))

	if err := writeResult(t, map[string]int64{"rows_deleted": deleted}); err != nil {
		p.logger.WarnContext(ctx, "failed to write cleanup result", "err", err)
	}
	return nil
}
