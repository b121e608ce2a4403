// internal/adapters/db/search_log_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

type searchLogRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewSearchLogRepository creates a new search log repository
func NewSearchLogRepository(db *Database, logger *slog.Logger) ports.SearchLogRepository {
	return &searchLogRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "search_log")),
	}
}

// Save records a search
func (r *searchLogRepository) Save(ctx context.Context, log *domain.SearchLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO search_logs (id, term, results_count, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		log.ID, log.Term, log.ResultsCount, log.UserID, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save search log: %w", err)
	}
	return nil
}

// DeleteOlderThan purges search logs created before cutoff
func (r *searchLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM search_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge search logs: %w", err)
	}

	r.logger.InfoContext(ctx, "search logs purged",
		slog.Time("cutoff", cutoff),
		slog.Int64("deleted", tag.RowsAffected()))

	return tag.RowsAffected(), nil
}

// TopTerms aggregates searches by lower-cased term
func (r *searchLogRepository) TopTerms(ctx context.Context, since time.Time, limit int, zeroOnly bool) ([]domain.TermStat, error) {
	if limit < 1 {
		limit = 10
	}

	filter := squirrel.And{squirrel.GtOrEq{"created_at": since}}
	if zeroOnly {
		filter = append(filter, squirrel.Eq{"results_count": 0})
	}

	query, args, err := squirrel.Select("LOWER(term) AS term", "COUNT(*) AS searches", "AVG(results_count)::float8").
		From("search_logs").
		Where(filter).
		GroupBy("LOWER(term)").
		OrderBy("searches DESC", "term").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate search logs: %w", err)
	}

	stats, err := collectRows(rows, func(row pgx.Rows) (domain.TermStat, error) {
		var s domain.TermStat
		err := row.Scan(&s.Term, &s.Searches, &s.AvgResults)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan term stats: %w", err)
	}
	return stats, nil
}
