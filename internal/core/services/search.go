// internal/core/services/search.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/fuzzy"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// WorkingSetCacheKey is where the fuzzy working set is cached
const WorkingSetCacheKey = "search:working_set"

const (
	minQueryLength    = 2
	minSuggestLength  = 3
	suggestBelowCount = 3
	analyticsTimeout  = 5 * time.Second
	workingSetTimeout = 10 * time.Second
)

// SearchSettings tunes the search service
type SearchSettings struct {
	DefaultLimit       int
	MaxLimit           int
	WorkingSetSize     int
	WorkingSetTTL      time.Duration
	FuzzyThreshold     int
	SuggestionMinScore int
}

// DefaultSearchSettings returns the stock tuning
func DefaultSearchSettings() SearchSettings {
	return SearchSettings{
		DefaultLimit:       10,
		MaxLimit:           50,
		WorkingSetSize:     1000,
		WorkingSetTTL:      time.Minute,
		FuzzyThreshold:     50,
		SuggestionMinScore: fuzzy.DefaultMinScore,
	}
}

// SearchService runs exact search with a fuzzy fallback and did-you-mean suggestions
type SearchService struct {
	products  ports.ProductRepository
	cache     ports.CacheRepository
	analytics ports.SearchAnalytics
	settings  SearchSettings
	group     singleflight.Group
	logger    *slog.Logger
}

var _ ports.SearchService = (*SearchService)(nil)

// NewSearchService creates a search service. cache and analytics may be nil.
func NewSearchService(
	products ports.ProductRepository,
	cache ports.CacheRepository,
	analytics ports.SearchAnalytics,
	settings SearchSettings,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		products:  products,
		cache:     cache,
		analytics: analytics,
		settings:  settings,
		logger:    logger.With(slog.String("service", "search")),
	}
}

// SearchProducts searches the catalog. Store failures yield OK=false, never an error.
func (s *SearchService) SearchProducts(ctx context.Context, query string, opts ports.SearchOptions) *ports.SearchResponse {
	start := time.Now()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < minQueryLength {
		searchRequests.WithLabelValues(outcomeRejected).Inc()
		return &ports.SearchResponse{OK: true, Results: []domain.SearchResult{}}
	}

	normalized := strings.ToLower(trimmed)
	limit := s.limit(opts.Limit)

	resp, outcome, err := s.search(ctx, normalized, limit, opts.UseFuzzy)
	if err != nil {
		s.logger.ErrorContext(ctx, "search failed",
			slog.String("query", normalized),
			"err", err)
		searchRequests.WithLabelValues(outcomeError).Inc()
		return &ports.SearchResponse{OK: false, Results: []domain.SearchResult{}}
	}

	searchRequests.WithLabelValues(outcome).Inc()
	if resp.Suggestion != "" {
		searchSuggestions.Inc()
	}

	s.record(ctx, trimmed, resp.Total, opts.UserID)
	return resp
}

func (s *SearchService) search(ctx context.Context, query string, limit int, useFuzzy bool) (*ports.SearchResponse, string, error) {
	exact, err := s.products.SearchExact(ctx, query, limit)
	if err != nil {
		return nil, "", fmt.Errorf("failed exact search: %w", err)
	}

	if float64(len(exact)) >= float64(limit)/2 {
		return respond(annotate(exact), ""), outcomeExact, nil
	}

	results := annotate(exact)
	if !useFuzzy {
		return respond(results, ""), outcomeExact, nil
	}

	workingSet, err := s.workingSet(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load working set: %w", err)
	}

	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		seen[r.ID.String()] = struct{}{}
	}

	ranked := fuzzy.Filter(workingSet, query, func(p domain.Product) string { return p.SearchText() }, s.settings.FuzzyThreshold)
	for _, scored := range ranked {
		if len(results) >= limit {
			break
		}
		if _, dup := seen[scored.Item.ID.String()]; dup {
			continue
		}
		seen[scored.Item.ID.String()] = struct{}{}
		results = append(results, annotateOne(scored.Item, scored.Score))
	}

	if len(results) > limit {
		results = results[:limit]
	}

	var suggestion string
	if len(results) < suggestBelowCount {
		suggestion = suggest(query, workingSet, s.settings.SuggestionMinScore)
	}

	s.logger.DebugContext(ctx, "fuzzy search",
		slog.String("query", query),
		slog.Int("exact", len(exact)),
		slog.Int("fuzzy_candidates", len(ranked)),
		slog.Int("results", len(results)),
		slog.String("suggestion", suggestion))

	return respond(results, suggestion), outcomeMerged, nil
}

// workingSet returns the most recent active products, bounded by WorkingSetSize.
// Concurrent misses share a single database load. The load is detached from the
// caller that started it, so a cancelled search never fails the ones waiting on it.
func (s *SearchService) workingSet(ctx context.Context) ([]domain.Product, error) {
	if s.cache != nil {
		var cached []domain.Product
		err := s.cache.Get(ctx, WorkingSetCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "working set cache read failed", "err", err)
		}
	}

	ch := s.group.DoChan(WorkingSetCacheKey, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), workingSetTimeout)
		defer cancel()

		workingSetLoads.Inc()
		products, err := s.products.ListRecent(loadCtx, s.settings.WorkingSetSize)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.SetWithTTL(loadCtx, WorkingSetCacheKey, products, s.settings.WorkingSetTTL); err != nil {
				s.logger.WarnContext(loadCtx, "failed to cache working set", "err", err)
			}
		}
		return products, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Product), nil
	}
}

func (s *SearchService) limit(requested int) int {
	if requested <= 0 {
		return s.settings.DefaultLimit
	}
	if s.settings.MaxLimit > 0 && requested > s.settings.MaxLimit {
		return s.settings.MaxLimit
	}
	return requested
}

// record sends the search to analytics without blocking the caller
func (s *SearchService) record(ctx context.Context, term string, total int, userID string) {
	if s.analytics == nil {
		return
	}

	entry := domain.SearchLog{
		Term:         term,
		ResultsCount: total,
		UserID:       userID,
		CreatedAt:    time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), analyticsTimeout)
		defer cancel()
		if err := s.analytics.Record(ctx, entry); err != nil {
			s.logger.DebugContext(ctx, "search analytics dropped", "err", err)
		}
	}()
}

// suggest finds the title word closest to query and returns a product title containing it
func suggest(query string, workingSet []domain.Product, minScore int) string {
	seen := make(map[string]struct{})
	var vocabulary []string
	for _, p := range workingSet {
		for _, word := range strings.Fields(strings.ToLower(p.Title)) {
			if utf8.RuneCountInString(word) <= minSuggestLength {
				continue
			}
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			vocabulary = append(vocabulary, word)
		}
	}

	match, ok := fuzzy.FindBestMatch(query, vocabulary, minScore)
	if !ok {
		return ""
	}

	for _, p := range workingSet {
		if strings.Contains(strings.ToLower(p.Title), match.Value) {
			return p.Title
		}
	}
	return ""
}

// annotate wraps exact matches, which carry no fuzzy score
func annotate(products []domain.Product) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(products))
	for _, p := range products {
		results = append(results, annotateOne(p, 0))
	}
	return results
}

func annotateOne(p domain.Product, score int) domain.SearchResult {
	return domain.SearchResult{
		Product:    p,
		FuzzyScore: score,
		Badge:      p.Stats.Badge(),
	}
}

func respond(results []domain.SearchResult, suggestion string) *ports.SearchResponse {
	return &ports.SearchResponse{
		OK:         true,
		Results:    results,
		Total:      len(results),
		Suggestion: suggestion,
	}
}
