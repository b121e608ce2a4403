package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis_a "github.com/ammerola/storefront-be/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

const insightsCacheTTL = 5 * time.Minute

// DashboardHandler serves search analytics to the back office
type DashboardHandler struct {
	responder
	logs  ports.SearchLogRepository
	cache ports.CacheRepository
	now   func() time.Time
}

// NewDashboardHandler creates a new dashboard handler. cache may be nil.
func NewDashboardHandler(logs ports.SearchLogRepository, cache ports.CacheRepository, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		responder: responder{logger: logger.With(slog.String("handler", "dashboard"))},
		logs:      logs,
		cache:     cache,
		now:       time.Now,
	}
}

// SearchInsights is the search analytics summary for a period
type SearchInsights struct {
	Period      string            `json:"period"`
	Since       time.Time         `json:"since"`
	TopTerms    []domain.TermStat `json:"top_terms"`
	ZeroResults []domain.TermStat `json:"zero_results"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// GetSearchInsights handles GET /api/v1/admin/dashboard/search?period=7d&limit=10
func (h *DashboardHandler) GetSearchInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "7d"
	}
	window, err := parsePeriod(period)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 || l > 100 {
			h.respondError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = l
	}

	cacheKey := redis_a.BuildKey(redis_a.PrefixInsight, period, strconv.Itoa(limit))
	var insights SearchInsights
	if h.cache != nil {
		err := h.cache.Get(ctx, cacheKey, &insights)
		if err == nil {
			h.respondJSON(w, http.StatusOK, insights)
			return
		}
		if !errors.Is(err, ports.ErrCacheMiss) {
			h.logger.WarnContext(ctx, "insights cache read failed", "err", err)
		}
	}

	loaded, err := h.loadInsights(ctx, period, window, limit)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to load search insights")
		return
	}

	if h.cache != nil {
		if err := h.cache.SetWithTTL(ctx, cacheKey, loaded, insightsCacheTTL); err != nil {
			h.logger.WarnContext(ctx, "insights cache write failed", "err", err)
		}
	}

	h.respondJSON(w, http.StatusOK, loaded)
}

func (h *DashboardHandler) loadInsights(ctx context.Context, period string, window time.Duration, limit int) (*SearchInsights, error) {
	now := h.now().UTC()
	since := now.Add(-window)

	top, err := h.logs.TopTerms(ctx, since, limit, false)
	if err != nil {
		return nil, err
	}
	zero, err := h.logs.TopTerms(ctx, since, limit, true)
	if err != nil {
		return nil, err
	}

	if top == nil {
		top = []domain.TermStat{}
	}
	if zero == nil {
		zero = []domain.TermStat{}
	}

	return &SearchInsights{
		Period:      period,
		Since:       since,
		TopTerms:    top,
		ZeroResults: zero,
		GeneratedAt: now,
	}, nil
}

// parsePeriod accepts a day count ("30d") or any time.ParseDuration value
func parsePeriod(period string) (time.Duration, error) {
	var (
		window time.Duration
		err    error
	)
	if days, ok := strings.CutSuffix(period, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		window = time.Duration(n) * 24 * time.Hour
	} else {
		window, err = time.ParseDuration(period)
	}
	if err != nil || window <= 0 || window > 366*24*time.Hour {
		return 0, errors.New("period must be a positive duration of at most 366d")
	}
	return window, nil
}
