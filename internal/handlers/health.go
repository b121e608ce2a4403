// internal/handlers/health.go
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/storefront-be/internal/core/services"
	"github.com/ammerola/storefront-be/internal/pkg/config"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// SessionCounter reports the number of live cart sessions
type SessionCounter interface {
	Len() int
}

// DatabaseChecker is the part of the database adapter the health check uses
type DatabaseChecker interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) map[string]interface{}
}

// QueueInspector reads background queue state
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Servers() ([]*asynq.ServerInfo, error)
}

// HealthHandler reports dependency state. The database and Redis back every
// cart and order request, so losing either answers 503. The job queue and the
// search working set only degrade the report.
type HealthHandler struct {
	db        DatabaseChecker
	redis     *redis.Client
	queues    QueueInspector
	carts     SessionCounter
	config    *config.Config
	logger    *slog.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. queues may be nil when the
// API runs without a job queue.
func NewHealthHandler(
	database DatabaseChecker,
	redisClient *redis.Client,
	queues QueueInspector,
	carts SessionCounter,
	cfg *config.Config,
	logger *slog.Logger,
) *HealthHandler {
	return &HealthHandler{
		db:        database,
		redis:     redisClient,
		queues:    queues,
		carts:     carts,
		config:    cfg,
		logger:    logger.With(slog.String("handler", "health")),
		startTime: time.Now(),
	}
}

// HealthStatus represents the health status of the application
type HealthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]ServiceInfo `json:"services"`
	Storefront  StorefrontInfo         `json:"storefront"`
	System      SystemInfo             `json:"system"`
}

// ServiceInfo represents the status of a service dependency
type ServiceInfo struct {
	Status       string                 `json:"status"`
	Critical     bool                   `json:"critical"`
	Message      string                 `json:"message,omitempty"`
	ResponseTime string                 `json:"response_time,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// StorefrontInfo summarises in-process shopping state
type StorefrontInfo struct {
	CartSessions     int  `json:"cart_sessions"`
	WorkingSetCached bool `json:"working_set_cached"`
}

// SystemInfo represents system-level information
type SystemInfo struct {
	GoVersion      string `json:"go_version"`
	NumGoroutines  int    `json:"num_goroutines"`
	NumCPU         int    `json:"num_cpu"`
	MemoryAllocMB  uint64 `json:"memory_alloc_mb"`
	MemorySysMB    uint64 `json:"memory_sys_mb"`
	GCPauseTotalMs uint64 `json:"gc_pause_total_ms"`
	NumGC          uint32 `json:"num_gc"`
}

type serviceCheck struct {
	name     string
	critical bool
	run      func(context.Context) ServiceInfo
}

// Health handles the /health endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := []serviceCheck{
		{name: "database", critical: true, run: h.checkDatabase},
		{name: "redis", critical: true, run: h.checkRedis},
		{name: "search_cache", run: h.checkWorkingSet},
	}
	if h.queues != nil {
		checks = append(checks, serviceCheck{name: "queue", run: h.checkQueues})
	}

	var mu sync.Mutex
	results := make(map[string]ServiceInfo, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			start := time.Now()
			info := c.run(gctx)
			info.Critical = c.critical
			info.ResponseTime = time.Since(start).Round(time.Microsecond).String()
			mu.Lock()
			results[c.name] = info
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	health := HealthStatus{
		Status:      overallStatus(results),
		Version:     h.config.App.Version,
		Environment: h.config.App.Environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now(),
		Services:    results,
		Storefront: StorefrontInfo{
			WorkingSetCached: results["search_cache"].Status == statusHealthy,
		},
		System: systemInfo(),
	}
	if h.carts != nil {
		health.Storefront.CartSessions = h.carts.Len()
	}

	statusCode := http.StatusOK
	if health.Status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
		h.logger.WarnContext(ctx, "health check failed", "services", failing(results))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode health response",
			"err", err)
	}
}

// Readiness handles the /ready endpoint
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := make(map[string]string)

	if err := h.db.Ping(ctx); err != nil {
		ready = false
		details["database"] = "not ready"
	} else {
		details["database"] = "ready"
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		ready = false
		details["redis"] = "not ready"
	} else {
		details["redis"] = "ready"
	}

	response := map[string]interface{}{
		"ready":   ready,
		"details": details,
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode readiness response",
			"err", err)
	}
}

// overallStatus is unhealthy when a critical dependency fails and degraded
// when only optional ones do.
func overallStatus(results map[string]ServiceInfo) string {
	status := statusHealthy
	for _, info := range results {
		if info.Status == statusHealthy {
			continue
		}
		if info.Critical {
			return statusUnhealthy
		}
		status = statusDegraded
	}
	return status
}

func failing(results map[string]ServiceInfo) []string {
	var names []string
	for name, info := range results {
		if info.Status != statusHealthy {
			names = append(names, name)
		}
	}
	return names
}

func (h *HealthHandler) checkDatabase(ctx context.Context) ServiceInfo {
	if err := h.db.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "database health check failed", "err", err)
		return ServiceInfo{Status: statusUnhealthy, Message: err.Error()}
	}

	info := ServiceInfo{Status: statusHealthy, Details: h.db.Health(ctx)}
	if s, ok := info.Details["status"].(string); ok && s != statusHealthy {
		info.Status = statusUnhealthy
	}
	delete(info.Details, "status")
	return info
}

func (h *HealthHandler) checkRedis(ctx context.Context) ServiceInfo {
	if err := h.redis.Ping(ctx).Err(); err != nil {
		h.logger.ErrorContext(ctx, "redis health check failed", "err", err)
		return ServiceInfo{Status: statusUnhealthy, Message: err.Error()}
	}

	stats := h.redis.PoolStats()
	return ServiceInfo{
		Status: statusHealthy,
		Details: map[string]interface{}{
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"stale_conns": stats.StaleConns,
		},
	}
}

// checkWorkingSet reports whether fuzzy search can answer without a database
// load. A cold cache is refilled by the next search.
func (h *HealthHandler) checkWorkingSet(ctx context.Context) ServiceInfo {
	n, err := h.redis.Exists(ctx, services.WorkingSetCacheKey).Result()
	if err != nil {
		return ServiceInfo{Status: statusUnhealthy, Message: err.Error()}
	}
	if n == 0 {
		return ServiceInfo{Status: statusDegraded, Message: "working set not cached"}
	}

	info := ServiceInfo{Status: statusHealthy}
	if ttl, err := h.redis.TTL(ctx, services.WorkingSetCacheKey).Result(); err == nil && ttl > 0 {
		info.Details = map[string]interface{}{"expires_in": ttl.Round(time.Second).String()}
	}
	return info
}

// checkQueues reports only the queues this deployment is configured to
// consume. A queue nobody has enqueued to yet is not an error.
func (h *HealthHandler) checkQueues(ctx context.Context) ServiceInfo {
	stats := make(map[string]interface{}, len(h.config.Asynq.Queues))
	for name := range h.config.Asynq.Queues {
		q, err := h.queues.GetQueueInfo(name)
		if err != nil {
			stats[name] = map[string]interface{}{"pending": 0}
			continue
		}
		stats[name] = map[string]interface{}{
			"pending":  q.Pending,
			"active":   q.Active,
			"retry":    q.Retry,
			"archived": q.Archived,
			"paused":   q.Paused,
		}
	}

	servers, err := h.queues.Servers()
	if err != nil {
		h.logger.WarnContext(ctx, "queue health check failed", "err", err)
		return ServiceInfo{Status: statusUnhealthy, Message: err.Error()}
	}

	info := ServiceInfo{
		Status:  statusHealthy,
		Details: map[string]interface{}{"queues": stats, "workers": len(servers)},
	}
	if len(servers) == 0 {
		info.Status = statusDegraded
		info.Message = "no worker is consuming jobs"
	}
	return info
}

func systemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemInfo{
		GoVersion:      runtime.Version(),
		NumGoroutines:  runtime.NumGoroutine(),
		NumCPU:         runtime.NumCPU(),
		MemoryAllocMB:  memStats.Alloc / 1024 / 1024,
		MemorySysMB:    memStats.Sys / 1024 / 1024,
		GCPauseTotalMs: memStats.PauseTotalNs / 1000 / 1000,
		NumGC:          memStats.NumGC,
	}
}
