// internal/core/services/metrics.go
package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes
const (
	outcomeRejected = "rejected"
	outcomeExact    = "exact"
	outcomeMerged   = "merged"
	outcomeError    = "error"
)

var (
	searchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_search_requests_total",
		Help: "Product searches by outcome",
	}, []string{"outcome"})
	searchSuggestions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_search_suggestions_total",
		Help: "Searches answered with a did-you-mean suggestion",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_search_duration_seconds",
		Help:    "Product search latency",
		Buckets: prometheus.DefBuckets,
	})
	workingSetLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_search_working_set_loads_total",
		Help: "Working set loads that reached the database",
	})
	stockAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_adjustments_total",
		Help: "Cart lines reported by the inventory probe, by kind",
	}, []string{"kind"})
	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Orders placed through checkout",
	})
)
