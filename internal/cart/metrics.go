// internal/cart/metrics.go
package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_reconcile_passes_total",
		Help: "Cart reconciliation passes by result",
	}, []string{"result"})
	reconcileAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_reconcile_adjustments_total",
		Help: "Cart lines changed by reconciliation, by kind",
	}, []string{"kind"})
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_sessions_active",
		Help: "Cart sessions held in memory",
	})
)
