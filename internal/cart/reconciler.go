// internal/cart/reconciler.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// DefaultDebounceWindow is the quiet period before a reconciliation pass
const DefaultDebounceWindow = 1500 * time.Millisecond

// ErrProbeRejected is returned by RunPass when the probe answers without OK
var ErrProbeRejected = errors.New("inventory probe rejected the request")

// Reconciler keeps a cart in line with live stock. It removes or shrinks lines the
// inventory cannot satisfy and keeps one warning per affected tuple.
type Reconciler struct {
	store     *Store
	probe     ports.InventoryProbe
	debouncer *Debouncer
	logger    *slog.Logger

	mu       sync.Mutex
	warnings map[domain.LineKey]domain.StockWarning
	running  bool
	dirty    bool
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	unsub    func()

	refreshes atomic.Uint64
	passes    atomic.Uint64
}

// NewReconciler creates a reconciler for store. A window <= 0 uses DefaultDebounceWindow.
func NewReconciler(store *Store, probe ports.InventoryProbe, window time.Duration, logger *slog.Logger) *Reconciler {
	if window <= 0 {
		window = DefaultDebounceWindow
	}

	r := &Reconciler{
		store:    store,
		probe:    probe,
		logger:   logger.With(slog.String("component", "cart_reconciler")),
		warnings: make(map[domain.LineKey]domain.StockWarning),
		ctx:      context.Background(),
	}
	r.debouncer = NewDebouncer(window, r.debounced)
	return r
}

// Start subscribes to the store and schedules the first pass
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.closed || r.unsub != nil {
		r.mu.Unlock()
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.unsub = r.store.Subscribe(r.onMutation)
	r.mu.Unlock()

	r.debouncer.Trigger()
}

// Refresh requests a pass after the debounce window
func (r *Reconciler) Refresh() {
	r.refreshes.Add(1)
	r.debouncer.Trigger()
}

// RefreshCount returns how many explicit refreshes were requested
func (r *Reconciler) RefreshCount() uint64 {
	return r.refreshes.Load()
}

// PassCount returns how many passes reached the inventory probe
func (r *Reconciler) PassCount() uint64 {
	return r.passes.Load()
}

// Warnings returns the active warnings ordered by tuple
func (r *Reconciler) Warnings() []domain.StockWarning {
	r.mu.Lock()
	out := make([]domain.StockWarning, 0, len(r.warnings))
	for _, w := range r.warnings {
		out = append(out, w)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

// Warning returns the warning held for key
func (r *Reconciler) Warning(key domain.LineKey) (domain.StockWarning, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.warnings[key]
	return w, ok
}

// RunPass validates the current cart against the inventory probe.
// Probe failures leave the cart and warnings untouched.
// A pass requested while another is running is deferred until it finishes.
func (r *Reconciler) RunPass(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	if r.running {
		r.dirty = true
		r.mu.Unlock()
		reconcilePasses.WithLabelValues("deferred").Inc()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	defer r.finishPass()

	// read at execution time, not when the pass was scheduled
	lines := r.store.Lines()
	if len(lines) == 0 {
		reconcilePasses.WithLabelValues("skipped").Inc()
		return nil
	}

	r.passes.Add(1)
	resp, err := r.probe.Probe(ctx, lines)
	if err == nil && (resp == nil || !resp.OK) {
		err = ErrProbeRejected
	}
	if err != nil {
		reconcilePasses.WithLabelValues("failed").Inc()
		r.logger.WarnContext(ctx, "stock probe failed, cart left unchanged",
			slog.Int("lines", len(lines)),
			"err", err)
		return fmt.Errorf("failed to probe stock: %w", err)
	}

	fresh := make(map[domain.LineKey]domain.StockWarning, len(resp.Adjustments))
	for _, adj := range resp.Adjustments {
		key := adj.Key()
		current, ok := r.store.Quantity(key)
		if !ok {
			continue
		}

		switch {
		case adj.Available <= 0:
			r.store.remove(key, OriginReconciler)
			fresh[key] = domain.OutOfStockWarning(key, adj.Title)
			reconcileAdjustments.WithLabelValues("removed").Inc()
		case adj.Available < current:
			r.store.setQuantity(key, adj.Available, OriginReconciler)
			fresh[key] = domain.LowStockWarning(key, adj.Available)
			reconcileAdjustments.WithLabelValues("reduced").Inc()
		}
	}

	r.mu.Lock()
	for _, l := range lines {
		key := l.Key()
		if w, ok := fresh[key]; ok {
			r.warnings[key] = w
		} else {
			delete(r.warnings, key)
		}
	}
	r.mu.Unlock()

	reconcilePasses.WithLabelValues("applied").Inc()
	if len(fresh) > 0 {
		r.logger.InfoContext(ctx, "cart reconciled",
			slog.Int("lines", len(lines)),
			slog.Int("adjusted", len(fresh)))
	}
	return nil
}

// Close stops the reconciler. Pending and deferred passes are dropped.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsub, cancel := r.unsub, r.cancel
	r.mu.Unlock()

	r.debouncer.Stop()
	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
}

func (r *Reconciler) debounced() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	_ = r.RunPass(ctx)
}

func (r *Reconciler) finishPass() {
	r.mu.Lock()
	rerun := r.dirty && !r.closed
	r.running = false
	r.dirty = false
	r.mu.Unlock()

	if rerun {
		r.debouncer.Trigger()
	}
}

// onMutation drops warnings for tuples that left the cart; user edits schedule a pass
func (r *Reconciler) onMutation(lines []domain.CartLine, m Mutation) {
	present := make(map[domain.LineKey]struct{}, len(lines))
	for _, l := range lines {
		if l.Quantity > 0 {
			present[l.Key()] = struct{}{}
		}
	}

	r.mu.Lock()
	for key := range r.warnings {
		if _, ok := present[key]; !ok {
			delete(r.warnings, key)
		}
	}
	r.mu.Unlock()

	if m.Origin == OriginUser {
		r.debouncer.Trigger()
	}
}
