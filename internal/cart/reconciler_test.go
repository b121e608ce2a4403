// internal/cart/reconciler_test.go
package cart_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/storefront-be/internal/cart"
	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/test/helpers"
)

const testWindow = 20 * time.Millisecond

// fakeProbe answers probes from a settable table of available quantities
type fakeProbe struct {
	mu        sync.Mutex
	available map[domain.LineKey]int
	titles    map[string]string
	err       error
	calls     [][]domain.CartLine
	block     chan struct{}
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{
		available: make(map[domain.LineKey]int),
		titles:    make(map[string]string),
	}
}

func (p *fakeProbe) set(key domain.LineKey, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available[key] = n
}

func (p *fakeProbe) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProbe) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProbe) Probe(_ context.Context, lines []domain.CartLine) (*domain.StockProbeResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, lines)
	block := p.block
	p.mu.Unlock()

	if block != nil {
		<-block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}

	resp := &domain.StockProbeResponse{OK: true}
	for _, l := range lines {
		n, ok := p.available[l.Key()]
		if !ok || n >= l.Quantity {
			continue
		}
		title := p.titles[l.Slug]
		if title == "" {
			title = l.Slug
		}
		resp.Adjustments = append(resp.Adjustments, domain.StockAdjustment{
			Slug: l.Slug, Color: l.Color, Size: l.Size, Title: title, Available: n,
		})
	}
	return resp, nil
}

var redM = domain.LineKey{Slug: "tshirt-red", Color: "red", Size: "M"}

func newReconciler(t *testing.T, probe *fakeProbe) (*cart.Store, *cart.Reconciler) {
	t.Helper()
	store := cart.NewStore()
	r := cart.NewReconciler(store, probe, testWindow, helpers.TestLogger())
	t.Cleanup(r.Close)
	return store, r
}

func TestReconciler_ReducesQuantity(t *testing.T) {
	probe := newFakeProbe()
	probe.set(redM, 2)
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 5)))

	require.NoError(t, r.RunPass(context.Background()))

	qty, ok := store.Quantity(redM)
	require.True(t, ok)
	assert.Equal(t, 2, qty)

	warnings := r.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarningKindWarning, warnings[0].Kind)
	assert.Contains(t, warnings[0].Message, "2")
	assert.Equal(t, redM, warnings[0].Key())
}

func TestReconciler_RemovesSoldOutLine(t *testing.T) {
	probe := newFakeProbe()
	probe.set(redM, 0)
	probe.titles["tshirt-red"] = "Remera Roja"
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 5)))

	require.NoError(t, r.RunPass(context.Background()))

	_, ok := store.Quantity(redM)
	assert.False(t, ok, "sold out lines are removed, not kept at zero")

	warnings := r.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarningKindError, warnings[0].Kind)
	assert.Equal(t, "Remera Roja is no longer in stock", warnings[0].Message)
}

func TestReconciler_SecondPassReplacesWarning(t *testing.T) {
	probe := newFakeProbe()
	probe.set(redM, 4)
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 5)))

	require.NoError(t, r.RunPass(context.Background()))
	probe.set(redM, 1)
	require.NoError(t, r.RunPass(context.Background()))

	warnings := r.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "Only 1 units remain", warnings[0].Message)

	qty, _ := store.Quantity(redM)
	assert.Equal(t, 1, qty)
}

func TestReconciler_SatisfiedLineClearsWarning(t *testing.T) {
	probe := newFakeProbe()
	probe.set(redM, 3)
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 5)))

	require.NoError(t, r.RunPass(context.Background()))
	_, ok := r.Warning(redM)
	require.True(t, ok)

	probe.set(redM, 10)
	require.NoError(t, r.RunPass(context.Background()))
	_, ok = r.Warning(redM)
	assert.False(t, ok)
}

func TestReconciler_LeavesUnprobedWarnings(t *testing.T) {
	probe := newFakeProbe()
	probe.set(redM, 0)
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 1)))
	require.NoError(t, store.Add(helpers.CreateTestCartLine("gorra", "", "", 1)))

	require.NoError(t, r.RunPass(context.Background()))
	_, ok := r.Warning(redM)
	require.True(t, ok)

	// the second pass no longer sees tshirt-red, so its warning stays until the cart changes
	require.NoError(t, r.RunPass(context.Background()))
	_, ok = r.Warning(redM)
	assert.True(t, ok)
}

func TestReconciler_ManualRemovalClearsWarningImmediately(t *testing.T) {
	probe := newFakeProbe()
	probe.set(redM, 2)
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 5)))

	require.NoError(t, r.RunPass(context.Background()))
	require.Len(t, r.Warnings(), 1)
	r.Start(context.Background())

	store.Remove(redM)

	assert.Empty(t, r.Warnings(), "warning dropped without waiting for the debounce")
}

func TestReconciler_ProbeFailureIsFailOpen(t *testing.T) {
	probe := newFakeProbe()
	probe.set(redM, 2)
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 5)))
	require.NoError(t, r.RunPass(context.Background()))

	probe.set(redM, 0)
	probe.fail(errors.New("inventory unreachable"))
	err := r.RunPass(context.Background())

	require.Error(t, err)
	qty, ok := store.Quantity(redM)
	require.True(t, ok)
	assert.Equal(t, 2, qty, "cart untouched when the probe fails")
	w, ok := r.Warning(redM)
	require.True(t, ok)
	assert.Equal(t, domain.WarningKindWarning, w.Kind)
}

func TestReconciler_EmptyCartSkipsProbe(t *testing.T) {
	probe := newFakeProbe()
	_, r := newReconciler(t, probe)

	require.NoError(t, r.RunPass(context.Background()))
	assert.Zero(t, probe.callCount())
	assert.Zero(t, r.PassCount())
}

func TestReconciler_BatchesAllLines(t *testing.T) {
	probe := newFakeProbe()
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 1)))
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "L", 2)))
	require.NoError(t, store.Add(helpers.CreateTestCartLine("gorra", "", "", 3)))

	require.NoError(t, r.RunPass(context.Background()))

	require.Equal(t, 1, probe.callCount())
	assert.Len(t, probe.calls[0], 3)
}

func TestReconciler_DebouncesUserMutations(t *testing.T) {
	probe := newFakeProbe()
	store, r := newReconciler(t, probe)
	r.Start(context.Background())

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Add(helpers.CreateTestCartLine("gorra", "", "", 1)))
		time.Sleep(testWindow / 4)
	}

	helpers.AssertEventuallyWithTimeout(t, func() bool { return probe.callCount() == 1 }, time.Second, "one pass after the burst")
	time.Sleep(3 * testWindow)
	assert.Equal(t, 1, probe.callCount())

	probe.mu.Lock()
	seen := probe.calls[0]
	probe.mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, 4, seen[0].Quantity, "the pass reads the cart when it runs")
}

func TestReconciler_OwnMutationsDoNotRetrigger(t *testing.T) {
	probe := newFakeProbe()
	probe.set(redM, 1)
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("tshirt-red", "red", "M", 5)))
	r.Start(context.Background())

	helpers.AssertEventuallyWithTimeout(t, func() bool {
		qty, _ := store.Quantity(redM)
		return qty == 1
	}, time.Second, "initial pass applied")

	time.Sleep(3 * testWindow)
	assert.Equal(t, 1, probe.callCount())
}

func TestReconciler_Refresh(t *testing.T) {
	probe := newFakeProbe()
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("gorra", "", "", 1)))

	r.Refresh()
	r.Refresh()

	assert.Equal(t, uint64(2), r.RefreshCount())
	helpers.AssertEventuallyWithTimeout(t, func() bool { return probe.callCount() == 1 }, time.Second, "refresh pass")
}

func TestReconciler_OnePassInFlight(t *testing.T) {
	probe := newFakeProbe()
	unblock := make(chan struct{})
	probe.block = unblock
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("gorra", "", "", 1)))

	done := make(chan error, 1)
	go func() { done <- r.RunPass(context.Background()) }()
	helpers.AssertEventuallyWithTimeout(t, func() bool { return probe.callCount() == 1 }, time.Second, "first pass started")

	require.NoError(t, r.RunPass(context.Background()))
	assert.Equal(t, 1, probe.callCount(), "overlapping pass is not started")

	probe.mu.Lock()
	probe.block = nil
	probe.mu.Unlock()
	close(unblock)
	require.NoError(t, <-done)

	helpers.AssertEventuallyWithTimeout(t, func() bool { return probe.callCount() == 2 }, time.Second, "deferred pass runs after the first")
}

func TestReconciler_CloseStopsPendingPass(t *testing.T) {
	probe := newFakeProbe()
	store, r := newReconciler(t, probe)
	require.NoError(t, store.Add(helpers.CreateTestCartLine("gorra", "", "", 1)))
	r.Start(context.Background())
	r.Close()

	require.NoError(t, store.Add(helpers.CreateTestCartLine("gorra", "", "", 1)))
	time.Sleep(3 * testWindow)
	assert.Zero(t, probe.callCount())
}

func TestReconciler_WarningsAreSorted(t *testing.T) {
	probe := newFakeProbe()
	keys := []domain.LineKey{
		{Slug: "zapatilla", Size: "40"},
		{Slug: "buzo", Color: "negro", Size: "L"},
		{Slug: "buzo", Color: "azul", Size: "S"},
	}
	store, r := newReconciler(t, probe)
	for _, k := range keys {
		probe.set(k, 1)
		require.NoError(t, store.Add(domain.CartLine{Slug: k.Slug, Color: k.Color, Size: k.Size, Quantity: 3}))
	}

	require.NoError(t, r.RunPass(context.Background()))

	var got []string
	for _, w := range r.Warnings() {
		got = append(got, strings.Join([]string{w.Slug, w.Color, w.Size}, "/"))
	}
	assert.Equal(t, []string{"buzo/azul/S", "buzo/negro/L", "zapatilla//40"}, got)
}
