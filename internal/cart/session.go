// internal/cart/session.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

const snapshotWriteTimeout = 2 * time.Second

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id can name a cart session
func ValidID(id string) bool {
	return cartIDPattern.MatchString(id)
}

// SnapshotKey is the cache key holding the lines of cart id
func SnapshotKey(id string) string {
	return "cart:" + id
}

// SessionConfig tunes cart sessions
type SessionConfig struct {
	DebounceWindow time.Duration
	SnapshotTTL    time.Duration
	IdleTimeout    time.Duration
}

// Session is one live cart and its reconciler
type Session struct {
	ID         string
	Store      *Store
	Reconciler *Reconciler

	lastAccess atomic.Int64
	unsub      func()

	// requests holding the session, guarded by SessionManager.mu
	refs int
}

func (s *Session) touch(now time.Time) {
	s.lastAccess.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastAccess.Load()))
}

func (s *Session) close() {
	if s.unsub != nil {
		s.unsub()
	}
	s.Reconciler.Close()
}

// SessionManager owns the cart sessions served by this process. Cart lines are
// snapshotted to the cache on every change and restored on first access.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ctx    context.Context
	probe  ports.InventoryProbe
	cache  ports.CacheRepository
	cfg    SessionConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionManager creates a session manager. Reconcilers live until ctx is done.
// cache may be nil, in which case carts only live in memory.
func NewSessionManager(ctx context.Context, probe ports.InventoryProbe, cache ports.CacheRepository, cfg SessionConfig, logger *slog.Logger) *SessionManager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		ctx:      ctx,
		probe:    probe,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "cart_sessions")),
		now:      time.Now,
	}
}

// Acquire returns the session for id, restoring it from the cache when it is not
// live. The session is not evicted until release is called; release is idempotent.
func (m *SessionManager) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	if !ValidID(id) {
		return nil, nil, fmt.Errorf("%w: invalid cart id", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = m.openLocked(ctx, id)
	}
	s.refs++
	s.touch(m.now())

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			s.refs--
			s.touch(m.now())
			m.mu.Unlock()
		})
	}
	return s, release, nil
}

func (m *SessionManager) openLocked(ctx context.Context, id string) *Session {
	store := NewStore()
	if m.cache != nil {
		var lines []domain.CartLine
		err := m.cache.Get(ctx, SnapshotKey(id), &lines)
		switch {
		case err == nil:
			store.Restore(lines)
		case errors.Is(err, ports.ErrCacheMiss):
		default:
			m.logger.WarnContext(ctx, "failed to restore cart snapshot",
				slog.String("cart_id", id),
				"err", err)
		}
	}

	logger := m.logger.With(slog.String("cart_id", id))
	s := &Session{
		ID:         id,
		Store:      store,
		Reconciler: NewReconciler(store, m.probe, m.cfg.DebounceWindow, logger),
	}
	if m.cache != nil {
		s.unsub = store.Subscribe(m.snapshotter(id, logger))
	}
	s.Reconciler.Start(m.ctx)

	m.sessions[id] = s
	activeSessions.Set(float64(len(m.sessions)))

	logger.DebugContext(ctx, "cart session opened", slog.Int("lines", store.Len()))
	return s
}

// Delete closes the session and drops its snapshot
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if ok {
		s.close()
	}
	if m.cache != nil {
		if err := m.cache.Delete(ctx, SnapshotKey(id)); err != nil {
			return fmt.Errorf("failed to delete cart snapshot: %w", err)
		}
	}
	return nil
}

// EvictIdle closes sessions idle for longer than the idle timeout. Sessions held
// by a request are skipped. Snapshots stay in the cache so the cart comes back
// on the next access.
func (m *SessionManager) EvictIdle() int {
	now := m.now()

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.refs == 0 && s.idleSince(now) > m.cfg.IdleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
	}
	if len(idle) > 0 {
		m.logger.Info("evicted idle cart sessions", slog.Int("count", len(idle)))
	}
	return len(idle)
}

// RunJanitor evicts idle sessions every interval until ctx is done
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every live session
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	activeSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (m *SessionManager) snapshotter(id string, logger *slog.Logger) Listener {
	key := SnapshotKey(id)
	return func(lines []domain.CartLine, _ Mutation) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), snapshotWriteTimeout)
		defer cancel()

		if err := m.cache.SetWithTTL(ctx, key, lines, m.cfg.SnapshotTTL); err != nil {
			logger.WarnContext(ctx, "failed to write cart snapshot", "err", err)
		}
	}
}
