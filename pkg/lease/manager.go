package lease

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// DefaultTTL bounds a distributed lease whose holder died without releasing it.
const DefaultTTL = 48 * time.Hour

// lockEntry holds the per-directory semaphore and its reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
	held bool
}

// Manager implements ports.DirectoryLocker. Entries are reference counted so
// directories no longer contended leave nothing behind.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithTTL sets the expiry of distributed leases (default DefaultTTL).
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a lease manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func key(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// acquire gets or creates the entry of k and increments its reference count.
func (m *Manager) acquire(k string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[k]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[k] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(k string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[k]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, k)
	}
}

func (m *Manager) setHeld(e *lockEntry, held bool) {
	m.mu.Lock()
	e.held = held
	m.mu.Unlock()
}

// Acquire blocks until dir is owned by the caller. When ctx ends first the
// error wraps domain.ErrLockHeld. release is safe to call more than once.
func (m *Manager) Acquire(ctx context.Context, dir string) (func(), error) {
	k := key(dir)
	entry := m.acquire(k)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(k)
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrLockHeld, k, ctx.Err())
	}

	var unlock ports.UnlockFunc
	if m.locker != nil {
		var err error
		unlock, err = m.locker.Lock(ctx, "dir:"+k, m.ttl)
		if err != nil {
			<-entry.sem
			m.release(k)
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrLockHeld, k, err)
		}
	}
	m.setHeld(entry, true)
	m.logger.Debug("lease acquired", "dir", k)

	var once sync.Once
	return func() {
		once.Do(func() {
			if unlock != nil {
				// The caller's context may already be gone; the lock must still go.
				if err := unlock(context.Background()); err != nil {
					m.logger.Warn("failed to release distributed lease (will expire via TTL)", "dir", k, "err", err)
				}
			}
			m.setHeld(entry, false)
			<-entry.sem
			m.release(k)
			m.logger.Debug("lease released", "dir", k)
		})
	}, nil
}

// Held returns the directories currently leased through this manager, sorted.
func (m *Manager) Held() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.locks))
	for k, e := range m.locks {
		if e.held {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

var _ ports.DirectoryLocker = (*Manager)(nil)
