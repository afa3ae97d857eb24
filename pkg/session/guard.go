package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder can block a session.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Guard runs work one session at a time.
// It uses reference counting to garbage collect unused locks.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker // optional
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Guard.
type Option func(*Guard)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(g *Guard) {
		g.locker = locker
	}
}

// WithLockTTL sets the distributed lease duration.
func WithLockTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		g.ttl = ttl
	}
}

// WithLogger configures a logger for the Guard.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard creates a Guard. Without WithLocker it only serializes within this process.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultLockTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (g *Guard) acquire(sessionID string) *lockEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		g.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (g *Guard) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(g.locks, sessionID)
	}
}

// Do executes fn while holding the lock for the session.
func (g *Guard) Do(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := g.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		g.release(sessionID)
	}()

	if g.locker != nil {
		unlock, err := g.locker.Lock(ctx, sessionID, g.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// A detached context still releases the lease after ctx is cancelled.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				g.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
