// internal/app/system/workers/connsweeper.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/features/realtime"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
)

// DefaultSweepInterval is used when a non-positive interval is configured.
const DefaultSweepInterval = time.Minute

// IdentityFetcher reloads a user's current identity. It returns (nil, nil)
// when the user no longer exists.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context, userID string) (*auth.Identity, error)
}

// ConnectionSweeper is a background worker that closes realtime connections
// whose token has expired, whose account was deleted, or whose role changed
// since they connected (their channel membership would be wrong).
type ConnectionSweeper struct {
	hub      *realtime.Hub
	users    IdentityFetcher
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConnectionSweeper creates a sweeper. users may be nil, in which case
// only expiry is checked.
func NewConnectionSweeper(hub *realtime.Hub, users IdentityFetcher, logger *zap.Logger, interval time.Duration) *ConnectionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionSweeper{
		hub:      hub,
		users:    users,
		log:      logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *ConnectionSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("connection sweeper started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *ConnectionSweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("connection sweeper stopped")
	})
}

func (w *ConnectionSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one pass and returns how many connections it closed.
func (w *ConnectionSweeper) Sweep() int {
	now := w.now()
	closed := 0
	for _, c := range w.hub.Snapshot() {
		id := c.Identity()
		if id == nil {
			continue
		}
		if reason := w.staleReason(id, now); reason != "" {
			c.Close(reason)
			closed++
		}
	}
	if closed > 0 {
		w.log.Info("closed stale realtime connections", zap.Int("count", closed))
	}
	return closed
}

func (w *ConnectionSweeper) staleReason(id *auth.Identity, now time.Time) string {
	if id.Expired(now) {
		return "token expired"
	}
	if w.users == nil {
		return ""
	}
	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Short(), w.log, "sweeper identity lookup")
	defer cancel()
	cur, err := w.users.FetchIdentity(ctx, id.ID)
	if err != nil {
		// Keep the connection; the next pass retries.
		w.log.Warn("sweeper identity lookup failed", zap.String("user_id", id.ID), zap.Error(err))
		return ""
	}
	if cur == nil {
		return "account removed"
	}
	if cur.Role != id.Role {
		return "role changed"
	}
	return ""
}
