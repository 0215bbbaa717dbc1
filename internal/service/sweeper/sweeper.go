// Package sweeper deletes expired guest sessions.
package sweeper

import (
	"context"
	"time"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/metrics"
	"github.com/diagnosis/concierge/internal/platform/clock"
	"github.com/diagnosis/concierge/internal/repo"
	"github.com/diagnosis/concierge/pkg/logger"
)

type Result struct {
	DeletedCount int64 `json:"deleted_count"`
}

type Sweeper struct {
	store repo.SessionStore
	clock clock.Clock
}

func New(store repo.SessionStore, clk clock.Clock) *Sweeper {
	if clk == nil {
		clk = clock.System{}
	}
	return &Sweeper{store: store, clock: clk}
}

// Sweep deletes every session whose expiry is before now with a single
// predicate delete, so a session renewed concurrently is never removed.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	n, err := s.store.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return Result{}, domain.WrapStorage("delete expired sessions", err)
	}
	metrics.SessionsSweptTotal.Add(float64(n))
	logger.InfoContext(ctx, "Expired guest sessions swept", "deleted", n)
	return Result{DeletedCount: n}, nil
}

// Run sweeps every interval until ctx ends. Failures are logged and retried
// on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				logger.ErrorContext(ctx, "Session sweep failed", "error", err)
			}
		}
	}
}
