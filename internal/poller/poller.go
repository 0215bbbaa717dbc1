// Package poller turns repeated "what is new since T" queries into
// at-most-once alerts for a staff screen.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/metrics"
	"github.com/diagnosis/concierge/internal/platform/clock"
	"github.com/diagnosis/concierge/pkg/logger"
)

// Fetcher returns NEW requests created after since, newest first. When more
// than limit exist it must return the oldest limit of them.
type Fetcher interface {
	NewRequests(ctx context.Context, since time.Time, categoryID *int64, limit int) ([]domain.RequestSummary, error)
}

type Alerter interface {
	Alert(ctx context.Context, r domain.RequestSummary) error
}

type Config struct {
	Interval   time.Duration
	BatchSize  int
	CategoryID *int64
}

func DefaultConfig() Config {
	return Config{Interval: 5 * time.Second, BatchSize: 10}
}

type Poller struct {
	fetcher Fetcher
	alerter Alerter
	clock   clock.Clock
	cfg     Config

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	cursor  time.Time
	seen    map[int64]struct{}
}

func New(f Fetcher, a Alerter, clk clock.Clock, cfg Config) *Poller {
	if clk == nil {
		clk = clock.System{}
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &Poller{fetcher: f, alerter: a, clock: clk, cfg: cfg, seen: map[int64]struct{}{}}
}

// Start sets the cursor to now so history from before the screen opened is
// never replayed. Run calls it; calling it again has no effect.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		p.started = true
		p.cursor = p.clock.Now()
	}
}

func (p *Poller) Cursor() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *Poller) Seen(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[id]
	return ok
}

// Run polls every interval until ctx ends, then waits for an in-flight poll
// to finish. The in-flight query is not aborted; its result is dropped.
func (p *Poller) Run(ctx context.Context) error {
	p.Start()
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	logger.InfoContext(ctx, "Poller started", "interval", p.cfg.Interval, "batch", p.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			logger.InfoContext(ctx, "Poller stopped")
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick starts a poll unless one is already running. It reports whether a poll
// was started.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.IncPollerTick("skipped")
		logger.DebugContext(ctx, "Poll skipped, previous still in flight")
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		p.poll(ctx)
	}()
	return true
}

// Wait blocks until no poll is in flight.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) poll(ctx context.Context) {
	p.Start()
	since := p.Cursor()

	items, err := p.fetcher.NewRequests(context.WithoutCancel(ctx), since, p.cfg.CategoryID, p.cfg.BatchSize)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		metrics.IncPollerTick("error")
		logger.WarnContext(ctx, "Poll failed, cursor kept", "since", since, "error", err)
		return
	}

	fresh, newest := p.record(items)
	p.advance(since, len(items), len(fresh), newest)

	if len(fresh) == 0 {
		metrics.IncPollerTick("empty")
		return
	}
	metrics.IncPollerTick("ok")

	for _, r := range fresh {
		if err := p.alerter.Alert(ctx, r); err != nil {
			logger.WarnContext(ctx, "Alert failed", "request_id", r.ID, "error", err)
		}
	}
}

// record marks unseen ids as seen before any alert fires and returns them in
// the order received.
func (p *Poller) record(items []domain.RequestSummary) (fresh []domain.RequestSummary, newest time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range items {
		if r.CreatedAt.After(newest) {
			newest = r.CreatedAt
		}
		if _, ok := p.seen[r.ID]; ok {
			continue
		}
		p.seen[r.ID] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh, newest
}

// advance moves the cursor only when the poll surfaced something new, and only
// to a created_at the server reported, never to the local clock. A full batch
// may hide more rows with the same timestamp, so the cursor then stops just
// short of the newest row.
func (p *Poller) advance(since time.Time, got, fresh int, newest time.Time) {
	next := since
	switch {
	case got >= p.cfg.BatchSize && fresh > 0:
		next = newest.Add(-time.Microsecond)
	case got >= p.cfg.BatchSize:
		next = newest
	case fresh > 0:
		next = newest
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if next.After(p.cursor) {
		p.cursor = next
	}
}
