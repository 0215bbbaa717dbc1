package poller

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/platform/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []domain.RequestSummary
	err    error
}

func (a *recordingAlerter) Alert(_ context.Context, r domain.RequestSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, r)
	return a.err
}

func (a *recordingAlerter) ids() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int64, 0, len(a.alerts))
	for _, r := range a.alerts {
		out = append(out, r.ID)
	}
	return out
}

// scriptedFetcher replays canned responses and records the cursor it was
// asked for.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses [][]domain.RequestSummary
	errs      []error
	sinces    []time.Time
}

func (f *scriptedFetcher) NewRequests(_ context.Context, since time.Time, _ *int64, _ int) ([]domain.RequestSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.sinces)
	f.sinces = append(f.sinces, since)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, nil
}

func pollOnce(t *testing.T, p *Poller) {
	t.Helper()
	require.True(t, p.Tick(context.Background()))
	p.Wait()
}

func summary(id int64, at time.Time) domain.RequestSummary {
	return domain.RequestSummary{ID: id, RoomNumber: "204", ServiceName: "Club Sandwich", CreatedAt: at}
}

func TestPoll_SameRequestTwiceAlertsOnce(t *testing.T) {
	r1 := summary(1, t0.Add(time.Second))
	f := &scriptedFetcher{responses: [][]domain.RequestSummary{{r1}, {r1}}}
	a := &recordingAlerter{}
	clk := clock.NewFake(t0)
	p := New(f, a, clk, DefaultConfig())
	p.Start()

	clk.Advance(5 * time.Second)
	pollOnce(t, p)
	clk.Advance(5 * time.Second)
	pollOnce(t, p)

	assert.Equal(t, []int64{1}, a.ids())
	assert.True(t, p.Seen(1))
}

func TestPoll_AlertFailureDoesNotReAlert(t *testing.T) {
	r1 := summary(1, t0.Add(time.Second))
	f := &scriptedFetcher{responses: [][]domain.RequestSummary{{r1}, {r1}}}
	a := &recordingAlerter{err: errors.New("speaker unplugged")}
	p := New(f, a, clock.NewFake(t0), DefaultConfig())

	pollOnce(t, p)
	pollOnce(t, p)
	assert.Len(t, a.ids(), 1)
}

func TestPoll_CursorRules(t *testing.T) {
	clk := clock.NewFake(t0)
	r1 := summary(1, t0.Add(time.Second))
	f := &scriptedFetcher{
		responses: [][]domain.RequestSummary{nil, {r1}, nil, {r1}},
		errs:      []error{nil, nil, errors.New("db down")},
	}
	p := New(f, &recordingAlerter{}, clk, DefaultConfig())
	p.Start()

	clk.Advance(5 * time.Second)
	pollOnce(t, p)
	assert.Equal(t, t0, p.Cursor(), "empty poll keeps cursor")

	clk.Advance(5 * time.Second)
	pollOnce(t, p)
	assert.Equal(t, r1.CreatedAt, p.Cursor(), "new id advances cursor to its created_at")

	clk.Advance(5 * time.Second)
	pollOnce(t, p)
	assert.Equal(t, r1.CreatedAt, p.Cursor(), "failed poll keeps cursor")

	clk.Advance(5 * time.Second)
	pollOnce(t, p)
	assert.Equal(t, r1.CreatedAt, p.Cursor(), "only seen ids keeps cursor")

	assert.Equal(t, []time.Time{t0, t0, r1.CreatedAt, r1.CreatedAt}, f.sinces)
}

func TestPoll_CursorIgnoresLocalClockSkew(t *testing.T) {
	// The monitor clock runs ten minutes ahead of the server that stamps
	// created_at. A request created inside that gap must still be fetched.
	clk := clock.NewFake(t0)
	r1 := summary(1, t0.Add(time.Second))
	r2 := summary(2, t0.Add(2*time.Second))
	f := &scriptedFetcher{responses: [][]domain.RequestSummary{{r1}, {r2}}}
	a := &recordingAlerter{}
	p := New(f, a, clk, DefaultConfig())
	p.Start()

	clk.Advance(10 * time.Minute)
	pollOnce(t, p)
	clk.Advance(5 * time.Second)
	pollOnce(t, p)

	require.Len(t, f.sinces, 2)
	assert.Equal(t, r1.CreatedAt, f.sinces[1])
	assert.Equal(t, []int64{1, 2}, a.ids())
	assert.Equal(t, r2.CreatedAt, p.Cursor())
}

func TestPoll_FullBatchPagesForward(t *testing.T) {
	clk := clock.NewFake(t0)
	a1, a2, a3 := summary(1, t0.Add(1*time.Second)), summary(2, t0.Add(2*time.Second)), summary(3, t0.Add(3*time.Second))
	f := &scriptedFetcher{responses: [][]domain.RequestSummary{{a2, a1}, {a3, a2}, {a3}}}
	p := New(f, &recordingAlerter{}, clk, Config{Interval: time.Second, BatchSize: 2})
	p.Start()

	clk.Advance(10 * time.Second)
	pollOnce(t, p)
	assert.Equal(t, a2.CreatedAt.Add(-time.Microsecond), p.Cursor())

	pollOnce(t, p)
	assert.Equal(t, a3.CreatedAt.Add(-time.Microsecond), p.Cursor())

	pollOnce(t, p)
	assert.Equal(t, a3.CreatedAt.Add(-time.Microsecond), p.Cursor())
	assert.True(t, p.Seen(1) && p.Seen(2) && p.Seen(3))
}

type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	out     []domain.RequestSummary
}

func (b *blockingFetcher) NewRequests(ctx context.Context, _ time.Time, _ *int64, _ int) ([]domain.RequestSummary, error) {
	close(b.started)
	<-b.release
	return b.out, ctx.Err()
}

func TestTick_SkipsWhileInFlight(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{}), out: []domain.RequestSummary{summary(1, t0.Add(time.Second))}}
	a := &recordingAlerter{}
	p := New(f, a, clock.NewFake(t0), DefaultConfig())
	ctx := context.Background()

	require.True(t, p.Tick(ctx))
	<-f.started
	assert.False(t, p.Tick(ctx))
	assert.False(t, p.Tick(ctx))

	close(f.release)
	p.Wait()
	assert.Equal(t, []int64{1}, a.ids())
}

func TestPoll_ResultDiscardedAfterCancel(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{}), out: []domain.RequestSummary{summary(1, t0.Add(time.Second))}}
	a := &recordingAlerter{}
	clk := clock.NewFake(t0)
	p := New(f, a, clk, DefaultConfig())
	p.Start()

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, p.Tick(ctx))
	<-f.started
	cancel()
	close(f.release)
	p.Wait()

	assert.Empty(t, a.ids())
	assert.Equal(t, t0, p.Cursor())
	assert.False(t, p.Seen(1))
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := &scriptedFetcher{}
	p := New(f, &recordingAlerter{}, nil, Config{Interval: 5 * time.Millisecond, BatchSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.sinces) >= 2
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestTerminalAlerter(t *testing.T) {
	var buf bytes.Buffer
	notes := "no mayo"
	r := summary(7, t0)
	r.Notes = &notes

	require.NoError(t, NewTerminalAlerter(&buf).Alert(context.Background(), r))
	out := buf.String()
	assert.Contains(t, out, "\a")
	assert.Contains(t, out, "#7: room 204, Club Sandwich (no mayo)")
}
