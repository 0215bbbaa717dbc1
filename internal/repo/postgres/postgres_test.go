package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/concierge/internal/domain"
)

type fixture struct {
	pool      *pgxpool.Pool
	hotelID   int64
	roomID    int64
	serviceID int64
}

// newFixture connects to TEST_DATABASE_URL and seeds a hotel that is removed
// when the test ends. Rows hang off the hotel so the cascade cleans them up.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, InitSchema(ctx, pool))

	f := &fixture{pool: pool}
	slug := "test-" + uuid.NewString()
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO hotels (slug, name) VALUES ($1, 'Test Hotel') RETURNING id`, slug,
	).Scan(&f.hotelID))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM requests WHERE hotel_id = $1`, f.hotelID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM hotels WHERE id = $1`, f.hotelID)
	})

	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO rooms (hotel_id, room_number) VALUES ($1, '204') RETURNING id`, f.hotelID,
	).Scan(&f.roomID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO services (hotel_id, slug, name) VALUES ($1, 'towels', 'Towels') RETURNING id`, f.hotelID,
	).Scan(&f.serviceID))
	return f
}

func (f *fixture) registered(phone string, now time.Time, ttl time.Duration) *domain.GuestSession {
	return &domain.GuestSession{
		ID:          uuid.NewString(),
		HotelID:     f.hotelID,
		RoomCode:    "204",
		Kind:        domain.IdentityRegistered,
		FullName:    "Ana",
		PhoneNumber: phone,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (f *fixture) countRegistered(t *testing.T, phone string) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM guest_sessions WHERE hotel_id = $1 AND phone_number = $2 AND kind = 'registered'`,
		f.hotelID, phone,
	).Scan(&n))
	return n
}

func TestSessionRepo_UpsertRegisteredReusesLiveRow(t *testing.T) {
	f := newFixture(t)
	repo := NewSessionRepo(f.pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first, err := repo.UpsertRegistered(ctx, f.registered("+15550000001", now, time.Hour), now)
	require.NoError(t, err)
	require.NotNil(t, first)

	later := now.Add(time.Minute)
	in := f.registered("+15550000001", later, time.Hour)
	in.FullName = "Ana Lopez"
	second, err := repo.UpsertRegistered(ctx, in, later)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.Equal(t, "Ana Lopez", second.FullName)
	assert.True(t, second.ExpiresAt.Equal(later.Add(time.Hour)))
	assert.Equal(t, 1, f.countRegistered(t, "+15550000001"))
}

func TestSessionRepo_UpsertRegisteredConcurrent(t *testing.T) {
	f := newFixture(t)
	repo := NewSessionRepo(f.pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := repo.UpsertRegistered(ctx, f.registered("+15550000002", now, time.Hour), now)
			if assert.NoError(t, err) && assert.NotNil(t, s) {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.countRegistered(t, "+15550000002"))
}

func TestSessionRepo_UpsertRegisteredRotatesExpiredID(t *testing.T) {
	f := newFixture(t)
	repo := NewSessionRepo(f.pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	old, err := repo.UpsertRegistered(ctx, f.registered("+15550000003", now, time.Minute), now)
	require.NoError(t, err)

	later := now.Add(2 * time.Minute)
	fresh, err := repo.UpsertRegistered(ctx, f.registered("+15550000003", later, time.Hour), later)
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, fresh.ID)
	assert.True(t, fresh.CreatedAt.Equal(later))
	assert.Equal(t, 1, f.countRegistered(t, "+15550000003"))

	gone, err := repo.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSessionRepo_AnonymousRowsDoNotCollide(t *testing.T) {
	f := newFixture(t)
	repo := NewSessionRepo(f.pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 2; i++ {
		s := f.registered("shared-placeholder", now, time.Hour)
		s.Kind = domain.IdentityAnonymous
		s.LastActiveAt = now
		require.NoError(t, repo.Insert(ctx, s))
	}
	reg, err := repo.UpsertRegistered(ctx, f.registered("shared-placeholder", now, time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, domain.IdentityRegistered, reg.Kind)
	assert.Equal(t, 1, f.countRegistered(t, "shared-placeholder"))
}

func TestSessionRepo_DeleteExpired(t *testing.T) {
	f := newFixture(t)
	repo := NewSessionRepo(f.pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	expired, err := repo.UpsertRegistered(ctx, f.registered("+15550000004", now.Add(-2*time.Hour), time.Hour), now.Add(-2*time.Hour))
	require.NoError(t, err)
	live, err := repo.UpsertRegistered(ctx, f.registered("+15550000005", now, time.Hour), now)
	require.NoError(t, err)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	got, err := repo.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.Get(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	touched, err := repo.Touch(ctx, live.ID, f.hotelID, "204", now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, touched)
	assert.True(t, touched.LastActiveAt.Equal(now.Add(time.Minute)))

	stale, err := repo.Touch(ctx, live.ID, f.hotelID, "204", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, stale)
}

func TestRequestRepo_UpdateStatusCAS(t *testing.T) {
	f := newFixture(t)
	repo := NewRequestRepo(f.pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	created, err := repo.Create(ctx, &domain.NewRequest{
		HotelID: f.hotelID, RoomID: f.roomID, ServiceID: f.serviceID, Quantity: 2,
		GuestName: "Ana", SessionID: "s-1", CreatedAt: now,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, domain.StatusNew, created.Status)
	assert.Equal(t, "204", created.RoomNumber)
	assert.Equal(t, "Towels", created.ServiceName)
	assert.Nil(t, created.CompletedAt)

	stale, err := repo.UpdateStatus(ctx, f.hotelID, created.ID, domain.StatusInProgress, domain.StatusCompleted, now)
	require.NoError(t, err)
	assert.Nil(t, stale)

	moved, err := repo.UpdateStatus(ctx, f.hotelID, created.ID, domain.StatusNew, domain.StatusInProgress, now)
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.Equal(t, domain.StatusInProgress, moved.Status)
	assert.Nil(t, moved.CompletedAt)

	done := now.Add(time.Minute)
	completed, err := repo.UpdateStatus(ctx, f.hotelID, created.ID, domain.StatusInProgress, domain.StatusCompleted, done)
	require.NoError(t, err)
	require.NotNil(t, completed)
	assert.Equal(t, domain.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.True(t, completed.CompletedAt.Equal(done))

	reopened, err := repo.UpdateStatus(ctx, f.hotelID, created.ID, domain.StatusCompleted, domain.StatusNew, done)
	require.NoError(t, err)
	require.NotNil(t, reopened)
	assert.Nil(t, reopened.CompletedAt)

	other, err := repo.UpdateStatus(ctx, f.hotelID+1_000_000, created.ID, domain.StatusNew, domain.StatusInProgress, now)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestRequestRepo_UpdateStatusConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	repo := NewRequestRepo(f.pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	created, err := repo.Create(ctx, &domain.NewRequest{
		HotelID: f.hotelID, RoomID: f.roomID, ServiceID: f.serviceID, Quantity: 1,
		GuestName: "Ana", CreatedAt: now,
	})
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repo.UpdateStatus(ctx, f.hotelID, created.ID, domain.StatusNew, domain.StatusInProgress, now)
			if assert.NoError(t, err) && got != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
