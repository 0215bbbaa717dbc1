package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/concierge/internal/domain"
)

type countingDirectory struct {
	hotels map[string]*domain.Hotel
	calls  int
}

func (c *countingDirectory) HotelBySlug(_ context.Context, slug string) (*domain.Hotel, error) {
	c.calls++
	return c.hotels[slug], nil
}
func (c *countingDirectory) HotelByID(context.Context, int64) (*domain.Hotel, error) { return nil, nil }
func (c *countingDirectory) RoomByNumber(context.Context, int64, string) (*domain.Room, error) {
	return nil, nil
}
func (c *countingDirectory) ServiceBySlug(context.Context, int64, string) (*domain.Service, error) {
	return nil, nil
}
func (c *countingDirectory) ServiceByID(context.Context, int64, int64) (*domain.Service, error) {
	return nil, nil
}

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDirectory_CachesHitsOnly(t *testing.T) {
	mr, client := setupMiniRedis(t)
	inner := &countingDirectory{hotels: map[string]*domain.Hotel{
		"demo-hotel": {ID: 1, Slug: "demo-hotel", Name: "Demo"},
	}}
	dir := NewDirectory(inner, client, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h, err := dir.HotelBySlug(ctx, "demo-hotel")
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.Equal(t, int64(1), h.ID)
	}
	assert.Equal(t, 1, inner.calls)

	for i := 0; i < 2; i++ {
		h, err := dir.HotelBySlug(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, h)
	}
	assert.Equal(t, 3, inner.calls)

	mr.FastForward(2 * time.Minute)
	_, err := dir.HotelBySlug(ctx, "demo-hotel")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestDirectory_FallsBackWhenRedisDown(t *testing.T) {
	mr, client := setupMiniRedis(t)
	inner := &countingDirectory{hotels: map[string]*domain.Hotel{"demo-hotel": {ID: 1}}}
	dir := NewDirectory(inner, client, time.Minute)
	mr.Close()

	h, err := dir.HotelBySlug(context.Background(), "demo-hotel")
	require.NoError(t, err)
	require.NotNil(t, h)
}

func TestIdempotencyStore(t *testing.T) {
	mr, client := setupMiniRedis(t)
	store := NewIdempotencyStore(client)
	ctx := context.Background()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	mr.FastForward(2 * time.Minute)
	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}
