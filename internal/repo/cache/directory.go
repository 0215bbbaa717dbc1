package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/repo"
	"github.com/diagnosis/concierge/pkg/logger"
)

// Directory is a read-through Redis cache in front of another Directory.
// Only hits are cached, so a hotel created after a miss resolves at once.
// Redis failures fall back to the inner directory.
type Directory struct {
	inner  repo.Directory
	client *redis.Client
	ttl    time.Duration
}

func NewDirectory(inner repo.Directory, client *redis.Client, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{inner: inner, client: client, ttl: ttl}
}

func readThrough[T any](ctx context.Context, d *Directory, key string, load func() (*T, error)) (*T, error) {
	rctx, cancel := context.WithTimeout(ctx, time.Second)
	raw, err := d.client.Get(rctx, key).Bytes()
	cancel()

	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			return &v, nil
		}
		logger.WarnContext(ctx, "Directory cache entry unreadable", "key", key)
	case !errors.Is(err, redis.Nil):
		logger.WarnContext(ctx, "Directory cache get failed", "key", key, "error", err)
	}

	v, err := load()
	if err != nil || v == nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	wctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := d.client.Set(wctx, key, data, d.ttl).Err(); err != nil {
		logger.WarnContext(ctx, "Directory cache set failed", "key", key, "error", err)
	}
	return v, nil
}

func (d *Directory) HotelBySlug(ctx context.Context, slug string) (*domain.Hotel, error) {
	return readThrough(ctx, d, "dir:hotel:slug:"+slug, func() (*domain.Hotel, error) {
		return d.inner.HotelBySlug(ctx, slug)
	})
}

func (d *Directory) HotelByID(ctx context.Context, id int64) (*domain.Hotel, error) {
	return readThrough(ctx, d, fmt.Sprintf("dir:hotel:id:%d", id), func() (*domain.Hotel, error) {
		return d.inner.HotelByID(ctx, id)
	})
}

func (d *Directory) RoomByNumber(ctx context.Context, hotelID int64, number string) (*domain.Room, error) {
	return readThrough(ctx, d, fmt.Sprintf("dir:room:%d:%s", hotelID, number), func() (*domain.Room, error) {
		return d.inner.RoomByNumber(ctx, hotelID, number)
	})
}

func (d *Directory) ServiceBySlug(ctx context.Context, hotelID int64, slug string) (*domain.Service, error) {
	return readThrough(ctx, d, fmt.Sprintf("dir:service:slug:%d:%s", hotelID, slug), func() (*domain.Service, error) {
		return d.inner.ServiceBySlug(ctx, hotelID, slug)
	})
}

func (d *Directory) ServiceByID(ctx context.Context, hotelID, id int64) (*domain.Service, error) {
	return readThrough(ctx, d, fmt.Sprintf("dir:service:id:%d:%d", hotelID, id), func() (*domain.Service, error) {
		return d.inner.ServiceByID(ctx, hotelID, id)
	})
}

var _ repo.Directory = (*Directory)(nil)
