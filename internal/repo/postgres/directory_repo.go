package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/repo"
)

type DirectoryRepo struct{ pool *pgxpool.Pool }

func NewDirectoryRepo(pool *pgxpool.Pool) *DirectoryRepo { return &DirectoryRepo{pool: pool} }

func (r *DirectoryRepo) hotel(ctx context.Context, where string, arg any) (*domain.Hotel, error) {
	q := `SELECT id, slug, name, staff_email FROM hotels WHERE ` + where
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var h domain.Hotel
	err := r.pool.QueryRow(ctx, q, arg).Scan(&h.ID, &h.Slug, &h.Name, &h.StaffEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *DirectoryRepo) HotelBySlug(ctx context.Context, slug string) (*domain.Hotel, error) {
	return r.hotel(ctx, `slug = $1`, slug)
}

func (r *DirectoryRepo) HotelByID(ctx context.Context, id int64) (*domain.Hotel, error) {
	return r.hotel(ctx, `id = $1`, id)
}

func (r *DirectoryRepo) RoomByNumber(ctx context.Context, hotelID int64, number string) (*domain.Room, error) {
	const q = `SELECT id, hotel_id, room_number FROM rooms WHERE hotel_id = $1 AND room_number = $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rm domain.Room
	err := r.pool.QueryRow(ctx, q, hotelID, number).Scan(&rm.ID, &rm.HotelID, &rm.RoomNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

func (r *DirectoryRepo) service(ctx context.Context, hotelID int64, where string, arg any) (*domain.Service, error) {
	q := `SELECT id, hotel_id, category_id, slug, name FROM services WHERE hotel_id = $1 AND ` + where
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.Service
	err := r.pool.QueryRow(ctx, q, hotelID, arg).Scan(&s.ID, &s.HotelID, &s.CategoryID, &s.Slug, &s.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *DirectoryRepo) ServiceBySlug(ctx context.Context, hotelID int64, slug string) (*domain.Service, error) {
	return r.service(ctx, hotelID, `slug = $2`, slug)
}

func (r *DirectoryRepo) ServiceByID(ctx context.Context, hotelID, id int64) (*domain.Service, error) {
	return r.service(ctx, hotelID, `id = $2`, id)
}

var _ repo.Directory = (*DirectoryRepo)(nil)
