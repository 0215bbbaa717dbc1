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

type SessionRepo struct{ pool *pgxpool.Pool }

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo { return &SessionRepo{pool: pool} }

const sessionCols = `id, hotel_id, room_code, kind, full_name, phone_number, email,
created_at, last_active_at, expires_at`

func scanSession(row pgx.Row) (*domain.GuestSession, error) {
	var s domain.GuestSession
	err := row.Scan(
		&s.ID, &s.HotelID, &s.RoomCode, &s.Kind, &s.FullName, &s.PhoneNumber, &s.Email,
		&s.CreatedAt, &s.LastActiveAt, &s.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Insert(ctx context.Context, s *domain.GuestSession) error {
	const q = `INSERT INTO guest_sessions (` + sessionCols + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q,
		s.ID, s.HotelID, s.RoomCode, s.Kind, s.FullName, s.PhoneNumber, s.Email,
		s.CreatedAt, s.LastActiveAt, s.ExpiresAt,
	)
	return err
}

func (r *SessionRepo) UpsertRegistered(ctx context.Context, s *domain.GuestSession, now time.Time) (*domain.GuestSession, error) {
	const q = `
		INSERT INTO guest_sessions (` + sessionCols + `)
		VALUES ($1,$2,$3,'registered',$4,$5,$6,$7,$7,$8)
		ON CONFLICT (hotel_id, room_code, phone_number) WHERE kind = 'registered'
		DO UPDATE SET
			id = CASE WHEN guest_sessions.expires_at <= $9 THEN EXCLUDED.id ELSE guest_sessions.id END,
			created_at = CASE WHEN guest_sessions.expires_at <= $9 THEN EXCLUDED.created_at ELSE guest_sessions.created_at END,
			kind = 'registered',
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			last_active_at = EXCLUDED.last_active_at,
			expires_at = EXCLUDED.expires_at
		RETURNING ` + sessionCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanSession(r.pool.QueryRow(ctx, q,
		s.ID, s.HotelID, s.RoomCode, s.FullName, s.PhoneNumber, s.Email,
		s.CreatedAt, s.ExpiresAt, now,
	))
}

func (r *SessionRepo) Touch(ctx context.Context, id string, hotelID int64, roomCode string, now time.Time) (*domain.GuestSession, error) {
	const q = `
		UPDATE guest_sessions SET last_active_at = $4
		WHERE id = $1 AND hotel_id = $2 AND room_code = $3 AND expires_at > $4
		RETURNING ` + sessionCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanSession(r.pool.QueryRow(ctx, q, id, hotelID, roomCode, now))
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.GuestSession, error) {
	const q = `SELECT ` + sessionCols + ` FROM guest_sessions WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanSession(r.pool.QueryRow(ctx, q, id))
}

func (r *SessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ct, err := r.pool.Exec(ctx, `DELETE FROM guest_sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	ct, err := r.pool.Exec(ctx, `DELETE FROM guest_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

var _ repo.SessionStore = (*SessionRepo)(nil)
