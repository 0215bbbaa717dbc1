package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/repo"
)

type RequestRepo struct{ pool *pgxpool.Pool }

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo { return &RequestRepo{pool: pool} }

const requestCols = `r.id, r.hotel_id, r.room_id, rm.room_number, r.service_id, sv.name, sv.category_id,
r.quantity, r.custom_fields, r.notes, r.guest_name, r.guest_phone, r.guest_email,
r.session_id, r.assignee_id, r.status, r.created_at, r.completed_at`

const requestJoins = ` JOIN rooms rm ON rm.id = r.room_id JOIN services sv ON sv.id = r.service_id`

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var q domain.Request
	err := row.Scan(
		&q.ID, &q.HotelID, &q.RoomID, &q.RoomNumber, &q.ServiceID, &q.ServiceName, &q.CategoryID,
		&q.Quantity, &q.CustomFields, &q.Notes, &q.GuestName, &q.GuestPhone, &q.GuestEmail,
		&q.SessionID, &q.AssigneeID, &q.Status, &q.CreatedAt, &q.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func collectRequests(rows pgx.Rows, capacity int) ([]domain.Request, error) {
	defer rows.Close()
	out := make([]domain.Request, 0, capacity)
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *RequestRepo) Create(ctx context.Context, in *domain.NewRequest) (*domain.Request, error) {
	const q = `
		WITH r AS (
			INSERT INTO requests (
				hotel_id, room_id, service_id, quantity, custom_fields, notes,
				guest_name, guest_phone, guest_email, session_id, status, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'NEW',$11)
			RETURNING *
		)
		SELECT ` + requestCols + ` FROM r` + requestJoins

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q,
		in.HotelID, in.RoomID, in.ServiceID, in.Quantity, jsonParam(in.CustomFields), in.Notes,
		in.GuestName, in.GuestPhone, in.GuestEmail, in.SessionID, in.CreatedAt,
	))
}

func (r *RequestRepo) GetByID(ctx context.Context, hotelID, id int64) (*domain.Request, error) {
	const q = `SELECT ` + requestCols + ` FROM requests r` + requestJoins + ` WHERE r.id = $1 AND r.hotel_id = $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q, id, hotelID))
}

func (r *RequestRepo) List(ctx context.Context, hotelID int64, f domain.RequestFilter) ([]domain.Request, error) {
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	const q = `
		SELECT ` + requestCols + `
		FROM requests r` + requestJoins + `
		WHERE r.hotel_id = $1 AND ($2::text IS NULL OR r.status = $2::text)
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $3 OFFSET $4`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, hotelID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows, limit)
}

func (r *RequestRepo) ListBySession(ctx context.Context, hotelID int64, sessionID string, limit int) ([]domain.Request, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const q = `
		SELECT ` + requestCols + `
		FROM requests r` + requestJoins + `
		WHERE r.hotel_id = $1 AND r.session_id = $2
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, hotelID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows, limit)
}

// UpdateStatus writes status and completed_at in one statement, guarded on
// the previous status.
func (r *RequestRepo) UpdateStatus(ctx context.Context, hotelID, id int64, from, to domain.RequestStatus, now time.Time) (*domain.Request, error) {
	const q = `
		WITH r AS (
			UPDATE requests
			SET status = $4::text,
			    completed_at = CASE WHEN $4::text = 'COMPLETED' THEN $5::timestamptz ELSE NULL END
			WHERE id = $1 AND hotel_id = $2 AND status = $3::text
			RETURNING *
		)
		SELECT ` + requestCols + ` FROM r` + requestJoins

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q, id, hotelID, string(from), string(to), now))
}

func (r *RequestRepo) SetAssignee(ctx context.Context, hotelID, id int64, assigneeID *int64) (*domain.Request, error) {
	const q = `
		WITH r AS (
			UPDATE requests SET assignee_id = $3
			WHERE id = $1 AND hotel_id = $2
			RETURNING *
		)
		SELECT ` + requestCols + ` FROM r` + requestJoins

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q, id, hotelID, assigneeID))
}

func (r *RequestRepo) Delete(ctx context.Context, hotelID, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ct, err := r.pool.Exec(ctx, `DELETE FROM requests WHERE id = $1 AND hotel_id = $2`, id, hotelID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *RequestRepo) NewSince(ctx context.Context, hotelID int64, since time.Time, categoryID *int64, limit int) ([]domain.RequestSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT r.id, rm.room_number, sv.name, r.notes, r.created_at
		FROM requests r` + requestJoins + `
		WHERE r.hotel_id = $1
		  AND r.status = 'NEW'
		  AND r.created_at > $2
		  AND ($3::bigint IS NULL OR sv.category_id = $3::bigint)
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT $4`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, hotelID, since, categoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RequestSummary, 0, limit)
	for rows.Next() {
		var s domain.RequestSummary
		if err := rows.Scan(&s.ID, &s.RoomNumber, &s.ServiceName, &s.Notes, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ repo.RequestStore = (*RequestRepo)(nil)
