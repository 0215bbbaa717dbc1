package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitSchema creates the tables the service needs. Statements are idempotent.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hotels (
			id BIGSERIAL PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			staff_email TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id BIGSERIAL PRIMARY KEY,
			hotel_id BIGINT NOT NULL REFERENCES hotels(id) ON DELETE CASCADE,
			room_number TEXT NOT NULL,
			UNIQUE (hotel_id, room_number)
		);`,
		`CREATE TABLE IF NOT EXISTS services (
			id BIGSERIAL PRIMARY KEY,
			hotel_id BIGINT NOT NULL REFERENCES hotels(id) ON DELETE CASCADE,
			category_id BIGINT NULL,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (hotel_id, slug)
		);`,
		`CREATE TABLE IF NOT EXISTS guest_sessions (
			id TEXT PRIMARY KEY,
			hotel_id BIGINT NOT NULL REFERENCES hotels(id) ON DELETE CASCADE,
			room_code TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('anonymous','registered')),
			full_name TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			email TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_active_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_guest_sessions_registered
			ON guest_sessions (hotel_id, room_code, phone_number) WHERE kind = 'registered';`,
		`CREATE INDEX IF NOT EXISTS idx_guest_sessions_expires ON guest_sessions (expires_at);`,
		`CREATE TABLE IF NOT EXISTS requests (
			id BIGSERIAL PRIMARY KEY,
			hotel_id BIGINT NOT NULL REFERENCES hotels(id) ON DELETE CASCADE,
			room_id BIGINT NOT NULL REFERENCES rooms(id),
			service_id BIGINT NOT NULL REFERENCES services(id),
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			custom_fields JSONB NULL,
			notes TEXT NULL,
			guest_name TEXT NOT NULL,
			guest_phone TEXT NULL,
			guest_email TEXT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			assignee_id BIGINT NULL,
			status TEXT NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW','IN_PROGRESS','COMPLETED')),
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NULL,
			CHECK ((status = 'COMPLETED') = (completed_at IS NOT NULL))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_hotel_status_created ON requests (hotel_id, status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_session ON requests (hotel_id, session_id, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}
