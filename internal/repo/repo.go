package repo

import (
	"context"
	"time"

	"github.com/diagnosis/concierge/internal/domain"
)

// Lookups return (nil, nil) when the row does not exist.

type SessionStore interface {
	Insert(ctx context.Context, s *domain.GuestSession) error
	// UpsertRegistered creates or refreshes the registered session for
	// (hotel, room, phone) in one statement. An expired match is replaced
	// with s.ID so stale tokens never resurrect.
	UpsertRegistered(ctx context.Context, s *domain.GuestSession, now time.Time) (*domain.GuestSession, error)
	// Touch bumps last_active_at on the matching active session.
	Touch(ctx context.Context, id string, hotelID int64, roomCode string, now time.Time) (*domain.GuestSession, error)
	Get(ctx context.Context, id string) (*domain.GuestSession, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type RequestStore interface {
	Create(ctx context.Context, in *domain.NewRequest) (*domain.Request, error)
	GetByID(ctx context.Context, hotelID, id int64) (*domain.Request, error)
	List(ctx context.Context, hotelID int64, f domain.RequestFilter) ([]domain.Request, error)
	ListBySession(ctx context.Context, hotelID int64, sessionID string, limit int) ([]domain.Request, error)
	// UpdateStatus is a compare-and-set on from; it returns (nil, nil) when
	// the row is gone or no longer in from.
	UpdateStatus(ctx context.Context, hotelID, id int64, from, to domain.RequestStatus, now time.Time) (*domain.Request, error)
	SetAssignee(ctx context.Context, hotelID, id int64, assigneeID *int64) (*domain.Request, error)
	Delete(ctx context.Context, hotelID, id int64) (bool, error)
	// NewSince returns NEW requests created after since, oldest first.
	NewSince(ctx context.Context, hotelID int64, since time.Time, categoryID *int64, limit int) ([]domain.RequestSummary, error)
}

type Directory interface {
	HotelBySlug(ctx context.Context, slug string) (*domain.Hotel, error)
	HotelByID(ctx context.Context, id int64) (*domain.Hotel, error)
	RoomByNumber(ctx context.Context, hotelID int64, number string) (*domain.Room, error)
	ServiceBySlug(ctx context.Context, hotelID int64, slug string) (*domain.Service, error)
	ServiceByID(ctx context.Context, hotelID, id int64) (*domain.Service, error)
}
