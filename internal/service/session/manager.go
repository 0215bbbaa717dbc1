// Package session owns the guest session lifecycle: register, continue as
// guest, lookup and clear. Every operation takes the client token as an
// argument and reports what the caller should do with the client-side token.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/metrics"
	"github.com/diagnosis/concierge/internal/platform/clock"
	"github.com/diagnosis/concierge/internal/repo"
	"github.com/diagnosis/concierge/internal/utils"
	"github.com/diagnosis/concierge/pkg/logger"
)

// Policy holds session lifetimes by identity kind.
type Policy struct {
	RegisteredTTL time.Duration
	GuestTTL      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{RegisteredTTL: 7 * 24 * time.Hour, GuestTTL: 24 * time.Hour}
}

type TokenAction int

const (
	TokenKeep TokenAction = iota
	TokenSet
	TokenClear
)

// TokenDirective tells the transport layer how to update the client token.
type TokenDirective struct {
	Action    TokenAction
	Token     string
	ExpiresAt time.Time
}

type Result struct {
	Session *domain.GuestSession
	Token   TokenDirective
}

// Lookup miss reasons. They are logged and counted, never shown to guests.
const (
	reasonHit           = "hit"
	reasonNoToken       = "no_token"
	reasonHotelNotFound = "hotel_not_found"
	reasonNotFound      = "not_found"
	reasonWrongScope    = "wrong_scope"
	reasonExpired       = "expired"
	reasonError         = "error"
)

type Manager struct {
	dir    repo.Directory
	store  repo.SessionStore
	clock  clock.Clock
	policy Policy
	newID  func() string
}

func NewManager(dir repo.Directory, store repo.SessionStore, clk clock.Clock, policy Policy) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	if policy.RegisteredTTL <= 0 || policy.GuestTTL <= 0 {
		policy = DefaultPolicy()
	}
	return &Manager{dir: dir, store: store, clock: clk, policy: policy, newID: uuid.NewString}
}

// Lookup resolves the session for token in the given hotel room and bumps its
// last-active time. A miss returns a nil session and a nil error; storage
// failures are returned as *domain.StorageError.
func (m *Manager) Lookup(ctx context.Context, hotelSlug, roomCode, token string) (*Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.IncSessionLookup(reasonNoToken)
		return &Result{}, nil
	}

	hotel, err := m.dir.HotelBySlug(ctx, hotelSlug)
	if err != nil {
		metrics.IncSessionLookup(reasonError)
		return nil, domain.WrapStorage("hotel by slug", err)
	}
	if hotel == nil {
		m.miss(ctx, reasonHotelNotFound, hotelSlug, roomCode)
		return &Result{}, nil
	}

	now := m.clock.Now()
	s, err := m.store.Touch(ctx, token, hotel.ID, roomCode, now)
	if err != nil {
		metrics.IncSessionLookup(reasonError)
		return nil, domain.WrapStorage("touch session", err)
	}
	if s != nil {
		metrics.IncSessionLookup(reasonHit)
		return &Result{Session: s}, nil
	}

	reason := m.missReason(ctx, token, now)
	m.miss(ctx, reason, hotelSlug, roomCode)

	res := &Result{}
	if reason == reasonNotFound || reason == reasonExpired {
		res.Token = TokenDirective{Action: TokenClear}
	}
	return res, nil
}

func (m *Manager) missReason(ctx context.Context, token string, now time.Time) string {
	s, err := m.store.Get(ctx, token)
	switch {
	case err != nil:
		return reasonError
	case s == nil:
		return reasonNotFound
	case s.Expired(now):
		return reasonExpired
	default:
		return reasonWrongScope
	}
}

func (m *Manager) miss(ctx context.Context, reason, hotelSlug, roomCode string) {
	metrics.IncSessionLookup(reason)
	logger.DebugContext(ctx, "Guest session lookup missed", "reason", reason, "hotel", hotelSlug, "room", roomCode)
}

// Register creates or refreshes the registered session for the phone number
// in this hotel room.
func (m *Manager) Register(ctx context.Context, hotelSlug, roomCode string, reg domain.Registration) (*Result, error) {
	name := utils.NormalizeName(reg.FullName)
	if name == "" {
		return nil, domain.NewValidationError("full_name", "full name is required")
	}
	phone := utils.NormalizePhone(reg.PhoneNumber)
	if !utils.IsValidPhone(phone) {
		return nil, domain.NewValidationError("phone_number", "a valid phone number is required")
	}
	var email *string
	if e := utils.NormalizeEmail(reg.Email); e != "" {
		if !utils.IsValidEmail(e) {
			return nil, domain.NewValidationError("email", "email address is invalid")
		}
		email = &e
	}

	hotel, err := m.resolveRoom(ctx, hotelSlug, roomCode)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	s, err := m.store.UpsertRegistered(ctx, &domain.GuestSession{
		ID:           m.newID(),
		HotelID:      hotel.ID,
		RoomCode:     roomCode,
		Kind:         domain.IdentityRegistered,
		FullName:     name,
		PhoneNumber:  phone,
		Email:        email,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(m.policy.RegisteredTTL),
	}, now)
	if err != nil {
		return nil, domain.WrapStorage("upsert registered session", err)
	}
	if s == nil {
		return nil, &domain.StorageError{Op: "upsert registered session", Err: fmt.Errorf("no row returned")}
	}

	metrics.SessionsCreatedTotal.WithLabelValues(string(domain.IdentityRegistered)).Inc()
	logger.InfoContext(ctx, "Guest registered", "hotel_id", hotel.ID, "room", roomCode)

	return &Result{Session: s, Token: setToken(s)}, nil
}

// ContinueAsGuest always creates a new anonymous session.
func (m *Manager) ContinueAsGuest(ctx context.Context, hotelSlug, roomCode string) (*Result, error) {
	hotel, err := m.resolveRoom(ctx, hotelSlug, roomCode)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	s := &domain.GuestSession{
		ID:           m.newID(),
		HotelID:      hotel.ID,
		RoomCode:     roomCode,
		Kind:         domain.IdentityAnonymous,
		FullName:     domain.AnonymousName,
		PhoneNumber:  syntheticPhone(now),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(m.policy.GuestTTL),
	}
	if err := m.store.Insert(ctx, s); err != nil {
		return nil, domain.WrapStorage("insert guest session", err)
	}

	metrics.SessionsCreatedTotal.WithLabelValues(string(domain.IdentityAnonymous)).Inc()
	logger.InfoContext(ctx, "Guest continued anonymously", "hotel_id", hotel.ID, "room", roomCode)

	return &Result{Session: s, Token: setToken(s)}, nil
}

// Clear deletes the session if it exists. It always tells the caller to drop
// the client token, unless storage failed.
func (m *Manager) Clear(ctx context.Context, token string) (TokenDirective, error) {
	if token = strings.TrimSpace(token); token != "" {
		if _, err := m.store.Delete(ctx, token); err != nil {
			return TokenDirective{}, domain.WrapStorage("delete session", err)
		}
	}
	return TokenDirective{Action: TokenClear}, nil
}

func (m *Manager) resolveRoom(ctx context.Context, hotelSlug, roomCode string) (*domain.Hotel, error) {
	hotel, err := m.dir.HotelBySlug(ctx, hotelSlug)
	if err != nil {
		return nil, domain.WrapStorage("hotel by slug", err)
	}
	if hotel == nil {
		return nil, fmt.Errorf("hotel %q: %w", hotelSlug, domain.ErrNotFound)
	}
	room, err := m.dir.RoomByNumber(ctx, hotel.ID, roomCode)
	if err != nil {
		return nil, domain.WrapStorage("room by number", err)
	}
	if room == nil {
		return nil, fmt.Errorf("room %q: %w", roomCode, domain.ErrNotFound)
	}
	return hotel, nil
}

func setToken(s *domain.GuestSession) TokenDirective {
	return TokenDirective{Action: TokenSet, Token: s.ID, ExpiresAt: s.ExpiresAt}
}

// syntheticPhone stands in for the phone number of an anonymous session. It
// never collides with a real number or another anonymous session.
func syntheticPhone(now time.Time) string {
	return fmt.Sprintf("guest-%d-%s", now.UnixNano(), uuid.NewString()[:8])
}
