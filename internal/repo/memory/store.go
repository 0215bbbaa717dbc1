// Package memory is an in-process store used by tests and local demos. It
// mirrors the postgres semantics: conditional upsert, predicate delete and
// compare-and-set status updates all happen under one lock.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/repo"
)

type Store struct {
	mu sync.Mutex

	hotels   map[int64]domain.Hotel
	rooms    map[int64]domain.Room
	services map[int64]domain.Service
	sessions map[string]domain.GuestSession
	requests map[int64]domain.Request

	nextID int64

	// Fail, when set, is returned by every store call.
	Fail error
}

func New() *Store {
	return &Store{
		hotels:   map[int64]domain.Hotel{},
		rooms:    map[int64]domain.Room{},
		services: map[int64]domain.Service{},
		sessions: map[string]domain.GuestSession{},
		requests: map[int64]domain.Request{},
	}
}

// SessionView and RequestView expose the session and request halves of the
// store under their own interfaces; both share the Store lock.
type SessionView struct{ *Store }

type RequestView struct{ *Store }

func (s *Store) Sessions() SessionView { return SessionView{s} }

func (s *Store) Requests() RequestView { return RequestView{s} }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) SetFail(err error) {
	s.mu.Lock()
	s.Fail = err
	s.mu.Unlock()
}

func (s *Store) AddHotel(slug, name, staffEmail string) domain.Hotel {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := domain.Hotel{ID: s.id(), Slug: slug, Name: name, StaffEmail: staffEmail}
	s.hotels[h.ID] = h
	return h
}

func (s *Store) AddRoom(hotelID int64, number string) domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm := domain.Room{ID: s.id(), HotelID: hotelID, RoomNumber: number}
	s.rooms[rm.ID] = rm
	return rm
}

func (s *Store) AddService(hotelID int64, categoryID *int64, slug, name string) domain.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv := domain.Service{ID: s.id(), HotelID: hotelID, CategoryID: categoryID, Slug: slug, Name: name}
	s.services[sv.ID] = sv
	return sv
}

// SessionCount returns the number of stored rows, expired ones included.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sessions

func (s SessionView) Insert(_ context.Context, gs *domain.GuestSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if _, ok := s.sessions[gs.ID]; ok {
		return domain.ErrConflict
	}
	s.sessions[gs.ID] = *gs
	return nil
}

func (s SessionView) UpsertRegistered(_ context.Context, gs *domain.GuestSession, now time.Time) (*domain.GuestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	for id, cur := range s.sessions {
		if cur.Kind != domain.IdentityRegistered || cur.HotelID != gs.HotelID ||
			cur.RoomCode != gs.RoomCode || cur.PhoneNumber != gs.PhoneNumber {
			continue
		}
		if cur.Expired(now) {
			delete(s.sessions, id)
			cur.ID = gs.ID
			cur.CreatedAt = gs.CreatedAt
		}
		cur.Kind = domain.IdentityRegistered
		cur.FullName = gs.FullName
		cur.Email = gs.Email
		cur.LastActiveAt = gs.LastActiveAt
		cur.ExpiresAt = gs.ExpiresAt
		s.sessions[cur.ID] = cur
		out := cur
		return &out, nil
	}
	row := *gs
	row.Kind = domain.IdentityRegistered
	s.sessions[row.ID] = row
	return &row, nil
}

func (s SessionView) Touch(_ context.Context, id string, hotelID int64, roomCode string, now time.Time) (*domain.GuestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	cur, ok := s.sessions[id]
	if !ok || cur.HotelID != hotelID || cur.RoomCode != roomCode || cur.Expired(now) {
		return nil, nil
	}
	cur.LastActiveAt = now
	s.sessions[id] = cur
	return &cur, nil
}

func (s SessionView) Get(_ context.Context, id string) (*domain.GuestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	cur, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

func (s SessionView) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return false, s.Fail
	}
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok, nil
}

func (s SessionView) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return 0, s.Fail
	}
	var n int64
	for id, cur := range s.sessions {
		if cur.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Directory

func (s *Store) HotelBySlug(_ context.Context, slug string) (*domain.Hotel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	for _, h := range s.hotels {
		if h.Slug == slug {
			return &h, nil
		}
	}
	return nil, nil
}

func (s *Store) HotelByID(_ context.Context, id int64) (*domain.Hotel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	h, ok := s.hotels[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Store) RoomByNumber(_ context.Context, hotelID int64, number string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	for _, rm := range s.rooms {
		if rm.HotelID == hotelID && rm.RoomNumber == number {
			return &rm, nil
		}
	}
	return nil, nil
}

func (s *Store) ServiceBySlug(_ context.Context, hotelID int64, slug string) (*domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	for _, sv := range s.services {
		if sv.HotelID == hotelID && sv.Slug == slug {
			return &sv, nil
		}
	}
	return nil, nil
}

func (s *Store) ServiceByID(_ context.Context, hotelID, id int64) (*domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	sv, ok := s.services[id]
	if !ok || sv.HotelID != hotelID {
		return nil, nil
	}
	return &sv, nil
}

// Requests

func (s *Store) hydrate(q domain.Request) domain.Request {
	q.RoomNumber = s.rooms[q.RoomID].RoomNumber
	sv := s.services[q.ServiceID]
	q.ServiceName = sv.Name
	q.CategoryID = sv.CategoryID
	return q
}

func (s RequestView) Create(_ context.Context, in *domain.NewRequest) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	q := domain.Request{
		ID:           s.id(),
		HotelID:      in.HotelID,
		RoomID:       in.RoomID,
		ServiceID:    in.ServiceID,
		Quantity:     in.Quantity,
		CustomFields: in.CustomFields,
		Notes:        in.Notes,
		GuestName:    in.GuestName,
		GuestPhone:   in.GuestPhone,
		GuestEmail:   in.GuestEmail,
		SessionID:    in.SessionID,
		Status:       domain.StatusNew,
		CreatedAt:    in.CreatedAt,
	}
	s.requests[q.ID] = q
	out := s.hydrate(q)
	return &out, nil
}

func (s RequestView) GetByID(_ context.Context, hotelID, id int64) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	q, ok := s.requests[id]
	if !ok || q.HotelID != hotelID {
		return nil, nil
	}
	out := s.hydrate(q)
	return &out, nil
}

func (s *Store) sortedNewestFirst(keep func(domain.Request) bool) []domain.Request {
	out := make([]domain.Request, 0)
	for _, q := range s.requests {
		if keep(q) {
			out = append(out, s.hydrate(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(in []domain.Request, limit, offset int) []domain.Request {
	if offset >= len(in) {
		return []domain.Request{}
	}
	in = in[offset:]
	if len(in) > limit {
		in = in[:limit]
	}
	return in
}

func (s RequestView) List(_ context.Context, hotelID int64, f domain.RequestFilter) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	all := s.sortedNewestFirst(func(q domain.Request) bool {
		return q.HotelID == hotelID && (f.Status == nil || q.Status == *f.Status)
	})
	return page(all, limit, offset), nil
}

func (s RequestView) ListBySession(_ context.Context, hotelID int64, sessionID string, limit int) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	all := s.sortedNewestFirst(func(q domain.Request) bool {
		return q.HotelID == hotelID && q.SessionID == sessionID
	})
	return page(all, limit, 0), nil
}

func (s RequestView) UpdateStatus(_ context.Context, hotelID, id int64, from, to domain.RequestStatus, now time.Time) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	q, ok := s.requests[id]
	if !ok || q.HotelID != hotelID || q.Status != from {
		return nil, nil
	}
	q.Status = to
	q.CompletedAt = nil
	if to == domain.StatusCompleted {
		t := now
		q.CompletedAt = &t
	}
	s.requests[id] = q
	out := s.hydrate(q)
	return &out, nil
}

func (s RequestView) SetAssignee(_ context.Context, hotelID, id int64, assigneeID *int64) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	q, ok := s.requests[id]
	if !ok || q.HotelID != hotelID {
		return nil, nil
	}
	q.AssigneeID = assigneeID
	s.requests[id] = q
	out := s.hydrate(q)
	return &out, nil
}

func (s RequestView) Delete(_ context.Context, hotelID, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return false, s.Fail
	}
	q, ok := s.requests[id]
	if !ok || q.HotelID != hotelID {
		return false, nil
	}
	delete(s.requests, id)
	return true, nil
}

func (s RequestView) NewSince(_ context.Context, hotelID int64, since time.Time, categoryID *int64, limit int) ([]domain.RequestSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	if limit <= 0 {
		limit = 10
	}
	all := s.sortedNewestFirst(func(q domain.Request) bool {
		if q.HotelID != hotelID || q.Status != domain.StatusNew || !q.CreatedAt.After(since) {
			return false
		}
		if categoryID != nil {
			cat := s.services[q.ServiceID].CategoryID
			return cat != nil && *cat == *categoryID
		}
		return true
	})
	out := make([]domain.RequestSummary, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		q := all[i]
		out = append(out, domain.RequestSummary{
			ID: q.ID, RoomNumber: q.RoomNumber, ServiceName: q.ServiceName, Notes: q.Notes, CreatedAt: q.CreatedAt,
		})
	}
	return out, nil
}

var (
	_ repo.SessionStore = SessionView{}
	_ repo.RequestStore = RequestView{}
	_ repo.Directory    = (*Store)(nil)
)
