// Package ledger records guest service requests and drives their status
// state machine.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/metrics"
	"github.com/diagnosis/concierge/internal/notify"
	"github.com/diagnosis/concierge/internal/platform/clock"
	"github.com/diagnosis/concierge/internal/repo"
	"github.com/diagnosis/concierge/internal/utils"
	"github.com/diagnosis/concierge/pkg/events"
	"github.com/diagnosis/concierge/pkg/logger"
)

const (
	DefaultNewBatch = 10
	MaxNewBatch     = 100
	sessionListMax  = 50
)

type Ledger struct {
	dir      repo.Directory
	store    repo.RequestStore
	notifier notify.Notifier
	pub      events.Publisher
	clock    clock.Clock
}

// New builds a Ledger. notifier and pub may be nil; both are used best-effort.
func New(dir repo.Directory, store repo.RequestStore, notifier notify.Notifier, pub events.Publisher, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.System{}
	}
	return &Ledger{
		dir:      dir,
		store:    store,
		notifier: notify.NewBestEffort(notifier),
		pub:      pub,
		clock:    clk,
	}
}

// Create validates and records a request submitted from a guest session.
// Guest identity comes from the session only.
func (l *Ledger) Create(ctx context.Context, hotelSlug, roomNumber string, sess *domain.GuestSession, in domain.SubmitRequest) (*domain.Request, error) {
	if sess == nil {
		return nil, domain.NewValidationError("session", "a guest session is required")
	}
	guestName := utils.NormalizeName(sess.DisplayName())
	if guestName == "" {
		return nil, domain.NewValidationError("guest_name", "guest name is required")
	}

	quantity := 1
	if in.Quantity != nil {
		if *in.Quantity < 1 {
			return nil, domain.NewValidationError("quantity", "quantity must be at least 1")
		}
		quantity = *in.Quantity
	}

	customFields, err := normalizeCustomFields(in.CustomFields)
	if err != nil {
		return nil, err
	}

	hotel, err := l.dir.HotelBySlug(ctx, hotelSlug)
	if err != nil {
		return nil, domain.WrapStorage("hotel by slug", err)
	}
	if hotel == nil {
		return nil, fmt.Errorf("hotel %q: %w", hotelSlug, domain.ErrNotFound)
	}
	if sess.HotelID != hotel.ID || sess.RoomCode != roomNumber {
		return nil, domain.NewValidationError("session", "session does not belong to this room")
	}

	svc, err := l.resolveService(ctx, hotel.ID, in.Service)
	if err != nil {
		return nil, err
	}

	room, err := l.dir.RoomByNumber(ctx, hotel.ID, roomNumber)
	if err != nil {
		return nil, domain.WrapStorage("room by number", err)
	}
	if room == nil {
		return nil, fmt.Errorf("room %q: %w", roomNumber, domain.ErrNotFound)
	}

	phone, email := sess.Contact()
	req, err := l.store.Create(ctx, &domain.NewRequest{
		HotelID:      hotel.ID,
		RoomID:       room.ID,
		ServiceID:    svc.ID,
		Quantity:     quantity,
		CustomFields: customFields,
		Notes:        utils.NilIfBlank(in.Notes),
		GuestName:    guestName,
		GuestPhone:   phone,
		GuestEmail:   email,
		SessionID:    sess.ID,
		CreatedAt:    l.clock.Now(),
	})
	if err != nil {
		return nil, domain.WrapStorage("create request", err)
	}

	metrics.RequestsCreatedTotal.Inc()
	logger.InfoContext(ctx, "Request created", "request_id", req.ID, "hotel_id", hotel.ID, "room", roomNumber, "service", svc.Slug)

	if hotel.StaffEmail != "" {
		l.notifier.Notify(ctx, notify.RecipientStaff, notify.TemplateRequestCreated, notify.Data{
			notify.KeyRecipient: hotel.StaffEmail,
			"request_id":        req.ID,
			"room_number":       req.RoomNumber,
			"service_name":      req.ServiceName,
			"quantity":          req.Quantity,
			"guest_name":        req.GuestName,
			"notes":             deref(req.Notes),
		})
	}
	l.publish(ctx, events.RequestCreated, events.RequestCreatedEvent{
		RequestID:   req.ID,
		HotelID:     hotel.ID,
		RoomNumber:  req.RoomNumber,
		ServiceName: req.ServiceName,
		Quantity:    req.Quantity,
		CreatedAt:   req.CreatedAt,
	})

	return req, nil
}

// resolveService tries the slug first, then a numeric id.
func (l *Ledger) resolveService(ctx context.Context, hotelID int64, ref string) (*domain.Service, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.NewValidationError("service", "service is required")
	}
	svc, err := l.dir.ServiceBySlug(ctx, hotelID, ref)
	if err != nil {
		return nil, domain.WrapStorage("service by slug", err)
	}
	if svc != nil {
		return svc, nil
	}
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		svc, err = l.dir.ServiceByID(ctx, hotelID, id)
		if err != nil {
			return nil, domain.WrapStorage("service by id", err)
		}
		if svc != nil {
			return svc, nil
		}
	}
	return nil, fmt.Errorf("service %q: %w", ref, domain.ErrNotFound)
}

// normalizeCustomFields accepts an absent payload, JSON null, or a JSON object.
func normalizeCustomFields(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, domain.NewValidationError("custom_fields", "custom fields must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

func (l *Ledger) Get(ctx context.Context, hotelID, id int64) (*domain.Request, error) {
	req, err := l.store.GetByID(ctx, hotelID, id)
	if err != nil {
		return nil, domain.WrapStorage("get request", err)
	}
	if req == nil {
		return nil, domain.ErrNotFound
	}
	return req, nil
}

func (l *Ledger) List(ctx context.Context, hotelID int64, f domain.RequestFilter) ([]domain.Request, error) {
	out, err := l.store.List(ctx, hotelID, f)
	return out, domain.WrapStorage("list requests", err)
}

// ListForSession returns the requests submitted under this session, newest
// first.
func (l *Ledger) ListForSession(ctx context.Context, sess *domain.GuestSession) ([]domain.Request, error) {
	if sess == nil {
		return []domain.Request{}, nil
	}
	out, err := l.store.ListBySession(ctx, sess.HotelID, sess.ID, sessionListMax)
	return out, domain.WrapStorage("list session requests", err)
}

// SetStatus moves a request along NEW -> IN_PROGRESS -> COMPLETED. Setting the
// current status is a no-op. A concurrent change between read and write
// yields domain.ErrConflict.
func (l *Ledger) SetStatus(ctx context.Context, hotelID, id int64, to domain.RequestStatus) (*domain.Request, error) {
	if _, ok := domain.ParseRequestStatus(string(to)); !ok {
		return nil, domain.NewValidationError("status", "unknown status")
	}

	cur, err := l.Get(ctx, hotelID, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == to {
		return cur, nil
	}
	if !domain.CanTransition(cur.Status, to) {
		return nil, fmt.Errorf("%s -> %s: %w", cur.Status, to, domain.ErrInvalidTransition)
	}

	now := l.clock.Now()
	updated, err := l.store.UpdateStatus(ctx, hotelID, id, cur.Status, to, now)
	if err != nil {
		return nil, domain.WrapStorage("update status", err)
	}
	if updated == nil {
		if _, gerr := l.Get(ctx, hotelID, id); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("request %d changed concurrently: %w", id, domain.ErrConflict)
	}

	metrics.RequestTransitionsTotal.WithLabelValues(string(to)).Inc()
	logger.InfoContext(ctx, "Request status changed", "request_id", id, "from", cur.Status, "to", to)

	l.publish(ctx, events.RequestStatusChanged, events.RequestStatusChangedEvent{
		RequestID: id,
		HotelID:   hotelID,
		From:      string(cur.Status),
		To:        string(to),
		ChangedAt: now,
	})
	if to == domain.StatusCompleted && updated.GuestEmail != nil {
		l.notifier.Notify(ctx, notify.RecipientGuest, notify.TemplateRequestCompleted, notify.Data{
			notify.KeyRecipient: *updated.GuestEmail,
			"request_id":        updated.ID,
			"room_number":       updated.RoomNumber,
			"service_name":      updated.ServiceName,
			"guest_name":        updated.GuestName,
			"hotel_name":        l.hotelName(ctx, hotelID),
		})
	}
	return updated, nil
}

// Assign sets or clears the staff assignee without touching status.
func (l *Ledger) Assign(ctx context.Context, hotelID, id int64, assigneeID *int64) (*domain.Request, error) {
	if assigneeID != nil && *assigneeID <= 0 {
		return nil, domain.NewValidationError("assignee_id", "assignee id must be positive")
	}
	req, err := l.store.SetAssignee(ctx, hotelID, id, assigneeID)
	if err != nil {
		return nil, domain.WrapStorage("set assignee", err)
	}
	if req == nil {
		return nil, domain.ErrNotFound
	}
	return req, nil
}

// Delete removes a request outright. Administrative use only.
func (l *Ledger) Delete(ctx context.Context, hotelID, id int64) error {
	ok, err := l.store.Delete(ctx, hotelID, id)
	if err != nil {
		return domain.WrapStorage("delete request", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	logger.InfoContext(ctx, "Request deleted", "request_id", id, "hotel_id", hotelID)
	return nil
}

// NewSince lists NEW requests created after since, newest first. When more
// than limit match, the oldest limit are returned so a poller can page
// forward without skipping any.
func (l *Ledger) NewSince(ctx context.Context, hotelID int64, since time.Time, categoryID *int64, limit int) ([]domain.RequestSummary, error) {
	if limit <= 0 {
		limit = DefaultNewBatch
	}
	if limit > MaxNewBatch {
		limit = MaxNewBatch
	}
	out, err := l.store.NewSince(ctx, hotelID, since, categoryID, limit)
	if err != nil {
		return nil, domain.WrapStorage("new requests", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// hotelName is used for guest-facing copy only; lookup failures yield "".
func (l *Ledger) hotelName(ctx context.Context, hotelID int64) string {
	h, err := l.dir.HotelByID(ctx, hotelID)
	if err != nil {
		logger.WarnContext(ctx, "Hotel lookup for notification failed", "hotel_id", hotelID, "error", err)
		return ""
	}
	if h == nil {
		return ""
	}
	return h.Name
}

func (l *Ledger) publish(ctx context.Context, subject string, payload any) {
	if l.pub == nil {
		return
	}
	if err := l.pub.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Event publish failed", "subject", subject, "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
