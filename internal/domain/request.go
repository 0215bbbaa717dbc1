package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type RequestStatus string

const (
	StatusNew        RequestStatus = "NEW"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusCompleted  RequestStatus = "COMPLETED"
)

func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch RequestStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusNew:
		return StatusNew, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusCompleted:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// CanTransition reports whether staff may move a request from one status to
// another. Staying in place is allowed and treated as a no-op by callers.
func CanTransition(from, to RequestStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusNew:
		return to == StatusInProgress || to == StatusCompleted
	case StatusInProgress:
		return to == StatusCompleted
	default:
		return false
	}
}

type Request struct {
	ID           int64           `json:"id"`
	HotelID      int64           `json:"hotel_id"`
	RoomID       int64           `json:"room_id"`
	RoomNumber   string          `json:"room_number"`
	ServiceID    int64           `json:"service_id"`
	ServiceName  string          `json:"service_name"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	Quantity     int             `json:"quantity"`
	CustomFields json.RawMessage `json:"custom_fields,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	GuestName    string          `json:"guest_name"`
	GuestPhone   *string         `json:"guest_phone,omitempty"`
	GuestEmail   *string         `json:"guest_email,omitempty"`
	SessionID    string          `json:"-"`
	AssigneeID   *int64          `json:"assignee_id,omitempty"`
	Status       RequestStatus   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewRequest is a validated request ready to be stored.
type NewRequest struct {
	HotelID      int64
	RoomID       int64
	ServiceID    int64
	Quantity     int
	CustomFields json.RawMessage
	Notes        *string
	GuestName    string
	GuestPhone   *string
	GuestEmail   *string
	SessionID    string
	CreatedAt    time.Time
}

// RequestSummary is the lightweight row served to live monitors.
type RequestSummary struct {
	ID          int64     `json:"id"`
	RoomNumber  string    `json:"room_number"`
	ServiceName string    `json:"service_name"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type RequestFilter struct {
	Status *RequestStatus
	Limit  int
	Offset int
}

// SubmitRequest is the guest-supplied body. Service is a slug or a numeric id.
type SubmitRequest struct {
	Service      string          `json:"service"`
	Quantity     *int            `json:"quantity,omitempty"`
	CustomFields json.RawMessage `json:"custom_fields,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

type StatusUpdate struct {
	Status string `json:"status"`
}

type AssigneeUpdate struct {
	AssigneeID *int64 `json:"assignee_id"`
}
