package domain

import "time"

type IdentityKind string

const (
	IdentityAnonymous  IdentityKind = "anonymous"
	IdentityRegistered IdentityKind = "registered"
)

// AnonymousName is shown for sessions created through "continue as guest".
const AnonymousName = "Guest"

// GuestSession binds a client token to one hotel room. For anonymous sessions
// PhoneNumber holds a synthetic unique value, never a real number.
type GuestSession struct {
	ID           string
	HotelID      int64
	RoomCode     string
	Kind         IdentityKind
	FullName     string
	PhoneNumber  string
	Email        *string
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the session no longer resolves at now.
func (s *GuestSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

func (s *GuestSession) Registered() bool {
	return s.Kind == IdentityRegistered
}

func (s *GuestSession) DisplayName() string {
	if !s.Registered() || s.FullName == "" {
		return AnonymousName
	}
	return s.FullName
}

// Contact returns the phone and email a request may carry. Anonymous
// sessions have none.
func (s *GuestSession) Contact() (phone, email *string) {
	if !s.Registered() {
		return nil, nil
	}
	if s.PhoneNumber != "" {
		p := s.PhoneNumber
		phone = &p
	}
	return phone, s.Email
}

type Registration struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email,omitempty"`
}

// GuestSessionDTO is the client view. The token itself travels in the
// cookie, not the body.
type GuestSessionDTO struct {
	Kind        IdentityKind `json:"kind"`
	DisplayName string       `json:"display_name"`
	RoomCode    string       `json:"room_code"`
	PhoneNumber string       `json:"phone_number,omitempty"`
	Email       *string      `json:"email,omitempty"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

func (s *GuestSession) DTO() GuestSessionDTO {
	dto := GuestSessionDTO{
		Kind:        s.Kind,
		DisplayName: s.DisplayName(),
		RoomCode:    s.RoomCode,
		ExpiresAt:   s.ExpiresAt,
	}
	if s.Registered() {
		dto.PhoneNumber = s.PhoneNumber
		dto.Email = s.Email
	}
	return dto
}
