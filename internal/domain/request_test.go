package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to RequestStatus
		want     bool
	}{
		{StatusNew, StatusInProgress, true},
		{StatusNew, StatusCompleted, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusNew, StatusNew, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusInProgress, StatusNew, false},
		{StatusCompleted, StatusNew, false},
		{StatusCompleted, StatusInProgress, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseRequestStatus(t *testing.T) {
	if s, ok := ParseRequestStatus(" in_progress "); !ok || s != StatusInProgress {
		t.Fatalf("got %q %v", s, ok)
	}
	if _, ok := ParseRequestStatus("CANCELED"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestGuestSession_Views(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	email := "a@b.co"
	reg := &GuestSession{Kind: IdentityRegistered, FullName: "Ana", PhoneNumber: "+15551234567", Email: &email, ExpiresAt: now}
	anon := &GuestSession{Kind: IdentityAnonymous, FullName: AnonymousName, PhoneNumber: "guest-1-abc", ExpiresAt: now.Add(time.Hour)}

	if !reg.Expired(now) {
		t.Error("session expiring exactly now should be expired")
	}
	if anon.Expired(now) {
		t.Error("anonymous session should still be live")
	}
	if anon.DTO().PhoneNumber != "" {
		t.Error("synthetic phone leaked into DTO")
	}
	if phone, mail := anon.Contact(); phone != nil || mail != nil {
		t.Error("anonymous session has no contact")
	}
	if phone, _ := reg.Contact(); phone == nil || *phone != "+15551234567" {
		t.Error("registered contact missing")
	}
	if reg.DisplayName() != "Ana" || anon.DisplayName() != AnonymousName {
		t.Error("display names wrong")
	}
}
