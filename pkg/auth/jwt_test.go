package auth

import (
	"testing"
	"time"
)

const (
	testSecret   = "test-secret"
	testAudience = "concierge-staff"
)

func TestStaffToken_RoundTrip(t *testing.T) {
	tok, err := NewStaffToken(7, 3, RoleStaff, testSecret, testAudience, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := Parse(tok, testSecret, testAudience)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Sub != 7 || claims.HotelID != 3 || claims.Role != RoleStaff {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParse_Rejects(t *testing.T) {
	good, _ := NewStaffToken(1, 1, RoleManager, testSecret, testAudience, time.Minute)
	expired, _ := NewStaffToken(1, 1, RoleStaff, testSecret, testAudience, -time.Minute)
	noHotel, _ := NewStaffToken(1, 0, RoleStaff, testSecret, testAudience, time.Minute)
	guestRole, _ := NewStaffToken(1, 1, "guest", testSecret, testAudience, time.Minute)
	otherAud, _ := NewStaffToken(1, 1, RoleStaff, testSecret, "someone-else", time.Minute)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "nope"},
		{"expired", expired, testSecret},
		{"missing hotel", noHotel, testSecret},
		{"guest role", guestRole, testSecret},
		{"other audience", otherAud, testSecret},
		{"garbage", "not-a-jwt", testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.token, tt.secret, testAudience); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
