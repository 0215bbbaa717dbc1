package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Staff roles issued by the credential provider.
const (
	RoleStaff   = "staff"
	RoleManager = "manager"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the staff claims minted by the external credential provider.
// Guests never hold one of these; they are identified by session cookies.
type Claims struct {
	Sub     int64  `json:"sub"`
	HotelID int64  `json:"hotel_id"`
	Role    string `json:"role"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewStaffToken signs a staff token. Production tokens come from the
// credential provider; this is used by tooling and tests sharing the secret.
func NewStaffToken(sub, hotelID int64, role, secret, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:     sub,
		HotelID: hotelID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Parse(tokenString, secret, audience string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.HotelID <= 0 || (claims.Role != RoleStaff && claims.Role != RoleManager) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
