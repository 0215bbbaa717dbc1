package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/concierge/internal/http/response"
	"github.com/diagnosis/concierge/pkg/auth"
	"github.com/diagnosis/concierge/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// RequireStaff admits requests carrying a valid staff token. The hotel and
// staff id from the token are attached to the request context.
func RequireStaff(secret, audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				response.Unauthorized(w, "invalid authorization header")
				return
			}
			claims, err := auth.Parse(raw, secret, audience)
			if err != nil {
				logger.DebugContext(r.Context(), "Staff token rejected", "error", err)
				response.Unauthorized(w, "invalid authorization token")
				return
			}
			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.StaffIDKey, claims.Sub)
			ctx = context.WithValue(ctx, logger.HotelIDKey, claims.HotelID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	v := r.Context().Value(CtxClaims)
	if v == nil {
		return nil
	}
	return v.(*auth.Claims)
}

// BearerToken returns the token from an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
}
