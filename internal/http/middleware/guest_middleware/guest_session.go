// Package guest_middleware resolves the guest session token carried by a
// request and keeps the client cookie in step with the session manager.
package guest_middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/http/middleware"
	"github.com/diagnosis/concierge/internal/http/response"
	"github.com/diagnosis/concierge/internal/service/session"
)

type ctxKey string

const CtxSession ctxKey = "guest_session"

// Cookies describes the session cookie. It is scoped to one hotel's path.
type Cookies struct {
	Name   string
	Secure bool
}

func (c Cookies) path(hotelSlug string) string {
	return "/v1/h/" + hotelSlug
}

// Token reads the session token from the cookie, falling back to a Bearer
// header for clients that cannot hold cookies.
func (c Cookies) Token(r *http.Request) string {
	if ck, err := r.Cookie(c.Name); err == nil && ck.Value != "" {
		return ck.Value
	}
	return middleware.BearerToken(r)
}

// Apply carries out a token directive on the response.
func (c Cookies) Apply(w http.ResponseWriter, hotelSlug string, d session.TokenDirective) {
	switch d.Action {
	case session.TokenSet:
		maxAge := int(time.Until(d.ExpiresAt).Seconds())
		if maxAge < 1 {
			maxAge = 1
		}
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    d.Token,
			Path:     c.path(hotelSlug),
			Expires:  d.ExpiresAt,
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	case session.TokenClear:
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    "",
			Path:     c.path(hotelSlug),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// LoadGuestSession resolves the session for the hotel and room in the URL
// and stores it in the request context. A miss is not an error; a stale
// cookie is cleared on the way out.
func LoadGuestSession(mgr *session.Manager, cookies Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hotelSlug := chi.URLParam(r, "hotelSlug")
			res, err := mgr.Lookup(r.Context(), hotelSlug, chi.URLParam(r, "roomCode"), cookies.Token(r))
			if err != nil {
				response.FromError(w, r, err)
				return
			}
			cookies.Apply(w, hotelSlug, res.Token)
			if res.Session != nil {
				r = r.WithContext(context.WithValue(r.Context(), CtxSession, res.Session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGuestSession rejects requests that LoadGuestSession did not resolve.
func RequireGuestSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Session(r) == nil {
			response.WriteError(w, http.StatusUnauthorized, "Please register or continue as guest first", response.CodeSessionRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func Session(r *http.Request) *domain.GuestSession {
	if v := r.Context().Value(CtxSession); v != nil {
		if s, ok := v.(*domain.GuestSession); ok {
			return s
		}
	}
	return nil
}
