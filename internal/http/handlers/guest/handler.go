// Package guest serves the room-scoped guest surface: session management and
// request submission, all under /v1/h/{hotelSlug}/r/{roomCode}.
package guest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/concierge/internal/http/middleware"
	"github.com/diagnosis/concierge/internal/http/middleware/guest_middleware"
	"github.com/diagnosis/concierge/internal/service/ledger"
	"github.com/diagnosis/concierge/internal/service/session"
	pkgmw "github.com/diagnosis/concierge/pkg/middleware"
)

type Handler struct {
	Sessions    *session.Manager
	Ledger      *ledger.Ledger
	Cookies     guest_middleware.Cookies
	Idempotency pkgmw.IdempotencyStore // optional
	IdemTTL     time.Duration
	RatePerMin  int
}

func NewHandler(sessions *session.Manager, l *ledger.Ledger, cookies guest_middleware.Cookies) *Handler {
	return &Handler{Sessions: sessions, Ledger: l, Cookies: cookies, IdemTTL: 24 * time.Hour}
}

// Routes is mounted at /v1/h/{hotelSlug}/r/{roomCode}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	load := guest_middleware.LoadGuestSession(h.Sessions, h.Cookies)

	r.Route("/session", func(r chi.Router) {
		r.With(load).Get("/", h.getSession)
		r.Delete("/", h.clearSession)
		r.Group(func(r chi.Router) {
			r.Use(middleware.GuestSessionRateLimit(h.RatePerMin))
			r.Post("/register", h.register)
			r.Post("/guest", h.continueAsGuest)
		})
	})

	r.Route("/requests", func(r chi.Router) {
		r.Use(load, guest_middleware.RequireGuestSession)
		r.Get("/", h.listRequests)
		if h.Idempotency != nil {
			r.With(pkgmw.ScopedIdempotency(h.Idempotency, h.IdemTTL, sessionScope)).Post("/", h.submitRequest)
		} else {
			r.Post("/", h.submitRequest)
		}
	})
	return r
}

// sessionScope keys idempotent replays by guest session so guests sharing a
// room never see each other's responses.
func sessionScope(r *http.Request) string {
	if s := guest_middleware.Session(r); s != nil {
		return s.ID
	}
	return ""
}
