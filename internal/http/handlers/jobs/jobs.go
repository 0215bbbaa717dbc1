// Package jobs exposes maintenance endpoints for an external scheduler.
package jobs

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/concierge/internal/http/response"
	"github.com/diagnosis/concierge/internal/service/sweeper"
)

type Handler struct {
	Sweeper    *sweeper.Sweeper
	CronSecret string
}

func NewHandler(s *sweeper.Sweeper, cronSecret string) *Handler {
	return &Handler{Sweeper: s, CronSecret: cronSecret}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireCronSecret)
	r.Post("/sweep-sessions", h.sweepSessions)
	return r
}

// requireCronSecret rejects everything when no secret is configured.
func (h *Handler) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Cron-Secret")
		if h.CronSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.CronSecret)) != 1 {
			response.Unauthorized(w, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) sweepSessions(w http.ResponseWriter, r *http.Request) {
	res, err := h.Sweeper.Sweep(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}
