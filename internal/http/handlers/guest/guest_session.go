package guest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/http/middleware/guest_middleware"
	"github.com/diagnosis/concierge/internal/http/response"
	"github.com/diagnosis/concierge/internal/service/session"
)

type sessionOut struct {
	Session *domain.GuestSessionDTO `json:"session"`
}

func toSessionOut(s *domain.GuestSession) sessionOut {
	if s == nil {
		return sessionOut{}
	}
	dto := s.DTO()
	return sessionOut{Session: &dto}
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, toSessionOut(guest_middleware.Session(r)))
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	hotelSlug := chi.URLParam(r, "hotelSlug")
	res, err := h.Sessions.Register(r.Context(), hotelSlug, chi.URLParam(r, "roomCode"), in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.respondSession(w, hotelSlug, res)
}

func (h *Handler) continueAsGuest(w http.ResponseWriter, r *http.Request) {
	hotelSlug := chi.URLParam(r, "hotelSlug")
	res, err := h.Sessions.ContinueAsGuest(r.Context(), hotelSlug, chi.URLParam(r, "roomCode"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.respondSession(w, hotelSlug, res)
}

func (h *Handler) respondSession(w http.ResponseWriter, hotelSlug string, res *session.Result) {
	h.Cookies.Apply(w, hotelSlug, res.Token)
	response.JSON(w, http.StatusCreated, toSessionOut(res.Session))
}

func (h *Handler) clearSession(w http.ResponseWriter, r *http.Request) {
	d, err := h.Sessions.Clear(r.Context(), h.Cookies.Token(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	h.Cookies.Apply(w, chi.URLParam(r, "hotelSlug"), d)
	w.WriteHeader(http.StatusNoContent)
}
