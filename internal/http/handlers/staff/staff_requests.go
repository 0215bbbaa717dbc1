// Package staff serves the hotel staff dashboard and live-monitor feed. The
// hotel is always taken from the staff token, never from the URL.
package staff

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/http/middleware"
	"github.com/diagnosis/concierge/internal/http/response"
	"github.com/diagnosis/concierge/internal/service/ledger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type RequestsHandler struct {
	Ledger *ledger.Ledger
}

func NewRequestsHandler(l *ledger.Ledger) *RequestsHandler {
	return &RequestsHandler{Ledger: l}
}

// Routes expects middleware.RequireStaff upstream.
func (h *RequestsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/new", h.newSince)
	r.Get("/{id}", h.get)
	r.Patch("/{id}/status", h.setStatus)
	r.Patch("/{id}/assignee", h.assign)
	r.Delete("/{id}", h.delete)
	return r
}

func hotelID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims := middleware.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Unauthorized")
		return 0, false
	}
	return claims.HotelID, true
}

func requestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid request ID")
		return 0, false
	}
	return id, true
}

func (h *RequestsHandler) list(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := domain.RequestFilter{
		Limit:  parseIntDefault(q.Get("limit"), defaultListLimit),
		Offset: parseIntDefault(q.Get("offset"), 0),
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if s := q.Get("status"); s != "" {
		st, ok := domain.ParseRequestStatus(s)
		if !ok {
			response.BadRequest(w, "Invalid status filter")
			return
		}
		f.Status = &st
	}

	out, err := h.Ledger.List(r.Context(), hid, f)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"requests": out})
}

// newSince is the live-monitor feed. The response shape matches what
// poller.HTTPFetcher decodes.
func (h *RequestsHandler) newSince(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var since time.Time
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			response.BadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		since = t
	}

	var categoryID *int64
	if c := q.Get("category_id"); c != "" {
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			response.BadRequest(w, "Invalid category_id")
			return
		}
		categoryID = &id
	}

	out, err := h.Ledger.NewSince(r.Context(), hid, since, categoryID, parseIntDefault(q.Get("limit"), 0))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *RequestsHandler) get(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r)
	if !ok {
		return
	}

	req, err := h.Ledger.Get(r.Context(), hid, id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, req)
}

func (h *RequestsHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r)
	if !ok {
		return
	}

	var in domain.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	to, valid := domain.ParseRequestStatus(in.Status)
	if !valid {
		response.WriteErrorWithDetails(w, http.StatusBadRequest, "Unknown status", response.CodeInvalidInput, "status")
		return
	}

	req, err := h.Ledger.SetStatus(r.Context(), hid, id, to)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, req)
}

func (h *RequestsHandler) assign(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r)
	if !ok {
		return
	}

	var in domain.AssigneeUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	req, err := h.Ledger.Assign(r.Context(), hid, id, in.AssigneeID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, req)
}

func (h *RequestsHandler) delete(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r)
	if !ok {
		return
	}

	if err := h.Ledger.Delete(r.Context(), hid, id); err != nil {
		response.FromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
