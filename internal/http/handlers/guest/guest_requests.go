package guest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/concierge/internal/domain"
	"github.com/diagnosis/concierge/internal/http/middleware/guest_middleware"
	"github.com/diagnosis/concierge/internal/http/response"
)

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	var in domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	req, err := h.Ledger.Create(r.Context(), chi.URLParam(r, "hotelSlug"), chi.URLParam(r, "roomCode"), guest_middleware.Session(r), in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, req)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	out, err := h.Ledger.ListForSession(r.Context(), guest_middleware.Session(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"requests": out})
}
