package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/model"
	"github.com/relocore/dispatch/internal/pricing"
)

type QuotesHandler struct {
	engine Engine
}

func NewQuotesHandler(e Engine) *QuotesHandler {
	return &QuotesHandler{engine: e}
}

func (h *QuotesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var job model.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	normalizeJob(&job)

	quote, err := h.engine.QuoteJob(r.Context(), &job)
	if err != nil {
		if errors.Is(err, model.ErrInvalidJobRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, quote)
}

func (h *QuotesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quote id")
		return
	}
	quote, err := h.engine.GetQuote(r.Context(), id)
	if errors.Is(err, pricing.ErrStaleQuote) {
		// Expired quotes are never silently reused; the caller re-requests.
		writeJSON(w, http.StatusGone, map[string]interface{}{
			"error":       "quote expired",
			"quote_id":    quote.ID,
			"valid_until": quote.ValidUntil,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if quote == nil {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
