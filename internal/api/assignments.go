package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/model"
	"github.com/relocore/dispatch/internal/store"
)

// Engine is the dispatcher surface the handlers depend on.
type Engine interface {
	AssignJob(ctx context.Context, job *model.JobRequest) (*model.AssignmentResult, error)
	ReassignJob(ctx context.Context, job *model.JobRequest, previousCrewID uuid.UUID, reason string) (*model.AssignmentResult, error)
	QuoteJob(ctx context.Context, job *model.JobRequest) (*model.PriceQuote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (*model.PriceQuote, error)
}

type AssignmentsHandler struct {
	engine Engine
	store  store.Store
}

func NewAssignmentsHandler(e Engine, s store.Store) *AssignmentsHandler {
	return &AssignmentsHandler{engine: e, store: s}
}

// normalizeJob fills server-assigned defaults: a missing job_id gets one,
// urgency and segment default to their baseline tiers.
func normalizeJob(job *model.JobRequest) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Urgency == "" {
		job.Urgency = model.UrgencyNormal
	}
	if job.CustomerSegment == "" {
		job.CustomerSegment = model.SegmentStandard
	}
}

func (h *AssignmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var job model.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	normalizeJob(&job)

	result, err := h.engine.AssignJob(r.Context(), &job)
	if err != nil {
		if errors.Is(err, model.ErrInvalidJobRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type reassignRequest struct {
	Job            model.JobRequest `json:"job"`
	PreviousCrewID string           `json:"previous_crew_id"`
	Reason         string           `json:"reason"`
}

func (h *AssignmentsHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	prevID, err := uuid.Parse(req.PreviousCrewID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid previous_crew_id")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason required")
		return
	}
	normalizeJob(&req.Job)

	result, err := h.engine.ReassignJob(r.Context(), &req.Job, prevID, req.Reason)
	if err != nil {
		if errors.Is(err, model.ErrInvalidJobRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *AssignmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}
	result, err := h.store.GetAssignment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Explain returns the factor breakdown for a persisted assignment.
func (h *AssignmentsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}
	result, err := h.store.GetAssignment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assignment_id": result.ID,
		"job_id":        result.JobID,
		"score":         result.Score,
		"reasons":       result.Reasons,
		"factors":       result.Factors,
		"unassigned":    result.Unassigned,
	})
}
