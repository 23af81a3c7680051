// Package assign picks the winning crew for a job from the ranked candidate
// list and packages the result. The selector only proposes: the returned
// WorkloadDelta is committed by the caller under single-writer semantics.
package assign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/model"
	"github.com/relocore/dispatch/internal/routing"
	"github.com/relocore/dispatch/internal/scoring"
)

// Params are the selection thresholds.
type Params struct {
	CriticalMinScore  float64 // minimum total score for critical jobs
	VIPPerformanceMin float64 // performance sub-score preferred for VIP/enterprise
	BackupCount       int
}

// Selector runs scoring, applies the priority short-circuits, routes the
// winner, and builds the explanatory breakdown.
type Selector struct {
	scorer *scoring.Scorer
	routes *routing.Builder
	params Params
	logger *slog.Logger
}

func NewSelector(scorer *scoring.Scorer, routes *routing.Builder, params Params, logger *slog.Logger) *Selector {
	if params.BackupCount <= 0 {
		params.BackupCount = 3
	}
	return &Selector{scorer: scorer, routes: routes, params: params, logger: logger}
}

// Assign proposes an assignment for the job. When no crew survives filtering
// or selection, it returns a structured unassigned result alongside
// scoring.ErrNoEligibleCrew — a defined terminal outcome, never a panic path.
func (s *Selector) Assign(ctx context.Context, job *model.JobRequest, crews []*model.Crew) (*model.AssignmentResult, error) {
	return s.assign(ctx, job, crews, nil, "")
}

// Reassign runs the identical flow but excludes the previously assigned crew
// and records the previous→new pair with a reason.
func (s *Selector) Reassign(ctx context.Context, job *model.JobRequest, crews []*model.Crew, previousCrewID uuid.UUID, reason string) (*model.AssignmentResult, error) {
	var pool []*model.Crew
	for _, c := range crews {
		if c.ID != previousCrewID {
			pool = append(pool, c)
		}
	}
	return s.assign(ctx, job, pool, &previousCrewID, reason)
}

func (s *Selector) assign(ctx context.Context, job *model.JobRequest, crews []*model.Crew, previousCrewID *uuid.UUID, reassignReason string) (*model.AssignmentResult, error) {
	ranked, err := s.scorer.Rank(ctx, job, crews)
	if err != nil {
		if errors.Is(err, scoring.ErrNoEligibleCrew) {
			return s.unassigned(job, previousCrewID, reassignReason, "no crew passed filtering"), err
		}
		return nil, err
	}

	winnerIdx, reason := s.pick(job, ranked)
	if winnerIdx < 0 {
		err := fmt.Errorf("%w: %s", scoring.ErrNoEligibleCrew, reason)
		return s.unassigned(job, previousCrewID, reassignReason, reason), err
	}
	winner := ranked[winnerIdx]

	route := s.routeWinner(job, winner.Crew)
	start := job.RequestedDate

	result := &model.AssignmentResult{
		JobID:          job.ID,
		CrewID:         &winner.Crew.ID,
		CrewName:       winner.Crew.Name,
		ScheduledStart: &start,
		Route:          route,
		Score:          winner.TotalScore,
		Reasons:        topReasons(winner),
		Factors:        labeledFactors(winner),
		Backups:        s.backups(ranked, winnerIdx),
		Delta: &model.WorkloadDelta{
			CrewID:  winner.Crew.ID,
			DateKey: job.DateKey(),
			AddStop: model.Stop{
				JobID:    job.ID,
				Label:    "job " + shortID(job.ID),
				Location: job.Pickup,
			},
			CapacityUse: capacityUse(job.EstimatedHours),
			FromVersion: winner.Crew.Version,
		},
		PreviousCrewID: previousCrewID,
		ReassignReason: reassignReason,
		CreatedAt:      time.Now().UTC(),
	}

	s.logger.Info("crew selected",
		"job_id", job.ID, "crew", winner.Crew.Name,
		"score", winner.TotalScore, "selection", reason, "backups", len(result.Backups))
	return result, nil
}

// pick applies the priority short-circuits over the ranked list and returns
// the winning index, or -1 with a reason.
func (s *Selector) pick(job *model.JobRequest, ranked []scoring.Candidate) (int, string) {
	// Critical jobs take the first candidate above the bar: availability
	// matters more than strict optimality under urgency.
	if job.Urgency == model.UrgencyCritical {
		for i, c := range ranked {
			if c.TotalScore > s.params.CriticalMinScore {
				return i, "first candidate above critical bar"
			}
		}
		return -1, fmt.Sprintf("no candidate above critical score bar %.2f", s.params.CriticalMinScore)
	}

	// VIP/enterprise customers prefer proven performers even over a higher
	// total score elsewhere.
	if job.CustomerSegment == model.SegmentVIP || job.CustomerSegment == model.SegmentEnterprise {
		for i, c := range ranked {
			if perf := subScore(c, "performance"); perf >= s.params.VIPPerformanceMin {
				return i, "first candidate above VIP performance threshold"
			}
		}
	}

	return 0, "highest ranked candidate"
}

// routeWinner recomputes the winner's route with the new job appended.
// A degraded construction-only route is kept rather than failing the
// assignment.
func (s *Selector) routeWinner(job *model.JobRequest, crew *model.Crew) *model.Route {
	stops := append([]model.Stop(nil), crew.StopsFor(job.DateKey())...)
	stops = append(stops,
		model.Stop{JobID: job.ID, Label: "pickup " + shortID(job.ID), Location: job.Pickup},
		model.Stop{JobID: job.ID, Label: "delivery " + shortID(job.ID), Location: job.Delivery},
	)
	route, err := s.routes.Build(crew.ID, job.DateKey(), crew.Base, stops, job.RequiredArrival)
	if err != nil {
		s.logger.Warn("route computation degraded", "job_id", job.ID, "crew", crew.Name, "error", err)
	}
	return route
}

// backups takes up to BackupCount candidates after the winner. They are not
// re-run through routing, to bound cost.
func (s *Selector) backups(ranked []scoring.Candidate, winnerIdx int) []model.BackupCandidate {
	var out []model.BackupCandidate
	for i, c := range ranked {
		if i == winnerIdx {
			continue
		}
		out = append(out, model.BackupCandidate{
			CrewID: c.Crew.ID,
			Name:   c.Crew.Name,
			Score:  c.TotalScore,
		})
		if len(out) == s.params.BackupCount {
			break
		}
	}
	return out
}

// unassigned is the defined terminal outcome when nothing is eligible:
// zeroed metrics plus an escalation flag for manual handling.
func (s *Selector) unassigned(job *model.JobRequest, previousCrewID *uuid.UUID, reassignReason, why string) *model.AssignmentResult {
	s.logger.Warn("no team available", "job_id", job.ID, "reason", why)
	return &model.AssignmentResult{
		JobID:            job.ID,
		Score:            0,
		Unassigned:       true,
		UnassignedReason: why,
		Escalate:         true,
		PreviousCrewID:   previousCrewID,
		ReassignReason:   reassignReason,
		CreatedAt:        time.Now().UTC(),
	}
}

// topReasons names the top contributing sub-scores (up to 3) for audit.
func topReasons(c scoring.Candidate) []string {
	factors := append([]model.FactorScore(nil), c.Factors...)
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].Weighted > factors[j].Weighted })
	var reasons []string
	for i, f := range factors {
		if i == 3 || f.Weighted <= 0 {
			break
		}
		reasons = append(reasons, fmt.Sprintf("%s %.2f", f.Name, f.Score))
	}
	return reasons
}

// labeledFactors attaches a qualitative impact label to every sub-score.
func labeledFactors(c scoring.Candidate) []model.FactorScore {
	out := append([]model.FactorScore(nil), c.Factors...)
	for i := range out {
		switch {
		case out[i].Weighted >= 0.15:
			out[i].Impact = "high"
		case out[i].Weighted >= 0.07:
			out[i].Impact = "medium"
		default:
			out[i].Impact = "low"
		}
	}
	return out
}

func subScore(c scoring.Candidate, name string) float64 {
	for _, f := range c.Factors {
		if f.Name == name {
			return f.Score
		}
	}
	return 0
}

// capacityUse maps estimated hours to a fraction of an 8-hour day.
func capacityUse(hours float64) float64 {
	use := hours / 8
	if use > 1 {
		use = 1
	}
	if use < 0 {
		use = 0
	}
	return use
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}
