package scoring

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/relocore/dispatch/internal/model"
)

// ErrNoEligibleCrew signals that filtering removed every candidate. The
// caller produces a structured unassigned result; this never bubbles to an
// end user as an exception.
var ErrNoEligibleCrew = errors.New("no eligible crew")

// Params configures a Scorer. Thresholds are business tuning knobs supplied
// by configuration, never hardcoded per request.
type Params struct {
	Mode               Mode
	Weights            WeightSet
	ProximityFalloffKm float64
	AvailabilityFloor  float64
	Rules              RuleParams
}

// Candidate is one crew's ephemeral scoring result. Recomputed per request,
// never persisted as authoritative state.
type Candidate struct {
	Crew       *model.Crew         `json:"-"`
	CrewID     string              `json:"crew_id"`
	TotalScore float64             `json:"total_score"`
	Factors    []model.FactorScore `json:"factors"`
}

// Scorer runs the five-factor weighted additive scoring engine over a crew pool.
type Scorer struct {
	params Params
	logger *slog.Logger
}

// NewScorer creates a Scorer with the given parameters.
func NewScorer(params Params, logger *slog.Logger) *Scorer {
	return &Scorer{params: params, logger: logger}
}

// ScoreCandidate computes the full factor breakdown for one crew–job pair.
func (s *Scorer) ScoreCandidate(job *model.JobRequest, crew *model.Crew) Candidate {
	cc := &CandidateContext{
		Job:                job,
		Crew:               crew,
		ProximityFalloffKm: s.params.ProximityFalloffKm,
		AvailabilityFloor:  s.params.AvailabilityFloor,
		MaxJobsPerDay:      s.params.Rules.MaxJobsPerDay,
	}

	factors := []model.FactorScore{
		SkillFactor(cc),
		ProximityFactor(cc),
		AvailabilityFactor(cc),
		WorkloadFactor(cc),
		PerformanceFactor(cc),
	}

	weights := s.params.Weights.asList()
	var total float64
	for i := range factors {
		factors[i].Weight = weights[i]
		factors[i].Weighted = factors[i].Score * weights[i]
		total += factors[i].Weighted
	}

	return Candidate{
		Crew:       crew,
		CrewID:     crew.ID.String(),
		TotalScore: total,
		Factors:    factors,
	}
}

// Rank filters and scores the crew pool for a job, returning candidates
// sorted descending by total score. Scoring is independent per crew and runs
// concurrently; ordering stays deterministic via the documented tie-breaks
// (higher proximity sub-score, then crew ID).
func (s *Scorer) Rank(ctx context.Context, job *model.JobRequest, crews []*model.Crew) ([]Candidate, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	// Hard skill filter: failing crews are dropped, not scored low.
	var qualified []*model.Crew
	for _, crew := range crews {
		if crewQualifies(job, crew) {
			qualified = append(qualified, crew)
		} else {
			s.logger.Debug("crew dropped by skill filter", "crew", crew.Name, "job_id", job.ID)
		}
	}
	if len(qualified) == 0 {
		return nil, ErrNoEligibleCrew
	}

	scored := make([]Candidate, len(qualified))
	var wg sync.WaitGroup
	for i, crew := range qualified {
		wg.Add(1)
		go func(i int, crew *model.Crew) {
			defer wg.Done()
			scored[i] = s.ScoreCandidate(job, crew)
		}(i, crew)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Hard business rules run after scoring, as a filter.
	var eligible []Candidate
	for _, c := range scored {
		ok, reason := CheckRules(s.params.Rules, job, c.Crew)
		if !ok {
			s.logger.Debug("crew dropped by business rule", "crew", c.Crew.Name, "job_id", job.ID, "reason", reason)
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleCrew
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].TotalScore != eligible[j].TotalScore {
			return eligible[i].TotalScore > eligible[j].TotalScore
		}
		pi, pj := factorScore(eligible[i], "proximity"), factorScore(eligible[j], "proximity")
		if pi != pj {
			return pi > pj
		}
		return strings.Compare(eligible[i].CrewID, eligible[j].CrewID) < 0
	})

	return eligible, nil
}

func crewQualifies(job *model.JobRequest, crew *model.Crew) bool {
	for _, skill := range job.RequiredSkills {
		if !crew.HasSkill(skill) {
			return false
		}
	}
	return true
}

func factorScore(c Candidate, name string) float64 {
	for _, f := range c.Factors {
		if f.Name == name {
			return f.Score
		}
	}
	return 0
}
