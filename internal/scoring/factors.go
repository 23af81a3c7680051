package scoring

import (
	"fmt"
	"strings"

	"github.com/relocore/dispatch/internal/geo"
	"github.com/relocore/dispatch/internal/model"
)

// CandidateContext bundles all inputs needed to score a single crew–job pair.
// Availability and performance are already resolved by the calendar provider
// before the context is built.
type CandidateContext struct {
	Job  *model.JobRequest
	Crew *model.Crew

	ProximityFalloffKm float64
	AvailabilityFloor  float64
	MaxJobsPerDay      int
}

// --- Individual factor calculators ---

// SkillFactor scores the fraction of required skills matched, plus a depth
// bonus (≤0.2 total) for skills covered by multiple qualified members.
// Crews missing a skill entirely never reach scoring (hard filter).
func SkillFactor(cc *CandidateContext) model.FactorScore {
	required := cc.Job.RequiredSkills
	if len(required) == 0 {
		return model.FactorScore{Name: "skill", Score: 1.0, Reason: "no skills required"}
	}
	matched := 0
	bonus := 0.0
	for _, skill := range required {
		if !cc.Crew.HasSkill(skill) {
			continue
		}
		matched++
		if cc.Crew.QualifiedMembers(skill) >= 2 {
			bonus += 0.05
		}
	}
	if bonus > 0.2 {
		bonus = 0.2
	}
	score := clamp(float64(matched)/float64(len(required))+bonus, 0, 1)
	return model.FactorScore{
		Name:   "skill",
		Score:  score,
		Reason: fmt.Sprintf("%d/%d skills matched", matched, len(required)),
	}
}

// ProximityFactor falls off linearly from 1.0 at the base to 0 at the
// configured falloff radius (default 50 km).
func ProximityFactor(cc *CandidateContext) model.FactorScore {
	d := geo.DistanceKm(cc.Crew.Base, cc.Job.Pickup)
	score := clamp(1.0-d/cc.ProximityFalloffKm, 0, 1)
	return model.FactorScore{
		Name:   "proximity",
		Score:  score,
		Reason: fmt.Sprintf("%.1f km from base", d),
	}
}

// AvailabilityFactor scores the best calendar slot overlapping the requested
// time: the slot's free-capacity fraction, boosted when it falls inside the
// customer's preferred window and penalized outside regular hours.
func AvailabilityFactor(cc *CandidateContext) model.FactorScore {
	slots := cc.Crew.SlotsFor(cc.Job.DateKey())
	if len(slots) == 0 {
		return model.FactorScore{Name: "availability", Score: 0, Reason: "no slot on requested date"}
	}

	hour := cc.Job.RequestedDate.Hour()
	best := 0.0
	reason := "no overlapping slot"
	for _, slot := range slots {
		if hour < slot.StartHour || hour >= slot.EndHour {
			continue
		}
		if slot.Capacity < cc.AvailabilityFloor {
			reason = fmt.Sprintf("slot capacity %.2f below floor %.2f", slot.Capacity, cc.AvailabilityFloor)
			continue
		}
		score := slot.Capacity
		if w := cc.Job.PreferredWindow; w != nil && slot.StartHour >= w.StartHour && slot.EndHour <= w.EndHour {
			score += 0.2
		}
		if slot.StartHour < 8 || slot.EndHour > 18 {
			score *= 0.8
		}
		score = clamp(score, 0, 1)
		if score > best {
			best = score
			reason = fmt.Sprintf("slot %02d:00–%02d:00 capacity %.2f", slot.StartHour, slot.EndHour, slot.Capacity)
		}
	}
	return model.FactorScore{Name: "availability", Score: best, Reason: reason}
}

// WorkloadFactor rewards crews with spare daily capacity: 1 − utilization.
func WorkloadFactor(cc *CandidateContext) model.FactorScore {
	maxJobs := cc.MaxJobsPerDay
	if maxJobs <= 0 {
		maxJobs = 4
	}
	assigned := cc.Crew.JobsOn(cc.Job.DateKey())
	utilization := float64(assigned) / float64(maxJobs)
	score := clamp(1.0-utilization, 0, 1)
	return model.FactorScore{
		Name:   "workload",
		Score:  score,
		Reason: fmt.Sprintf("%d of %d jobs booked", assigned, maxJobs),
	}
}

// PerformanceFactor blends the crew's performance snapshot
// (completion 0.3, satisfaction 0.5, efficiency 0.2) with a specialty bonus
// when the crew's specialties cover the job's service type.
func PerformanceFactor(cc *CandidateContext) model.FactorScore {
	p := cc.Crew.Performance
	score := p.CompletionRate*0.3 + p.Satisfaction*0.5 + p.Efficiency*0.2
	reason := "performance snapshot"
	if cc.Job.ServiceType != "" {
		for _, s := range cc.Crew.Specialties {
			if strings.EqualFold(s, cc.Job.ServiceType) {
				score += 0.15
				reason = "performance snapshot + service specialty"
				break
			}
		}
	}
	return model.FactorScore{Name: "performance", Score: clamp(score, 0, 1), Reason: reason}
}

// PerformanceBlend is the raw snapshot blend without the specialty bonus,
// used by the critical-priority hard rule.
func PerformanceBlend(p model.Performance) float64 {
	return p.CompletionRate*0.3 + p.Satisfaction*0.5 + p.Efficiency*0.2
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
