package scoring

import (
	"fmt"
	"time"

	"github.com/relocore/dispatch/internal/geo"
	"github.com/relocore/dispatch/internal/model"
)

// RuleParams are the hard business-rule thresholds applied after scoring.
// Rules are filters, not score penalties.
type RuleParams struct {
	MaxTravelTime          time.Duration
	AverageSpeedKmh        float64
	TrafficMultiplier      float64
	MaxJobsPerDay          int
	CriticalPerformanceMin float64
}

// CheckRules returns false and a reason when a scored crew must be dropped.
func CheckRules(p RuleParams, job *model.JobRequest, crew *model.Crew) (bool, string) {
	travel := TravelTime(p, geo.DistanceKm(crew.Base, job.Pickup))
	if travel > p.MaxTravelTime {
		return false, fmt.Sprintf("travel time %s exceeds max %s", travel.Round(time.Minute), p.MaxTravelTime)
	}
	if p.MaxJobsPerDay > 0 && crew.JobsOn(job.DateKey()) >= p.MaxJobsPerDay {
		return false, "already at max daily job count"
	}
	if job.Urgency == model.UrgencyCritical && PerformanceBlend(crew.Performance) < p.CriticalPerformanceMin {
		return false, fmt.Sprintf("performance below %.2f required for critical jobs", p.CriticalPerformanceMin)
	}
	if len(crew.SlotsFor(job.DateKey())) == 0 {
		return false, "no slot on requested date"
	}
	return true, ""
}

// TravelTime converts a road distance to a duration using the injected
// average speed and traffic multiplier.
func TravelTime(p RuleParams, distanceKm float64) time.Duration {
	speed := p.AverageSpeedKmh
	if speed <= 0 {
		speed = 40
	}
	mult := p.TrafficMultiplier
	if mult <= 0 {
		mult = 1
	}
	hours := distanceKm / speed * mult
	return time.Duration(hours * float64(time.Hour))
}
