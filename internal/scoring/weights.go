package scoring

import (
	"fmt"
	"math"
)

// Mode selects which weight split and availability floor apply. Weights are
// fixed per mode, never tuned per request.
type Mode string

const (
	ModeAssignment Mode = "assignment"
	ModeScheduling Mode = "scheduling"
)

// WeightSet defines the relative importance of each sub-score.
// All weights must sum to 1.0 (±0.001 tolerance).
type WeightSet struct {
	Skill        float64
	Proximity    float64
	Availability float64
	Workload     float64
	Performance  float64
}

// DefaultAssignmentWeights returns the dispatch-mode weight distribution.
func DefaultAssignmentWeights() WeightSet {
	return WeightSet{
		Skill:        0.30,
		Proximity:    0.20,
		Availability: 0.25,
		Workload:     0.10,
		Performance:  0.15,
	}
}

// DefaultSchedulingWeights returns the planning-mode weight distribution,
// which leans harder on performance history than on same-day availability.
func DefaultSchedulingWeights() WeightSet {
	return WeightSet{
		Skill:        0.25,
		Proximity:    0.20,
		Availability: 0.15,
		Workload:     0.15,
		Performance:  0.25,
	}
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() float64 {
	return w.Skill + w.Proximity + w.Availability + w.Workload + w.Performance
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w WeightSet) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range w.asList() {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

func (w WeightSet) asList() []float64 {
	return []float64{w.Skill, w.Proximity, w.Availability, w.Workload, w.Performance}
}
