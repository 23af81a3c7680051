package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidJobRequest marks a request rejected before scoring.
var ErrInvalidJobRequest = errors.New("invalid job request")

// Validate rejects malformed job requests up front so the scoring and
// routing layers can assume well-formed input.
func (j *JobRequest) Validate() error {
	if len(j.RequiredSkills) == 0 {
		return fmt.Errorf("%w: at least one required skill", ErrInvalidJobRequest)
	}
	seen := make(map[string]bool, len(j.RequiredSkills))
	for _, s := range j.RequiredSkills {
		if s == "" {
			return fmt.Errorf("%w: empty skill name", ErrInvalidJobRequest)
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate skill %q", ErrInvalidJobRequest, s)
		}
		seen[s] = true
	}
	if j.EstimatedHours <= 0 {
		return fmt.Errorf("%w: estimated hours must be positive", ErrInvalidJobRequest)
	}
	if err := j.Pickup.check("pickup"); err != nil {
		return err
	}
	if err := j.Delivery.check("delivery"); err != nil {
		return err
	}
	if j.RequestedDate.IsZero() {
		return fmt.Errorf("%w: requested date required", ErrInvalidJobRequest)
	}
	if !j.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidJobRequest, j.Urgency)
	}
	if !j.CustomerSegment.Valid() {
		return fmt.Errorf("%w: unknown customer segment %q", ErrInvalidJobRequest, j.CustomerSegment)
	}
	return nil
}

func (c Coordinate) check(label string) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("%w: %s coordinate is not finite", ErrInvalidJobRequest, label)
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: %s coordinate out of range", ErrInvalidJobRequest, label)
	}
	return nil
}
