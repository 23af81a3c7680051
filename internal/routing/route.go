// Package routing builds per-crew daily tours: nearest-neighbor construction
// followed by 2-opt local search. Local optimum only, not a global one.
package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/geo"
	"github.com/relocore/dispatch/internal/model"
)

// ErrRouteComputation marks malformed input or a tripped improvement guard.
// When construction succeeded, the degraded construction-only route is
// returned alongside the error.
var ErrRouteComputation = errors.New("route computation failed")

// Params are the injected travel-model knobs. The 2-opt pass cap is
// TwoOptPassFactor * stops², part of the contract, not an implementation
// accident.
type Params struct {
	AverageSpeedKmh   float64
	TrafficMultiplier float64
	TwoOptPassFactor  int
}

// Builder computes routes for one crew-day at a time. Stateless and safe for
// concurrent use across crews; the 2-opt pass itself is sequential per crew.
type Builder struct {
	params Params
	logger *slog.Logger
}

func NewBuilder(params Params, logger *slog.Logger) *Builder {
	return &Builder{params: params, logger: logger}
}

// Build orders the given stops into a tour from base back to base and
// reports per-leg segments. With zero stops beyond the new job, the tour is
// base→job→base: one outbound and one closing segment.
func (b *Builder) Build(crewID uuid.UUID, dateKey string, base model.Coordinate, stops []model.Stop, requiredArrival *time.Time) (*model.Route, error) {
	if err := checkCoordinate(base); err != nil {
		return nil, err
	}
	for _, s := range stops {
		if err := checkCoordinate(s.Location); err != nil {
			return nil, err
		}
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: no stops", ErrRouteComputation)
	}

	order := nearestNeighborOrder(base, stops)
	improved, converged := b.improve2Opt(base, stops, order)

	route := b.assemble(crewID, dateKey, base, stops, improved, requiredArrival)
	if !converged {
		// Guard tripped: fall back to the construction-only tour.
		b.logger.Warn("2-opt guard tripped, returning construction-only route",
			"crew_id", crewID, "stops", len(stops))
		route = b.assemble(crewID, dateKey, base, stops, order, requiredArrival)
		route.Degraded = true
		return route, fmt.Errorf("%w: improvement guard tripped after %d passes",
			ErrRouteComputation, b.passCap(len(stops)))
	}
	return route, nil
}

// nearestNeighborOrder greedily visits the closest unvisited stop, starting
// from the base.
func nearestNeighborOrder(base model.Coordinate, stops []model.Stop) []int {
	n := len(stops)
	order := make([]int, 0, n)
	visited := make([]bool, n)
	current := base
	for len(order) < n {
		bestIdx := -1
		bestDist := 0.0
		for i := 0; i < n; i++ {
			if visited[i] {
				continue
			}
			d := geo.DistanceKm(current, stops[i].Location)
			if bestIdx == -1 || d < bestDist {
				bestIdx = i
				bestDist = d
			}
		}
		visited[bestIdx] = true
		order = append(order, bestIdx)
		current = stops[bestIdx].Location
	}
	return order
}

// improve2Opt reverses sub-tours while doing so strictly shortens the tour.
// Duplicate and zero-distance stops cannot loop forever: improvements
// require a strict decrease and the pass cap bounds the search.
func (b *Builder) improve2Opt(base model.Coordinate, stops []model.Stop, order []int) ([]int, bool) {
	best := append([]int(nil), order...)
	bestDist := tourDistance(base, stops, best)
	maxPasses := b.passCap(len(stops))

	for pass := 0; pass < maxPasses; pass++ {
		improvedPass := false
		for i := 0; i < len(best)-1; i++ {
			for j := i + 1; j < len(best); j++ {
				candidate := reverseSegment(best, i, j)
				if d := tourDistance(base, stops, candidate); d < bestDist {
					best = candidate
					bestDist = d
					improvedPass = true
				}
			}
		}
		if !improvedPass {
			return best, true
		}
	}
	return best, false
}

// passCap bounds the number of full improvement passes at factor·stops².
func (b *Builder) passCap(stops int) int {
	factor := b.params.TwoOptPassFactor
	if factor <= 0 {
		factor = 2
	}
	n := factor * stops * stops
	if n < 4 {
		n = 4
	}
	return n
}

func reverseSegment(order []int, i, j int) []int {
	out := make([]int, len(order))
	copy(out, order[:i])
	pos := i
	for k := j; k >= i; k-- {
		out[pos] = order[k]
		pos++
	}
	copy(out[pos:], order[j+1:])
	return out
}

func tourDistance(base model.Coordinate, stops []model.Stop, order []int) float64 {
	total := 0.0
	current := base
	for _, idx := range order {
		total += geo.DistanceKm(current, stops[idx].Location)
		current = stops[idx].Location
	}
	total += geo.DistanceKm(current, base)
	return total
}

// assemble turns an ordered visit sequence into segments, including the
// closing leg back to base, which is always present.
func (b *Builder) assemble(crewID uuid.UUID, dateKey string, base model.Coordinate, stops []model.Stop, order []int, requiredArrival *time.Time) *model.Route {
	route := &model.Route{CrewID: crewID, DateKey: dateKey}

	current := base
	currentLabel := "base"
	for _, idx := range order {
		stop := stops[idx]
		route.Segments = append(route.Segments, b.segment(current, currentLabel, stop.Location, stop.Label))
		current = stop.Location
		currentLabel = stop.Label
	}
	route.Segments = append(route.Segments, b.segment(current, currentLabel, base, "base"))

	for _, seg := range route.Segments {
		route.TotalDistanceKm += seg.DistanceKm
		route.TotalDuration += seg.Duration
	}
	if requiredArrival != nil && len(route.Segments) > 0 {
		dep := requiredArrival.Add(-route.Segments[0].Duration)
		route.Departure = &dep
	}
	return route
}

func (b *Builder) segment(from model.Coordinate, fromLabel string, to model.Coordinate, toLabel string) model.RouteSegment {
	d := geo.DistanceKm(from, to)
	return model.RouteSegment{
		FromLabel:   fromLabel,
		ToLabel:     toLabel,
		From:        from,
		To:          to,
		DistanceKm:  d,
		Duration:    b.legDuration(d),
		Instruction: fmt.Sprintf("drive from %s to %s (%.1f km)", fromLabel, toLabel, d),
	}
}

func (b *Builder) legDuration(distanceKm float64) time.Duration {
	speed := b.params.AverageSpeedKmh
	if speed <= 0 {
		speed = 40
	}
	mult := b.params.TrafficMultiplier
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(distanceKm / speed * mult * float64(time.Hour))
}

func checkCoordinate(c model.Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 || c.Lat != c.Lat || c.Lng != c.Lng {
		return fmt.Errorf("%w: malformed coordinate (%f, %f)", ErrRouteComputation, c.Lat, c.Lng)
	}
	return nil
}
