package routing

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/geo"
	"github.com/relocore/dispatch/internal/model"
)

func testBuilder() *Builder {
	return NewBuilder(Params{
		AverageSpeedKmh:   40,
		TrafficMultiplier: 1.2,
		TwoOptPassFactor:  2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func stopAt(label string, lat, lng float64) model.Stop {
	return model.Stop{JobID: uuid.New(), Label: label, Location: model.Coordinate{Lat: lat, Lng: lng}}
}

var base = model.Coordinate{Lat: 52.50, Lng: 13.40}

func TestBuildSegmentCount(t *testing.T) {
	b := testBuilder()
	stops := []model.Stop{
		stopAt("a", 52.52, 13.41),
		stopAt("b", 52.54, 13.38),
		stopAt("c", 52.49, 13.45),
	}
	route, err := b.Build(uuid.New(), "2026-09-14", base, stops, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := len(route.Segments), len(stops)+1; got != want {
		t.Errorf("expected %d segments, got %d", want, got)
	}
	if route.Segments[0].FromLabel != "base" {
		t.Errorf("tour must start at base, got %q", route.Segments[0].FromLabel)
	}
	if last := route.Segments[len(route.Segments)-1]; last.ToLabel != "base" {
		t.Errorf("tour must close at base, got %q", last.ToLabel)
	}
}

func TestBuildSingleStop(t *testing.T) {
	b := testBuilder()
	route, err := b.Build(uuid.New(), "2026-09-14", base, []model.Stop{stopAt("pickup", 52.52, 13.41)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route.Segments) != 2 {
		t.Fatalf("expected out-and-back with 2 segments, got %d", len(route.Segments))
	}
	out, back := route.Segments[0], route.Segments[1]
	if math.Abs(out.DistanceKm-back.DistanceKm) > 1e-9 {
		t.Errorf("out and back legs differ: %f vs %f", out.DistanceKm, back.DistanceKm)
	}
}

func TestBuildNoStops(t *testing.T) {
	b := testBuilder()
	_, err := b.Build(uuid.New(), "2026-09-14", base, nil, nil)
	if !errors.Is(err, ErrRouteComputation) {
		t.Errorf("expected ErrRouteComputation, got %v", err)
	}
}

func TestBuildMalformedCoordinate(t *testing.T) {
	b := testBuilder()
	stops := []model.Stop{stopAt("bad", 120.0, 13.41)}
	_, err := b.Build(uuid.New(), "2026-09-14", base, stops, nil)
	if !errors.Is(err, ErrRouteComputation) {
		t.Errorf("expected ErrRouteComputation, got %v", err)
	}

	t.Run("NaN", func(t *testing.T) {
		stops := []model.Stop{stopAt("nan", math.NaN(), 13.41)}
		_, err := b.Build(uuid.New(), "2026-09-14", base, stops, nil)
		if !errors.Is(err, ErrRouteComputation) {
			t.Errorf("expected ErrRouteComputation, got %v", err)
		}
	})
}

func TestTwoOptNeverWorseThanConstruction(t *testing.T) {
	b := testBuilder()
	// A spread chosen so greedy nearest-neighbor picks a crossing tour.
	stops := []model.Stop{
		stopAt("a", 52.60, 13.20),
		stopAt("b", 52.40, 13.60),
		stopAt("c", 52.60, 13.60),
		stopAt("d", 52.40, 13.20),
		stopAt("e", 52.55, 13.40),
	}

	nn := nearestNeighborOrder(base, stops)
	nnDist := tourDistance(base, stops, nn)

	route, err := b.Build(uuid.New(), "2026-09-14", base, stops, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.TotalDistanceKm > nnDist+1e-9 {
		t.Errorf("2-opt tour %.3f km longer than construction %.3f km", route.TotalDistanceKm, nnDist)
	}
}

func TestDuplicateStopsTerminate(t *testing.T) {
	b := testBuilder()
	// Identical coordinates give zero-length improvement candidates; strict
	// decrease plus the pass cap must still terminate cleanly.
	stops := []model.Stop{
		stopAt("a", 52.52, 13.41),
		stopAt("a2", 52.52, 13.41),
		stopAt("a3", 52.52, 13.41),
		stopAt("b", 52.54, 13.38),
	}
	route, err := b.Build(uuid.New(), "2026-09-14", base, stops, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.Degraded {
		t.Error("duplicate stops must not trip the improvement guard")
	}
	if len(route.Segments) != len(stops)+1 {
		t.Errorf("expected %d segments, got %d", len(stops)+1, len(route.Segments))
	}
}

func TestBuildDeparture(t *testing.T) {
	b := testBuilder()
	arrival := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)
	route, err := b.Build(uuid.New(), "2026-09-14", base, []model.Stop{stopAt("pickup", 52.52, 13.41)}, &arrival)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.Departure == nil {
		t.Fatal("expected a departure time")
	}
	want := arrival.Add(-route.Segments[0].Duration)
	if !route.Departure.Equal(want) {
		t.Errorf("departure %s, want %s", route.Departure, want)
	}
	if !route.Departure.Before(arrival) {
		t.Error("departure must precede required arrival")
	}
}

func TestLegDuration(t *testing.T) {
	b := testBuilder()
	// 40 km at 40 km/h with 1.2 traffic = 72 minutes.
	if got := b.legDuration(40); got != 72*time.Minute {
		t.Errorf("got %s, want 72m", got)
	}
}

func TestTotalsMatchSegments(t *testing.T) {
	b := testBuilder()
	stops := []model.Stop{
		stopAt("a", 52.52, 13.41),
		stopAt("b", 52.54, 13.38),
	}
	route, err := b.Build(uuid.New(), "2026-09-14", base, stops, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var dist float64
	var dur time.Duration
	for _, seg := range route.Segments {
		dist += seg.DistanceKm
		dur += seg.Duration
	}
	if math.Abs(route.TotalDistanceKm-dist) > 1e-9 {
		t.Errorf("total distance %f != segment sum %f", route.TotalDistanceKm, dist)
	}
	if route.TotalDuration != dur {
		t.Errorf("total duration %s != segment sum %s", route.TotalDuration, dur)
	}
}

func TestNearestNeighborOrder(t *testing.T) {
	near := stopAt("near", 52.51, 13.41)
	far := stopAt("far", 52.60, 13.60)
	order := nearestNeighborOrder(base, []model.Stop{far, near})
	if order[0] != 1 {
		t.Errorf("expected nearest stop first, got order %v", order)
	}
	if geo.DistanceKm(base, near.Location) > geo.DistanceKm(base, far.Location) {
		t.Fatal("fixture broken: near is farther than far")
	}
}
