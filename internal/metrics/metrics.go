// Package metrics holds the Prometheus collectors for the dispatch engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// Assignments counts assignment outcomes.
	Assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_assignments_total", Help: "Assignment outcomes."},
		[]string{"outcome"}, // assigned, unassigned, reassigned
	)
	// Quotes counts issued quotes by degraded-mode flag.
	Quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_quotes_total", Help: "Issued quotes."},
		[]string{"market_data"}, // complete, incomplete
	)
	// ScoringDuration records candidate-ranking latency in seconds.
	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dispatch_scoring_duration_seconds", Help: "Candidate ranking latency.", Buckets: prometheus.DefBuckets},
	)
	// RouteDistance records computed route lengths in km.
	RouteDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dispatch_route_distance_km", Help: "Computed route distance.", Buckets: []float64{5, 10, 25, 50, 100, 200, 400}},
	)
)

var regOnce sync.Once

// Register adds all collectors to the registry, once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(Assignments)
		Registry.MustRegister(Quotes)
		Registry.MustRegister(ScoringDuration)
		Registry.MustRegister(RouteDistance)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
