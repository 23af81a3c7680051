// Package dispatcher wires the optimization core to the outside world: it
// resolves inputs from the providers, runs scoring, selection, routing, and
// pricing, and persists/publishes the derived results. The core packages
// stay pure; every side effect lives here.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/assign"
	"github.com/relocore/dispatch/internal/calendar"
	"github.com/relocore/dispatch/internal/config"
	"github.com/relocore/dispatch/internal/crm"
	"github.com/relocore/dispatch/internal/events"
	"github.com/relocore/dispatch/internal/geo"
	"github.com/relocore/dispatch/internal/market"
	"github.com/relocore/dispatch/internal/metrics"
	"github.com/relocore/dispatch/internal/model"
	"github.com/relocore/dispatch/internal/pricing"
	"github.com/relocore/dispatch/internal/routing"
	"github.com/relocore/dispatch/internal/scoring"
	"github.com/relocore/dispatch/internal/store"
)

const providerTimeout = 5 * time.Second

type Dispatcher struct {
	store    store.Store
	events   events.Client
	calendar calendar.Client
	market   market.Client
	crm      crm.Client
	selector *assign.Selector
	pricer   *pricing.Adjuster
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time
}

func New(s store.Store, ev events.Client, cal calendar.Client, mkt market.Client, c crm.Client, cfg *config.Config, logger *slog.Logger) *Dispatcher {
	scorer := scoring.NewScorer(scoring.Params{
		Mode: scoring.ModeAssignment,
		Weights: scoring.WeightSet{
			Skill:        cfg.Scoring.AssignmentWeights.Skill,
			Proximity:    cfg.Scoring.AssignmentWeights.Proximity,
			Availability: cfg.Scoring.AssignmentWeights.Availability,
			Workload:     cfg.Scoring.AssignmentWeights.Workload,
			Performance:  cfg.Scoring.AssignmentWeights.Performance,
		},
		ProximityFalloffKm: cfg.Scoring.ProximityFalloffKm,
		AvailabilityFloor:  cfg.Scoring.AvailabilityFloor,
		Rules: scoring.RuleParams{
			MaxTravelTime:          cfg.MaxTravelTime(),
			AverageSpeedKmh:        cfg.Routing.AverageSpeedKmh,
			TrafficMultiplier:      cfg.Routing.TrafficMultiplier,
			MaxJobsPerDay:          cfg.Scoring.MaxJobsPerDay,
			CriticalPerformanceMin: cfg.Scoring.CriticalPerformanceMin,
		},
	}, logger)

	router := routing.NewBuilder(routing.Params{
		AverageSpeedKmh:   cfg.Routing.AverageSpeedKmh,
		TrafficMultiplier: cfg.Routing.TrafficMultiplier,
		TwoOptPassFactor:  cfg.Routing.TwoOptPassFactor,
	}, logger)

	selector := assign.NewSelector(scorer, router, assign.Params{
		CriticalMinScore:  cfg.Assignment.CriticalMinScore,
		VIPPerformanceMin: cfg.Assignment.VIPPerformanceMin,
		BackupCount:       cfg.Assignment.BackupCount,
	}, logger)

	pricer := pricing.NewAdjuster(pricing.Params{
		VolumeRate:         cfg.Pricing.VolumeRate,
		DistanceRate:       cfg.Pricing.DistanceRate,
		HourlyRate:         cfg.Pricing.HourlyRate,
		FloorPenalty:       cfg.Pricing.FloorPenalty,
		ParkingFreeM:       cfg.Pricing.ParkingFreeM,
		ParkingRatePer10M:  cfg.Pricing.ParkingRatePer10M,
		UrgencyMultipliers: pricing.DefaultUrgencyMultipliers(),
		SearchLow:          cfg.Pricing.SearchLow,
		SearchHigh:         cfg.Pricing.SearchHigh,
		SearchStep:         cfg.Pricing.SearchStep,
		RevenueWeight:      cfg.Pricing.RevenueWeight,
		ConversionWeight:   cfg.Pricing.ConversionWeight,
		MarginWeight:       cfg.Pricing.MarginWeight,
		CompetitiveWeight:  cfg.Pricing.CompetitiveWeight,
		DiscountCapPct:     cfg.Pricing.DiscountCapPct,
		TaxRate:            cfg.Pricing.TaxRate,
		Validity:           cfg.QuoteValidity(),
	}, logger)

	return &Dispatcher{
		store:    s,
		events:   ev,
		calendar: cal,
		market:   mkt,
		crm:      c,
		selector: selector,
		pricer:   pricer,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AssignJob runs the full dispatch flow for one job request. A fully
// filtered-out pool produces a persisted unassigned result, not an error.
func (d *Dispatcher) AssignJob(ctx context.Context, job *model.JobRequest) (*model.AssignmentResult, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	crewCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	crews, err := d.calendar.ListCrews(crewCtx)
	cancel()
	if err != nil {
		d.logger.Error("failed to resolve crew pool", "job_id", job.ID, "error", err)
		return nil, scoring.ErrNoEligibleCrew
	}

	start := time.Now()
	result, err := d.selector.Assign(ctx, job, crews)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, scoring.ErrNoEligibleCrew) {
		return nil, err
	}
	return d.finishAssignment(ctx, job, result, false)
}

// ReassignJob excludes the previously assigned crew and records the handover.
func (d *Dispatcher) ReassignJob(ctx context.Context, job *model.JobRequest, previousCrewID uuid.UUID, reason string) (*model.AssignmentResult, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	crewCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	crews, err := d.calendar.ListCrews(crewCtx)
	cancel()
	if err != nil {
		d.logger.Error("failed to resolve crew pool", "job_id", job.ID, "error", err)
		return nil, scoring.ErrNoEligibleCrew
	}

	result, err := d.selector.Reassign(ctx, job, crews, previousCrewID, reason)
	if err != nil && !errors.Is(err, scoring.ErrNoEligibleCrew) {
		return nil, err
	}
	return d.finishAssignment(ctx, job, result, true)
}

func (d *Dispatcher) finishAssignment(ctx context.Context, job *model.JobRequest, result *model.AssignmentResult, reassigned bool) (*model.AssignmentResult, error) {
	if err := d.store.CreateAssignment(ctx, result); err != nil {
		return nil, err
	}

	if result.Unassigned {
		metrics.Assignments.WithLabelValues("unassigned").Inc()
		if d.events != nil {
			_ = d.events.Publish(events.SubjectAssignmentUnassigned(result.ID.String()), events.AssignmentUnassignedEvent{
				JobID:    job.ID.String(),
				Reason:   result.UnassignedReason,
				Escalate: result.Escalate,
			})
		}
		return result, nil
	}

	// Commit the workload delta against the crew calendar; the calendar
	// service enforces the optimistic version check per crew-day.
	if result.Delta != nil {
		commitCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		err := d.calendar.CommitDelta(commitCtx, result.Delta)
		cancel()
		if err != nil {
			d.logger.Error("workload commit failed, assignment stands for manual review",
				"job_id", job.ID, "crew_id", result.CrewID, "error", err)
		}
	}

	outcome := "assigned"
	subject := events.SubjectAssignmentCreated(result.ID.String())
	if reassigned {
		outcome = "reassigned"
		subject = events.SubjectAssignmentReassigned(result.ID.String())
	}
	metrics.Assignments.WithLabelValues(outcome).Inc()
	if result.Route != nil {
		metrics.RouteDistance.Observe(result.Route.TotalDistanceKm)
	}

	if d.events != nil {
		routeKm := 0.0
		if result.Route != nil {
			routeKm = result.Route.TotalDistanceKm
		}
		_ = d.events.Publish(subject, events.AssignmentCreatedEvent{
			AssignmentID: result.ID.String(),
			JobID:        job.ID.String(),
			CrewID:       result.CrewID.String(),
			Score:        result.Score,
			Reasons:      result.Reasons,
			RouteKm:      routeKm,
			Backups:      len(result.Backups),
		})
	}

	d.logger.Info("assignment persisted",
		"assignment_id", result.ID, "job_id", job.ID, "crew", result.CrewName,
		"score", result.Score, "reassigned", reassigned)
	return result, nil
}

// QuoteJob prices a job before any crew is committed: the only routing input
// is the pickup→delivery bridge distance. Missing market or customer data
// degrades specific adjustments instead of failing the quote.
func (d *Dispatcher) QuoteJob(ctx context.Context, job *model.JobRequest) (*model.PriceQuote, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	distanceKm := geo.DistanceKm(job.Pickup, job.Delivery)

	marketCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	snapshot, err := d.market.Snapshot(marketCtx, job.ServiceType)
	cancel()
	if err != nil {
		d.logger.Warn("market snapshot unavailable, pricing degraded", "job_id", job.ID, "error", err)
		snapshot = nil
	}

	var profile *model.CustomerProfile
	if job.CustomerID != "" {
		crmCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		profile, err = d.crm.GetProfile(crmCtx, job.CustomerID)
		cancel()
		if err != nil {
			d.logger.Warn("customer profile unavailable", "job_id", job.ID, "customer_id", job.CustomerID, "error", err)
			profile = nil
		}
	}

	quote, err := d.pricer.Quote(ctx, pricing.QuoteInput{
		Job:        job,
		DistanceKm: distanceKm,
		Market:     snapshot,
		Customer:   profile,
		Now:        d.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := d.store.CreateQuote(ctx, quote); err != nil {
		return nil, err
	}

	marketLabel := "complete"
	if snapshot == nil || len(snapshot.CompetitorPrices) == 0 {
		marketLabel = "incomplete"
	}
	metrics.Quotes.WithLabelValues(marketLabel).Inc()

	if d.events != nil {
		_ = d.events.Publish(events.SubjectQuoteIssued(quote.ID.String()), events.QuoteIssuedEvent{
			QuoteID:    quote.ID.String(),
			JobID:      job.ID.String(),
			Total:      quote.Total,
			Confidence: quote.Confidence,
			ValidUntil: quote.ValidUntil.Format(time.RFC3339),
		})
	}

	d.logger.Info("quote issued", "quote_id", quote.ID, "job_id", job.ID, "total", quote.Total)
	return quote, nil
}

// GetQuote loads a quote and rejects expired ones with ErrStaleQuote.
func (d *Dispatcher) GetQuote(ctx context.Context, id uuid.UUID) (*model.PriceQuote, error) {
	quote, err := d.store.GetQuote(ctx, id)
	if err != nil || quote == nil {
		return quote, err
	}
	if err := pricing.CheckFresh(quote, d.now()); err != nil {
		return quote, err
	}
	return quote, nil
}
