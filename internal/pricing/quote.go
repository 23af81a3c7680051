package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/relocore/dispatch/internal/model"
)

// QuoteInput carries everything a quote needs. Routing contributes only the
// bridge values (distance, duration), so pricing can run before any crew is
// committed. Now is passed in explicitly: identical inputs, including the
// clock, must yield an identical quote.
type QuoteInput struct {
	Job        *model.JobRequest
	DistanceKm float64
	Duration   time.Duration
	Market     *model.MarketSnapshot
	Customer   *model.CustomerProfile
	Now        time.Time
}

// Quote runs the full pricing pipeline: base price, ordered adjustments,
// bounded search, psychological rounding, discounts, tax. The quote ID is
// assigned by the caller on persistence.
func (a *Adjuster) Quote(ctx context.Context, in QuoteInput) (*model.PriceQuote, error) {
	if in.Job == nil {
		return nil, fmt.Errorf("%w: job required", model.ErrInvalidJobRequest)
	}

	base, laborHours := a.BasePrice(in.Job, in.DistanceKm)
	adjustments, adjusted := a.applyAdjustments(in.Job, in.Customer, in.Market, base)

	if in.Market == nil || len(in.Market.CompetitorPrices) == 0 {
		a.logger.Info("pricing in degraded mode", "job_id", in.Job.ID, "reason", ErrIncompleteMarketData)
	}

	optimal, _ := a.optimize(ctx, adjusted, in.Market, in.Customer)
	rounded := roundPsychological(optimal)

	discounts, discountTotal := a.applyDiscounts(in.Customer, in.Job, rounded)
	subtotal := rounded - discountTotal
	tax := round2(subtotal * a.params.TaxRate)
	total := round2(subtotal + tax)

	a.logger.Info("quote computed",
		"job_id", in.Job.ID,
		"base", round2(base),
		"adjusted", round2(adjusted),
		"optimal", round2(optimal),
		"total", total,
		"labor_hours", laborHours,
	)

	return &model.PriceQuote{
		JobID:       in.Job.ID,
		BasePrice:   round2(base),
		Adjustments: adjustments,
		Discounts:   discounts,
		Subtotal:    round2(subtotal),
		Tax:         tax,
		Total:       total,
		Confidence:  a.confidence(in.Market, in.Customer),
		RangeLow:    round2(total * 0.9),
		RangeHigh:   round2(total * 1.1),
		IssuedAt:    in.Now,
		ValidUntil:  in.Now.Add(a.params.Validity),
	}, nil
}

// applyDiscounts computes the separate discount ladder and caps the sum at
// the configured fraction of the pre-discount price, scaling all entries
// proportionally when the raw sum exceeds the cap.
func (a *Adjuster) applyDiscounts(customer *model.CustomerProfile, job *model.JobRequest, preDiscount float64) ([]model.Discount, float64) {
	var discounts []model.Discount
	add := func(name, reason string, pct float64) {
		if pct <= 0 {
			return
		}
		discounts = append(discounts, model.Discount{
			Name:    name,
			Percent: pct * 100,
			Amount:  round2(preDiscount * pct),
			Reason:  reason,
		})
	}

	if customer != nil {
		if customer.BookingLeadDays >= 30 {
			add("early_booking", "booked 30+ days ahead", 0.05)
		}
		switch {
		case customer.LoyaltyYears >= 5:
			add("loyalty_tier", "customer for 5+ years", 0.05)
		case customer.LoyaltyYears >= 2:
			add("loyalty_tier", "customer for 2+ years", 0.03)
		}
		if customer.Referred {
			add("referral", "referred customer", 0.02)
		}
		if customer.FlexibleSchedule {
			add("flexible_scheduling", "flexible on date", 0.03)
		}
		if customer.BundledServices >= 2 {
			add("service_bundling", "multiple services bundled", 0.03)
		}
	}
	if job.VolumeM3 >= 40 {
		add("volume", "large volume move", 0.04)
	}

	total := 0.0
	for _, d := range discounts {
		total += d.Amount
	}
	limit := preDiscount * a.params.DiscountCapPct
	if total > limit && total > 0 {
		scale := limit / total
		for i := range discounts {
			discounts[i].Amount = round2(discounts[i].Amount * scale)
			discounts[i].Percent = round2(discounts[i].Percent * scale)
		}
		total = limit
	}
	return discounts, round2(total)
}

// confidence reflects data completeness: order history depth, competitor
// sample size, and elasticity plausibility.
func (a *Adjuster) confidence(market *model.MarketSnapshot, customer *model.CustomerProfile) float64 {
	conf := 0.5
	if customer != nil {
		depth := float64(customer.OrderCount)
		if depth > 10 {
			depth = 10
		}
		conf += depth / 10 * 0.15
	}
	if market != nil && len(market.CompetitorPrices) > 0 {
		sample := float64(len(market.CompetitorPrices))
		if sample > 5 {
			sample = 5
		}
		conf += sample / 5 * 0.20
	}
	if e := deriveElasticity(market, customer); e >= 0.5 && e <= 2.5 {
		conf += 0.10
	}
	return round2(clamp(conf, 0, 0.95))
}

// CheckFresh returns ErrStaleQuote when a quote is used after its validity
// window.
func CheckFresh(q *model.PriceQuote, now time.Time) error {
	if q.Expired(now) {
		return fmt.Errorf("%w: valid until %s", ErrStaleQuote, q.ValidUntil.Format(time.RFC3339))
	}
	return nil
}
