package pricing

import (
	"fmt"
	"math"

	"github.com/relocore/dispatch/internal/model"
)

const (
	capacitySurchargeThreshold = 0.85
	competitiveHighBand        = 1.20 // pull down when >20% above competitor average
	competitiveLowBand         = 0.85 // pull up when >15% below competitor average
	specialHandlingSurcharge   = 150.0
)

// applyAdjustments walks the ordered adjustment sequence, mutating the
// running price. Every adjustment is computed and logged; zero-impact
// entries are filtered from the visible list.
func (a *Adjuster) applyAdjustments(job *model.JobRequest, customer *model.CustomerProfile, market *model.MarketSnapshot, base float64) ([]model.PriceAdjustment, float64) {
	price := base
	var visible []model.PriceAdjustment

	record := func(adj model.PriceAdjustment) {
		price += adj.Amount
		a.logger.Debug("price adjustment",
			"name", adj.Name, "amount", adj.Amount, "running_price", price, "reason", adj.Reason)
		if adj.Amount != 0 {
			adj.Percent = adj.Amount / base * 100
			visible = append(visible, adj)
		}
	}

	record(a.demandAdjustment(market, price))
	record(a.urgencyAdjustment(job, price))
	record(a.seasonalAdjustment(market, price))
	record(a.capacityAdjustment(market, price))
	record(a.loyaltyAdjustment(customer, price))
	record(a.competitiveAdjustment(market, price))
	record(a.specialHandlingAdjustment(job))

	return visible, price
}

// demandAdjustment moves the price with the recent demand index: up when
// demand is running hot, down when it is slack.
func (a *Adjuster) demandAdjustment(market *model.MarketSnapshot, price float64) model.PriceAdjustment {
	index := 1.0
	if market != nil && market.DemandIndex > 0 {
		index = market.DemandIndex
	}
	delta := price * clamp((index-1)*0.25, -0.10, 0.15)
	return model.PriceAdjustment{
		Name:   "demand",
		Amount: round2(delta),
		Reason: fmt.Sprintf("demand index %.2f", index),
	}
}

// urgencyAdjustment applies the fixed tier table as a delta on the running
// price, not a replacement.
func (a *Adjuster) urgencyAdjustment(job *model.JobRequest, price float64) model.PriceAdjustment {
	mult, ok := a.params.UrgencyMultipliers[string(job.Urgency)]
	if !ok {
		mult = 1.0
	}
	return model.PriceAdjustment{
		Name:   "urgency",
		Amount: round2(price * (mult - 1)),
		Reason: fmt.Sprintf("urgency %s ×%.1f", job.Urgency, mult),
	}
}

// seasonalAdjustment applies the month-indexed factor at half strength.
func (a *Adjuster) seasonalAdjustment(market *model.MarketSnapshot, price float64) model.PriceAdjustment {
	factor := 1.0
	if market != nil && market.SeasonalFactor > 0 {
		factor = market.SeasonalFactor
	}
	return model.PriceAdjustment{
		Name:   "seasonal",
		Amount: round2(price * (factor - 1) * 0.5),
		Reason: fmt.Sprintf("seasonal factor %.2f at half strength", factor),
	}
}

// capacityAdjustment surcharges when fleet utilization crosses the threshold.
func (a *Adjuster) capacityAdjustment(market *model.MarketSnapshot, price float64) model.PriceAdjustment {
	util := 0.0
	if market != nil {
		util = market.CapacityUtilization
	}
	adj := model.PriceAdjustment{Name: "capacity", Reason: fmt.Sprintf("utilization %.2f", util)}
	if util > capacitySurchargeThreshold {
		adj.Amount = round2(price * 0.08)
	}
	return adj
}

// loyaltyAdjustment discounts high-lifetime-value customers.
func (a *Adjuster) loyaltyAdjustment(customer *model.CustomerProfile, price float64) model.PriceAdjustment {
	adj := model.PriceAdjustment{Name: "loyalty", Reason: "customer lifetime value"}
	if customer == nil {
		return adj
	}
	switch {
	case customer.LifetimeValue >= 25000:
		adj.Amount = round2(-price * 0.05)
	case customer.LifetimeValue >= 10000:
		adj.Amount = round2(-price * 0.03)
	}
	return adj
}

// competitiveAdjustment pulls the price toward the competitor average when it
// drifts more than 20% above or 15% below it. With no competitor data the
// adjustment is skipped, never fabricated.
func (a *Adjuster) competitiveAdjustment(market *model.MarketSnapshot, price float64) model.PriceAdjustment {
	adj := model.PriceAdjustment{Name: "competitive"}
	if market == nil || len(market.CompetitorPrices) == 0 {
		adj.Reason = "no competitor data, skipped"
		return adj
	}
	avg := mean(market.CompetitorPrices)
	adj.Reason = fmt.Sprintf("competitor average %.0f", avg)
	switch {
	case price > avg*competitiveHighBand:
		adj.Amount = round2(-(price - avg*competitiveHighBand) * 0.5)
	case price < avg*competitiveLowBand:
		adj.Amount = round2((avg*competitiveLowBand - price) * 0.5)
	}
	return adj
}

// specialHandlingAdjustment is a flat surcharge for fragile/valuable flags.
func (a *Adjuster) specialHandlingAdjustment(job *model.JobRequest) model.PriceAdjustment {
	adj := model.PriceAdjustment{Name: "special_handling", Reason: "fragile or valuable items"}
	if job.HasSpecialHandling("fragile", "valuable") {
		adj.Amount = specialHandlingSurcharge
	}
	return adj
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
