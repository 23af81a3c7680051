package pricing

import (
	"context"
	"math"
	"sort"

	"github.com/relocore/dispatch/internal/model"
)

// costFloorRatio estimates the cost floor as a fraction of the adjusted
// price, used for the margin term.
const costFloorRatio = 0.65

// CandidateEval is one grid point of the bounded price search.
type CandidateEval struct {
	Multiplier  float64 `json:"multiplier"`
	Price       float64 `json:"price"`
	Conversion  float64 `json:"conversion"`
	Revenue     float64 `json:"revenue"`
	Margin      float64 `json:"margin"`
	Competitive float64 `json:"competitive"`
	Combined    float64 `json:"combined"`
}

// optimize evaluates a fixed grid of multipliers around the adjusted price
// and keeps the candidate with the highest weighted objective. Ties keep the
// lower multiplier for determinism. The grid is embarrassingly parallel but
// small (7 points by default), so a simple loop wins; the caller's deadline
// still bounds the search.
func (a *Adjuster) optimize(ctx context.Context, adjusted float64, market *model.MarketSnapshot, customer *model.CustomerProfile) (float64, []CandidateEval) {
	elasticity := deriveElasticity(market, customer)
	compAvg := 0.0
	haveMarket := market != nil && len(market.CompetitorPrices) > 0
	if haveMarket {
		compAvg = mean(market.CompetitorPrices)
	}
	costFloor := adjusted * costFloorRatio

	var evals []CandidateEval
	best := CandidateEval{Multiplier: 1, Price: adjusted, Combined: -1}
	for m := a.params.SearchLow; m <= a.params.SearchHigh+1e-9; m += a.params.SearchStep {
		if ctx.Err() != nil {
			// Deadline hit mid-search: keep the best candidate seen so far
			// rather than failing the whole pipeline.
			break
		}
		price := adjusted * m

		ratio := m
		if haveMarket && compAvg > 0 {
			ratio = price / compAvg
		}
		conversion := clamp(logistic(ratio, elasticity), 0.05, 0.95)
		revenue := price * conversion / adjusted // normalized expected revenue
		margin := clamp((price-costFloor)/price, 0, 1)

		combined := a.params.RevenueWeight*revenue +
			a.params.ConversionWeight*conversion +
			a.params.MarginWeight*margin

		competitive := 0.0
		if haveMarket {
			competitive = competitivePosition(price, market.CompetitorPrices)
			combined += a.params.CompetitiveWeight * competitive
		}

		eval := CandidateEval{
			Multiplier:  m,
			Price:       price,
			Conversion:  conversion,
			Revenue:     revenue,
			Margin:      margin,
			Competitive: competitive,
			Combined:    combined,
		}
		evals = append(evals, eval)
		if eval.Combined > best.Combined {
			best = eval
		}
	}
	return best.Price, evals
}

// logistic maps a price-vs-competitor ratio to conversion probability.
// ratio 1.0 gives 0.5; higher prices convert less, scaled by elasticity.
func logistic(ratio, elasticity float64) float64 {
	return 1 / (1 + math.Exp(elasticity*8*(ratio-1)))
}

// deriveElasticity blends the segment baseline with market conditions: hot
// demand makes customers less price sensitive.
func deriveElasticity(market *model.MarketSnapshot, customer *model.CustomerProfile) float64 {
	e := 1.5
	if customer != nil {
		switch customer.Segment {
		case model.SegmentVIP:
			e = 0.8
		case model.SegmentEnterprise:
			e = 1.0
		}
	}
	if market != nil && market.DemandIndex > 1.2 {
		e *= 0.8
	}
	return e
}

// competitivePosition scores the percentile of a price among competitor
// prices, rewarding a 30th–50th percentile position.
func competitivePosition(price float64, competitors []float64) float64 {
	sorted := append([]float64(nil), competitors...)
	sort.Float64s(sorted)
	below := 0
	for _, c := range sorted {
		if c < price {
			below++
		}
	}
	pct := float64(below) / float64(len(sorted))
	if pct >= 0.3 && pct <= 0.5 {
		return 1
	}
	return clamp(1-math.Abs(pct-0.4)/0.4, 0, 1)
}
