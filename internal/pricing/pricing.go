// Package pricing derives a quote from routing output and the market
// snapshot: deterministic base price, named adjustments, a bounded search
// over candidate multipliers, and psychological rounding.
package pricing

import (
	"errors"
	"log/slog"
	"math"
	"time"
)

// ErrStaleQuote marks a quote used after its validity window. Callers must
// re-request; quotes are never refreshed in place.
var ErrStaleQuote = errors.New("quote expired")

// ErrIncompleteMarketData is a degraded-mode signal, not a failure: the
// competitive adjustment and the competitive objective term are skipped when
// no competitor prices are available.
var ErrIncompleteMarketData = errors.New("incomplete market data")

// Params are the pricing knobs. All have config-backed defaults; none are
// tuned per request.
type Params struct {
	VolumeRate        float64
	DistanceRate      float64
	HourlyRate        float64
	FloorPenalty      float64
	ParkingFreeM      float64
	ParkingRatePer10M float64

	UrgencyMultipliers map[string]float64

	SearchLow  float64
	SearchHigh float64
	SearchStep float64

	RevenueWeight     float64
	ConversionWeight  float64
	MarginWeight      float64
	CompetitiveWeight float64

	DiscountCapPct float64
	TaxRate        float64
	Validity       time.Duration
}

// DefaultUrgencyMultipliers is the fixed urgency table. Applied as a delta
// on the running price, not a replacement.
func DefaultUrgencyMultipliers() map[string]float64 {
	return map[string]float64{
		"critical": 2.0,
		"high":     1.5,
		"normal":   1.0,
		"low":      0.9,
	}
}

// Adjuster computes quotes. Stateless; safe for concurrent use.
type Adjuster struct {
	params Params
	logger *slog.Logger
}

func NewAdjuster(params Params, logger *slog.Logger) *Adjuster {
	if params.UrgencyMultipliers == nil {
		params.UrgencyMultipliers = DefaultUrgencyMultipliers()
	}
	if params.SearchStep <= 0 {
		params.SearchLow, params.SearchHigh, params.SearchStep = 0.85, 1.15, 0.05
	}
	if params.Validity <= 0 {
		params.Validity = 7 * 24 * time.Hour
	}
	return &Adjuster{params: params, logger: logger}
}

// roundPsychological rounds down to the nearest hundred minus 5 when the
// remainder is under 50, otherwise up to the nearest hundred plus 95.
func roundPsychological(price float64) float64 {
	hundreds := math.Floor(price / 100)
	remainder := price - hundreds*100
	var out float64
	if remainder < 50 {
		out = hundreds*100 - 5
	} else {
		out = hundreds*100 + 95
	}
	if out < 95 {
		out = 95
	}
	return out
}

// halfHours rounds labor hours to the nearest half hour.
func halfHours(h float64) float64 {
	return math.Round(h*2) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
