// Package pricing computes the recommended price for a ride offer from its
// distance and departure date and time.
package pricing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkordes/ridepost/internal/domain"
)

const (
	peakMultiplier    = 1.15
	weekendMultiplier = 1.10

	// atRecommendationPct is the band, in whole percent, inside which a
	// chosen price counts as matching the recommendation.
	atRecommendationPct = 5
)

// Engine produces price quotes. The zero value is not usable; use New.
type Engine struct {
	loc      *time.Location
	currency string
}

// New returns an Engine that evaluates weekday and peak hours in loc.
// A nil loc means UTC.
func New(loc *time.Location, currency string) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc, currency: currency}
}

// Quote prices a trip of distanceMeters departing on date at clock.
// Only the calendar day of date is used.
func (e *Engine) Quote(distanceMeters int, date time.Time, clock domain.Clock) (domain.PriceQuote, error) {
	if distanceMeters < 0 {
		return domain.PriceQuote{}, fmt.Errorf("%w: distance must not be negative", domain.ErrValidation)
	}
	if !clock.Valid() {
		return domain.PriceQuote{}, fmt.Errorf("%w: invalid departure time", domain.ErrValidation)
	}

	base := BasePrice(float64(distanceMeters) / 1000)
	departure := clock.On(date, e.loc)

	multiplier := 1.0
	if isPeakHour(departure.Hour()) {
		multiplier *= peakMultiplier
	}
	if isWeekend(departure.Weekday()) {
		multiplier *= weekendMultiplier
	}

	recommended := round(float64(base) * multiplier)
	return domain.PriceQuote{
		Recommended:   recommended,
		Min:           round(float64(recommended) * 0.8),
		Max:           round(float64(recommended) * 1.2),
		PopularPrices: popularPrices(recommended),
		Currency:      e.currency,
	}, nil
}

// BasePrice returns the tiered distance price for km kilometres:
// 2.5 per km up to 50 km, 2.0 per km up to 100 km, 1.5 per km beyond.
// Each tier starts where the previous one ends, so the result never
// decreases as km grows.
func BasePrice(km float64) int {
	switch {
	case km <= 50:
		return round(km * 2.5)
	case km <= 100:
		return round(125 + (km-50)*2.0)
	default:
		return round(225 + (km-100)*1.5)
	}
}

// Compare classifies price against the quote's recommendation.
func Compare(price int, quote domain.PriceQuote) domain.PriceComparison {
	if quote.Recommended <= 0 {
		return domain.PriceComparison{Kind: domain.ComparisonAt}
	}
	diff := round(float64(price-quote.Recommended) / float64(quote.Recommended) * 100)
	switch {
	case abs(diff) < atRecommendationPct:
		return domain.PriceComparison{Kind: domain.ComparisonAt, Percent: abs(diff)}
	case diff > 0:
		return domain.PriceComparison{Kind: domain.ComparisonAbove, Percent: diff}
	default:
		return domain.PriceComparison{Kind: domain.ComparisonBelow, Percent: -diff}
	}
}

// popularPrices returns the recommendation, its 90/110/120 percent points
// and, above 100, the closest multiples of ten strictly below and above it.
// Sorted, deduplicated.
func popularPrices(recommended int) []int {
	r := float64(recommended)
	candidates := []int{
		recommended,
		round(r * 0.9),
		round(r * 1.1),
		round(r * 1.2),
	}
	if recommended > 100 {
		// Strict neighbours: 200 offers 190 and 210, 209 offers 200 and 210.
		candidates = append(candidates,
			(recommended-1)/10*10,
			recommended/10*10+10,
		)
	}

	sort.Ints(candidates)
	out := candidates[:0]
	for _, p := range candidates {
		if len(out) == 0 || p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

// isPeakHour covers the morning (07:00–09:59) and evening (16:00–19:59) rush.
func isPeakHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 19)
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func round(f float64) int {
	return int(math.Round(f))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
