package domain

// PriceQuote is the pricing recommendation for a trip.
// Min and Max are always round(Recommended*0.8) and round(Recommended*1.2).
// PopularPrices is ascending and free of duplicates.
type PriceQuote struct {
	Recommended   int    `json:"recommended"`
	Min           int    `json:"min"`
	Max           int    `json:"max"`
	PopularPrices []int  `json:"popular_prices"`
	Currency      string `json:"currency,omitempty"`
}

// ComparisonKind classifies a chosen price against the recommendation.
type ComparisonKind string

const (
	ComparisonAt    ComparisonKind = "at"
	ComparisonAbove ComparisonKind = "above"
	ComparisonBelow ComparisonKind = "below"
)

// PriceComparison is advisory only and never blocks publishing.
// Percent is the absolute rounded difference from the recommendation.
type PriceComparison struct {
	Kind    ComparisonKind `json:"kind"`
	Percent int            `json:"percent"`
}
