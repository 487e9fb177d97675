package domain

import (
	"strings"
	"time"
)

// Venue identifies a prediction-market platform.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// CategoryOther is assigned to listings whose venue reports no category.
const CategoryOther = "other"

// Outcome is one side of a listing with its venue-quoted price (probability 0..1).
type Outcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Listing is a single tradeable market on one venue, normalized to a common
// shape. IDs are venue-scoped; use Ref() for a globally unique key. The core
// treats each ingestion pass's listings as immutable snapshots.
type Listing struct {
	ID          string    `json:"id"`
	Venue       Venue     `json:"venue"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Outcomes    []Outcome `json:"outcomes"`
	Volume      float64   `json:"volume"`
	Liquidity   float64   `json:"liquidity"`
	CloseTime   time.Time `json:"close_time"`
	IsActive    bool      `json:"is_active"`
}

// ListingRef is the globally unique key "venue:id" for a listing.
type ListingRef string

// Ref returns the listing's globally unique reference.
func (l Listing) Ref() ListingRef {
	return ListingRef(string(l.Venue) + ":" + l.ID)
}

// NormalizedCategory returns the lowercased category, or CategoryOther when
// the venue reported none.
func (l Listing) NormalizedCategory() string {
	c := strings.ToLower(strings.TrimSpace(l.Category))
	if c == "" {
		return CategoryOther
	}
	return c
}

// NormalizeOutcomeName lowercases and trims an outcome name so outcome
// matching is by meaning, not venue spelling.
func NormalizeOutcomeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsBinary reports whether the listing has exactly two outcomes whose names
// normalize to a yes/no pair. Arbitrage is only computed for binary listings.
func (l Listing) IsBinary() bool {
	if len(l.Outcomes) != 2 {
		return false
	}
	a := NormalizeOutcomeName(l.Outcomes[0].Name)
	b := NormalizeOutcomeName(l.Outcomes[1].Name)
	return (a == "yes" && b == "no") || (a == "no" && b == "yes")
}

// OutcomePrice returns the price of the outcome with the given normalized
// name. The second return is false when the listing has no such outcome.
func (l Listing) OutcomePrice(normalized string) (float64, bool) {
	for _, o := range l.Outcomes {
		if NormalizeOutcomeName(o.Name) == normalized {
			return o.Price, true
		}
	}
	return 0, false
}

// YesPrice returns the price of the primary ("yes") outcome. For non-binary
// listings it falls back to the first outcome's price.
func (l Listing) YesPrice() float64 {
	if p, ok := l.OutcomePrice("yes"); ok {
		return p
	}
	if len(l.Outcomes) > 0 {
		return l.Outcomes[0].Price
	}
	return 0
}

// ClampPrice bounds a venue-quoted price to the valid probability range.
func ClampPrice(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
