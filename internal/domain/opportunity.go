package domain

import "time"

// OpportunityKind distinguishes the two margin formulas. Same-side compares
// one outcome priced differently across venues; complementary buys "yes" on
// one venue and "no" on the other when the prices sum below certainty.
type OpportunityKind string

const (
	OpportunitySameSide      OpportunityKind = "same_side"
	OpportunityComplementary OpportunityKind = "complementary"
)

// OpportunityStatus is the lifecycle state of a stored opportunity.
type OpportunityStatus string

const (
	OpportunityActive  OpportunityStatus = "active"
	OpportunityExpired OpportunityStatus = "expired"
)

// ArbitrageOpportunity is a derived, time-bounded profit claim between two
// equivalent listings on different venues.
//
// For the same_side kind, BuyPrice < SellPrice and
// ProfitMargin = (SellPrice - BuyPrice) / BuyPrice.
// For the complementary kind, BuyPrice and SellPrice are the yes and no leg
// prices, BuyPrice + SellPrice < 1, and ProfitMargin = 1 - (BuyPrice + SellPrice).
type ArbitrageOpportunity struct {
	ID            string
	GroupID       string
	Kind          OpportunityKind
	BuyListingID  ListingRef
	SellListingID ListingRef
	BuyOutcome    string
	SellOutcome   string
	BuyPrice      float64
	SellPrice     float64
	ProfitMargin  float64
	Confidence    float64
	DetectedAt    time.Time
	ExpiresAt     time.Time
	Status        OpportunityStatus
}

// UpsertKey identifies the active record this opportunity refreshes. Two
// drafts with the same key describe the same trade and must collapse into one
// stored row.
type UpsertKey struct {
	GroupID       string
	BuyListingID  ListingRef
	SellListingID ListingRef
	BuyOutcome    string
}

// Key returns the opportunity's upsert identity.
func (o ArbitrageOpportunity) Key() UpsertKey {
	return UpsertKey{
		GroupID:       o.GroupID,
		BuyListingID:  o.BuyListingID,
		SellListingID: o.SellListingID,
		BuyOutcome:    o.BuyOutcome,
	}
}
