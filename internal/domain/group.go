package domain

import "time"

// Membership records one listing's membership in a group and the confidence
// at which it joined.
type Membership struct {
	Listing    ListingRef `json:"listing"`
	Confidence float64    `json:"confidence"`
	JoinedAt   time.Time  `json:"joined_at"`
}

// Group is an equivalence class of listings believed to represent the same
// real-world event across venues. Confidence is the verdict confidence that
// justified the group's most recent merge. A listing belongs to at most one
// group at a time.
type Group struct {
	ID          string       `json:"id"`
	Category    string       `json:"category"`
	Confidence  float64      `json:"confidence"`
	Memberships []Membership `json:"memberships"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Members returns the refs of all member listings.
func (g Group) Members() []ListingRef {
	refs := make([]ListingRef, 0, len(g.Memberships))
	for _, m := range g.Memberships {
		refs = append(refs, m.Listing)
	}
	return refs
}
