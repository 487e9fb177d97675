package domain

// CandidatePair is an unscored cross-venue listing pair produced by the
// candidate generator. Transient: produced and consumed within one pipeline
// pass, never persisted.
type CandidatePair struct {
	A Listing
	B Listing
}

// EquivalenceVerdict is the scored judgment of whether two listings represent
// the same real-world event.
type EquivalenceVerdict struct {
	Confidence   float64 `json:"confidence"`
	IsEquivalent bool    `json:"is_equivalent"`
	Reasoning    string  `json:"reasoning"`
	// Degraded marks a verdict produced by a scorer failure rather than an
	// actual judgment. Degraded verdicts are safe defaults, not opinions, and
	// should not be cached.
	Degraded bool `json:"degraded,omitempty"`
}
