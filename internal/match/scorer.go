package match

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// Scorer judges whether a candidate pair represents the same real-world
// event. Implementations must never fail the batch: any internal error
// (transport, malformed response) degrades to a zero-confidence,
// non-equivalent verdict whose Reasoning carries the diagnostic.
type Scorer interface {
	Name() string
	Score(ctx context.Context, pair domain.CandidatePair) domain.EquivalenceVerdict
}

// Fingerprint returns a stable cache key for a pair under a given scorer.
// It covers both titles so a reworded listing is re-scored.
func Fingerprint(scorer string, pair domain.CandidatePair) string {
	h := sha256.New()
	h.Write([]byte(scorer))
	h.Write([]byte{0})
	h.Write([]byte(pair.A.Ref()))
	h.Write([]byte{0})
	h.Write([]byte(pair.B.Ref()))
	h.Write([]byte{0})
	h.Write([]byte(pair.A.Title))
	h.Write([]byte{0})
	h.Write([]byte(pair.B.Title))
	return hex.EncodeToString(h.Sum(nil))
}
