package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// heuristicEquivalenceThreshold is the confidence at or above which the
// heuristic scorer declares a pair equivalent.
const heuristicEquivalenceThreshold = 0.70

// maxEditDistance is the title edit distance still considered a near-exact match.
const maxEditDistance = 3

// HeuristicScorer is the default cheap, deterministic equivalence scorer. It
// ranks pairs into fixed confidence tiers from title and category similarity.
type HeuristicScorer struct{}

// NewHeuristicScorer creates a HeuristicScorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Name returns the scorer identifier.
func (h *HeuristicScorer) Name() string { return "heuristic" }

// Score assigns a confidence tier to the pair. It is pure and never fails.
func (h *HeuristicScorer) Score(_ context.Context, pair domain.CandidatePair) domain.EquivalenceVerdict {
	titleA := strings.ToLower(strings.TrimSpace(pair.A.Title))
	titleB := strings.ToLower(strings.TrimSpace(pair.B.Title))
	sameCategory := pair.A.NormalizedCategory() == pair.B.NormalizedCategory()

	var confidence float64
	var reasoning string
	switch {
	case titleA == titleB:
		confidence = 0.95
		reasoning = "exact title match"
	case editDistance(titleA, titleB) <= maxEditDistance:
		confidence = 0.90
		reasoning = fmt.Sprintf("titles within edit distance %d", maxEditDistance)
	case sameCategory && sharesLeadingToken(pair.A.Title, pair.B.Title):
		confidence = 0.80
		reasoning = "same category, shared leading title token"
	case sameCategory:
		confidence = 0.70
		reasoning = "same category"
	default:
		confidence = 0.50
		reasoning = "no strong similarity signal"
	}

	return domain.EquivalenceVerdict{
		Confidence:   confidence,
		IsEquivalent: confidence >= heuristicEquivalenceThreshold,
		Reasoning:    reasoning,
	}
}

// sharesLeadingToken reports whether any of the first two tokens of one title
// appears among the first two tokens of the other.
func sharesLeadingToken(titleA, titleB string) bool {
	la, lb := leadingTokens(titleA), leadingTokens(titleB)
	for _, a := range la {
		for _, b := range lb {
			if a == b {
				return true
			}
		}
	}
	return false
}

// editDistance computes the Levenshtein distance between two strings using
// two rolling rows, O(len(b)) space.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Compile-time interface check.
var _ Scorer = (*HeuristicScorer)(nil)
