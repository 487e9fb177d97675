// Package match selects cross-venue listing pairs worth scoring and judges
// whether a pair represents the same real-world event.
package match

import (
	"math"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// GeneratorConfig holds the candidate admission thresholds.
type GeneratorConfig struct {
	// PriceGapThreshold admits a pair when the absolute difference of the two
	// yes-prices exceeds it. A large unpriced gap is itself evidence of a
	// possible unrecognized equivalence.
	PriceGapThreshold float64
	// ExtraKeywords extends the built-in high-signal vocabulary.
	ExtraKeywords []string
}

// Generator produces cross-venue candidate pairs using cheap pre-filters so
// the scorer never sees the full O(n*m) cross product. The filters are
// disjunctive and deliberately over-admit: a missed candidate can never be
// recovered downstream, while a wasted score call is only a cost.
type Generator struct {
	gapThreshold float64
	vocabulary   map[string]bool
}

// NewGenerator creates a Generator with the given thresholds.
func NewGenerator(cfg GeneratorConfig) *Generator {
	vocab := make(map[string]bool, len(highSignalKeywords)+len(cfg.ExtraKeywords))
	for _, kw := range highSignalKeywords {
		vocab[kw] = true
	}
	for _, kw := range cfg.ExtraKeywords {
		if t := domain.NormalizeOutcomeName(kw); t != "" {
			vocab[t] = true
		}
	}
	return &Generator{
		gapThreshold: cfg.PriceGapThreshold,
		vocabulary:   vocab,
	}
}

// Pairs returns a lazy, finite, single-pass stream of admitted cross-venue
// pairs over the given active listings. Inactive listings are skipped.
func (g *Generator) Pairs(listings []domain.Listing) *PairStream {
	byVenue := make(map[domain.Venue][]indexedListing)
	var venues []domain.Venue
	for _, l := range listings {
		if !l.IsActive {
			continue
		}
		if _, ok := byVenue[l.Venue]; !ok {
			venues = append(venues, l.Venue)
		}
		byVenue[l.Venue] = append(byVenue[l.Venue], newIndexed(l))
	}

	buckets := make([][]indexedListing, 0, len(venues))
	for _, v := range venues {
		buckets = append(buckets, byVenue[v])
	}
	return &PairStream{gen: g, buckets: buckets}
}

// indexedListing caches the per-listing features the admission filters need so
// they are computed once per listing, not once per pair.
type indexedListing struct {
	listing  domain.Listing
	category string
	tokens   map[string]bool
	yesPrice float64
}

func newIndexed(l domain.Listing) indexedListing {
	return indexedListing{
		listing:  l,
		category: l.NormalizedCategory(),
		tokens:   tokenize(l.Title),
		yesPrice: l.YesPrice(),
	}
}

// admit applies the three disjunctive filters.
func (g *Generator) admit(a, b indexedListing) bool {
	// Same normalized category. "other" never matches on category alone,
	// so uncategorized listings can only pair via keyword or price gap.
	if a.category == b.category && a.category != domain.CategoryOther {
		return true
	}

	// Shared high-signal keyword in both titles.
	for tok := range a.tokens {
		if g.vocabulary[tok] && b.tokens[tok] {
			return true
		}
	}

	// Yes-price divergence above threshold.
	if g.gapThreshold > 0 && math.Abs(a.yesPrice-b.yesPrice) > g.gapThreshold {
		return true
	}

	return false
}

// PairStream is a non-restartable iterator over admitted candidate pairs. It
// walks every unordered pair of venue buckets and, within a bucket pair, the
// full cross product, emitting only pairs that pass admission.
type PairStream struct {
	gen     *Generator
	buckets [][]indexedListing
	vi, vj  int // venue bucket pair, vi < vj
	i, j    int // positions within buckets vi and vj
	started bool
}

// Next returns the next admitted candidate pair. The second return is false
// once the stream is exhausted.
func (s *PairStream) Next() (domain.CandidatePair, bool) {
	if !s.started {
		s.started = true
		s.vj = s.vi + 1
	}
	for s.vi < len(s.buckets)-1 {
		for s.vj < len(s.buckets) {
			ba, bb := s.buckets[s.vi], s.buckets[s.vj]
			for s.i < len(ba) {
				for s.j < len(bb) {
					a, b := ba[s.i], bb[s.j]
					s.j++
					if s.gen.admit(a, b) {
						return domain.CandidatePair{A: a.listing, B: b.listing}, true
					}
				}
				s.j = 0
				s.i++
			}
			s.i = 0
			s.vj++
		}
		s.vi++
		s.vj = s.vi + 1
	}
	return domain.CandidatePair{}, false
}
