package match

import (
	"context"
	"testing"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

func listing(venue domain.Venue, id, title, category string) domain.Listing {
	return domain.Listing{
		ID:       id,
		Venue:    venue,
		Title:    title,
		Category: category,
		IsActive: true,
		Outcomes: []domain.Outcome{{Name: "Yes", Price: 0.5}, {Name: "No", Price: 0.5}},
	}
}

func TestHeuristicScorerTiers(t *testing.T) {
	tests := []struct {
		name           string
		a, b           domain.Listing
		wantConfidence float64
		wantEquivalent bool
	}{
		{
			name:           "exact title match ignoring case",
			a:              listing(domain.VenuePolymarket, "1", "Will Bitcoin reach $100k?", "crypto"),
			b:              listing(domain.VenueKalshi, "2", "will bitcoin reach $100k?", ""),
			wantConfidence: 0.95,
			wantEquivalent: true,
		},
		{
			name:           "near match within edit distance",
			a:              listing(domain.VenuePolymarket, "1", "Will Bitcoin reach $100k?", ""),
			b:              listing(domain.VenueKalshi, "2", "Will Bitcoin reach $100k??", ""),
			wantConfidence: 0.90,
			wantEquivalent: true,
		},
		{
			name:           "same category shared leading token",
			a:              listing(domain.VenuePolymarket, "1", "Trump wins the 2028 election", "politics"),
			b:              listing(domain.VenueKalshi, "2", "Trump becomes president again", "Politics"),
			wantConfidence: 0.80,
			wantEquivalent: true,
		},
		{
			name:           "same category only",
			a:              listing(domain.VenuePolymarket, "1", "Fed cuts rates in March", "economics"),
			b:              listing(domain.VenueKalshi, "2", "CPI above 3% in Q2", "economics"),
			wantConfidence: 0.70,
			wantEquivalent: true,
		},
		{
			name:           "no signal",
			a:              listing(domain.VenuePolymarket, "1", "Fed cuts rates in March", "economics"),
			b:              listing(domain.VenueKalshi, "2", "Chiefs win the Superbowl", "sports"),
			wantConfidence: 0.50,
			wantEquivalent: false,
		},
	}

	scorer := NewHeuristicScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := scorer.Score(context.Background(), domain.CandidatePair{A: tt.a, B: tt.b})
			if v.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", v.Confidence, tt.wantConfidence)
			}
			if v.IsEquivalent != tt.wantEquivalent {
				t.Errorf("IsEquivalent = %v, want %v", v.IsEquivalent, tt.wantEquivalent)
			}
			if v.Reasoning == "" {
				t.Error("Reasoning is empty")
			}
		})
	}
}

func TestHeuristicScorerDeterministic(t *testing.T) {
	scorer := NewHeuristicScorer()
	pair := domain.CandidatePair{
		A: listing(domain.VenuePolymarket, "1", "Will the Fed cut rates?", "economics"),
		B: listing(domain.VenueKalshi, "2", "Fed rate cut by June", "economics"),
	}
	first := scorer.Score(context.Background(), pair)
	for range 10 {
		if got := scorer.Score(context.Background(), pair); got != first {
			t.Fatalf("Score not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"same", "same", 0},
		{"flaw", "lawn", 2},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFingerprintDistinguishesScorerAndTitles(t *testing.T) {
	a := listing(domain.VenuePolymarket, "1", "Title A", "")
	b := listing(domain.VenueKalshi, "2", "Title B", "")
	pair := domain.CandidatePair{A: a, B: b}

	if Fingerprint("heuristic", pair) == Fingerprint("oracle", pair) {
		t.Error("fingerprints for different scorers collide")
	}

	changed := pair
	changed.B.Title = "Title B updated"
	if Fingerprint("heuristic", pair) == Fingerprint("heuristic", changed) {
		t.Error("fingerprint did not change with title")
	}
}
