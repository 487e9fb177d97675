package kalshi

import (
	"math"
	"testing"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestToListing(t *testing.T) {
	m := APIMarket{
		Ticker:    "FED-26MAR-C4.50",
		Title:     "Fed funds rate above 4.5%",
		Subtitle:  "at the March meeting",
		Status:    "open",
		YesBid:    40,
		YesAsk:    44,
		NoBid:     56,
		NoAsk:     60,
		Volume24H: 15000,
		Liquidity: 80000,
		Category:  "Economics",
		CloseTime: "2026-03-18T18:00:00Z",
	}

	l := m.ToListing()

	if l.Venue != domain.VenueKalshi || l.ID != "FED-26MAR-C4.50" {
		t.Errorf("identity = %s/%s", l.Venue, l.ID)
	}
	if l.Title != "Fed funds rate above 4.5% at the March meeting" {
		t.Errorf("Title = %q", l.Title)
	}
	if !l.IsActive {
		t.Error("open market reported inactive")
	}
	if !l.IsBinary() {
		t.Errorf("IsBinary() = false, outcomes %+v", l.Outcomes)
	}

	// Cent quotes normalize to probabilities: mid of 0.40/0.44 is 0.42.
	if p, _ := l.OutcomePrice("yes"); !approx(p, 0.42) {
		t.Errorf("yes price = %v, want 0.42", p)
	}
	if p, _ := l.OutcomePrice("no"); !approx(p, 0.58) {
		t.Errorf("no price = %v, want 0.58", p)
	}
	if l.Volume != 15000 {
		t.Errorf("Volume = %v, want trailing 24h volume", l.Volume)
	}
	if l.CloseTime.IsZero() {
		t.Error("CloseTime not parsed")
	}
}

func TestToListingFallbacks(t *testing.T) {
	// Empty yes book falls back to last price; empty no book falls back to
	// the yes complement.
	m := APIMarket{
		Ticker:    "X",
		Status:    "open",
		LastPrice: 35,
	}
	l := m.ToListing()

	yes, _ := l.OutcomePrice("yes")
	no, _ := l.OutcomePrice("no")
	if !approx(yes, 0.35) {
		t.Errorf("yes price = %v, want last price 0.35", yes)
	}
	if !approx(no, 0.65) {
		t.Errorf("no price = %v, want complement 0.65", no)
	}
}

func TestToListingLongshotCents(t *testing.T) {
	// Single-digit cent quotes are still cents. Reading 1 as probability 1.0
	// would manufacture a huge phantom spread against the other venue.
	m := APIMarket{
		Ticker: "LONGSHOT",
		Status: "open",
		YesBid: 1,
		YesAsk: 3,
	}
	l := m.ToListing()

	yes, _ := l.OutcomePrice("yes")
	no, _ := l.OutcomePrice("no")
	if !approx(yes, 0.02) {
		t.Errorf("yes price = %v, want 0.02 for a 1/3 cent book", yes)
	}
	if !approx(no, 0.98) {
		t.Errorf("no price = %v, want complement 0.98", no)
	}
}

func TestToListingStatus(t *testing.T) {
	for _, status := range []string{"closed", "settled", ""} {
		m := APIMarket{Ticker: "X", Status: status}
		if m.ToListing().IsActive {
			t.Errorf("status %q reported active", status)
		}
	}
}

func TestNormalizeProb(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{-5, 0},
		{1, 0.01}, // 1-cent longshot, not certainty
		{42, 0.42},
		{100, 1},
		{250, 1}, // clamped after cent conversion
	}
	for _, tt := range tests {
		if got := normalizeProb(tt.in); got != tt.want {
			t.Errorf("normalizeProb(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMidProb(t *testing.T) {
	if got := midProb(40, 44); !approx(got, 0.42) {
		t.Errorf("midProb(40,44) = %v, want 0.42", got)
	}
	if got := midProb(0, 44); !approx(got, 0.44) {
		t.Errorf("midProb(0,44) = %v, want ask side", got)
	}
	if got := midProb(40, 0); !approx(got, 0.40) {
		t.Errorf("midProb(40,0) = %v, want bid side", got)
	}
	if got := midProb(0, 0); got != 0 {
		t.Errorf("midProb(0,0) = %v, want 0", got)
	}
}
