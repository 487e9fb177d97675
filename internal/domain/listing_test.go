package domain

import "testing"

func TestRef(t *testing.T) {
	l := Listing{ID: "abc-123", Venue: VenueKalshi}
	if got := l.Ref(); got != "kalshi:abc-123" {
		t.Errorf("Ref() = %q, want %q", got, "kalshi:abc-123")
	}
}

func TestNormalizedCategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		want     string
	}{
		{"lowercased", "Politics", "politics"},
		{"trimmed", "  Crypto ", "crypto"},
		{"empty becomes other", "", CategoryOther},
		{"whitespace becomes other", "   ", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Listing{Category: tt.category}
			if got := l.NormalizedCategory(); got != tt.want {
				t.Errorf("NormalizedCategory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []Outcome
		want     bool
	}{
		{"yes no", []Outcome{{Name: "Yes"}, {Name: "No"}}, true},
		{"no yes", []Outcome{{Name: "no"}, {Name: "YES "}}, true},
		{"single outcome", []Outcome{{Name: "Yes"}}, false},
		{"three outcomes", []Outcome{{Name: "Yes"}, {Name: "No"}, {Name: "Maybe"}}, false},
		{"categorical", []Outcome{{Name: "Chiefs"}, {Name: "Eagles"}}, false},
		{"duplicate yes", []Outcome{{Name: "Yes"}, {Name: "Yes"}}, false},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Listing{Outcomes: tt.outcomes}
			if got := l.IsBinary(); got != tt.want {
				t.Errorf("IsBinary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutcomePrice(t *testing.T) {
	l := Listing{Outcomes: []Outcome{{Name: "Yes", Price: 0.42}, {Name: "No", Price: 0.58}}}

	if p, ok := l.OutcomePrice("yes"); !ok || p != 0.42 {
		t.Errorf("OutcomePrice(yes) = %v, %v, want 0.42, true", p, ok)
	}
	if p, ok := l.OutcomePrice("no"); !ok || p != 0.58 {
		t.Errorf("OutcomePrice(no) = %v, %v, want 0.58, true", p, ok)
	}
	if _, ok := l.OutcomePrice("maybe"); ok {
		t.Error("OutcomePrice(maybe) found, want miss")
	}
}

func TestYesPrice(t *testing.T) {
	binary := Listing{Outcomes: []Outcome{{Name: "No", Price: 0.7}, {Name: "Yes", Price: 0.3}}}
	if got := binary.YesPrice(); got != 0.3 {
		t.Errorf("YesPrice() = %v, want 0.3", got)
	}

	categorical := Listing{Outcomes: []Outcome{{Name: "Chiefs", Price: 0.6}, {Name: "Eagles", Price: 0.4}}}
	if got := categorical.YesPrice(); got != 0.6 {
		t.Errorf("YesPrice() fallback = %v, want first outcome 0.6", got)
	}

	empty := Listing{}
	if got := empty.YesPrice(); got != 0 {
		t.Errorf("YesPrice() on empty = %v, want 0", got)
	}
}

func TestClampPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.37, 0.37},
		{1, 1},
		{1.2, 1},
	}
	for _, tt := range tests {
		if got := ClampPrice(tt.in); got != tt.want {
			t.Errorf("ClampPrice(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
