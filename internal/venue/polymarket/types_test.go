package polymarket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

func TestAPIMarketToListing(t *testing.T) {
	raw := `{
		"id": "0xabc",
		"question": "Will Bitcoin reach $100k in 2026?",
		"description": "Resolves YES if BTC trades at or above $100,000.",
		"category": "Crypto",
		"active": "true",
		"closed": false,
		"outcomes": "[\"Yes\", \"No\"]",
		"outcomePrices": "[\"0.42\", \"0.58\"]",
		"volume": "123456.78",
		"liquidity": 9000.5,
		"endDate": "2026-12-31T23:59:59Z"
	}`

	var m APIMarket
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	l, err := m.ToListing()
	if err != nil {
		t.Fatalf("ToListing: %v", err)
	}

	if l.Venue != domain.VenuePolymarket || l.ID != "0xabc" {
		t.Errorf("identity = %s/%s", l.Venue, l.ID)
	}
	if !l.IsActive {
		t.Error("IsActive = false, want true")
	}
	if !l.IsBinary() {
		t.Errorf("IsBinary() = false, outcomes %+v", l.Outcomes)
	}
	if p, _ := l.OutcomePrice("yes"); p != 0.42 {
		t.Errorf("yes price = %v, want 0.42", p)
	}
	if l.Volume != 123456.78 {
		t.Errorf("Volume = %v, want 123456.78 (string-encoded)", l.Volume)
	}
	if l.CloseTime.IsZero() {
		t.Error("CloseTime not parsed")
	}
}

func TestAPIMarketClosedIsInactive(t *testing.T) {
	m := APIMarket{
		ID:            "1",
		Active:        true,
		Closed:        true,
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.5","0.5"]`,
	}
	l, err := m.ToListing()
	if err != nil {
		t.Fatalf("ToListing: %v", err)
	}
	if l.IsActive {
		t.Error("closed market reported active")
	}
}

func TestAPIMarketPriceClamping(t *testing.T) {
	m := APIMarket{
		ID:            "1",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["1.25","-0.1"]`,
	}
	l, err := m.ToListing()
	if err != nil {
		t.Fatalf("ToListing: %v", err)
	}
	if p, _ := l.OutcomePrice("yes"); p != 1 {
		t.Errorf("yes price = %v, want clamped 1", p)
	}
	if p, _ := l.OutcomePrice("no"); p != 0 {
		t.Errorf("no price = %v, want clamped 0", p)
	}
}

func TestAPIMarketMalformed(t *testing.T) {
	tests := []struct {
		name   string
		market APIMarket
	}{
		{"undecodable outcomes", APIMarket{Outcomes: `not json`, OutcomePrices: `["0.5"]`}},
		{"undecodable prices", APIMarket{Outcomes: `["Yes"]`, OutcomePrices: `oops`}},
		{"length mismatch", APIMarket{Outcomes: `["Yes","No"]`, OutcomePrices: `["0.5"]`}},
		{"empty arrays", APIMarket{Outcomes: `[]`, OutcomePrices: `[]`}},
		{"non-numeric price", APIMarket{Outcomes: `["Yes"]`, OutcomePrices: `["cheap"]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.market.ToListing(); !errors.Is(err, domain.ErrInvalidListing) {
				t.Errorf("ToListing() error = %v, want ErrInvalidListing", err)
			}
		})
	}
}

func TestFlexFieldsAcceptBothEncodings(t *testing.T) {
	var m APIMarket
	raw := `{"active": true, "volume": 42}`
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal bool/number: %v", err)
	}
	if !bool(m.Active) || float64(m.Volume) != 42 {
		t.Errorf("active=%v volume=%v", m.Active, m.Volume)
	}

	var m2 APIMarket
	raw = `{"active": "false", "volume": ""}`
	if err := json.Unmarshal([]byte(raw), &m2); err != nil {
		t.Fatalf("unmarshal string forms: %v", err)
	}
	if bool(m2.Active) || float64(m2.Volume) != 0 {
		t.Errorf("active=%v volume=%v", m2.Active, m2.Volume)
	}
}
