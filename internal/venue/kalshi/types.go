package kalshi

import (
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// APIMarket represents a market as returned by the Kalshi REST API.
type APIMarket struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Status         string  `json:"status"` // "open", "closed", "settled"
	YesBid         float64 `json:"yes_bid"`
	YesAsk         float64 `json:"yes_ask"`
	NoBid          float64 `json:"no_bid"`
	NoAsk          float64 `json:"no_ask"`
	LastPrice      float64 `json:"last_price"`
	Volume         int64   `json:"volume"`
	Volume24H      int64   `json:"volume_24h"`
	OpenInterest   int64   `json:"open_interest"`
	Liquidity      float64 `json:"liquidity"`
	Category       string  `json:"category"`
	CloseTime      string  `json:"close_time"`
	ExpirationTime string  `json:"expiration_time"`
}

// KalshiErrorResponse is the error envelope returned on non-2xx responses.
type KalshiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// normalizeProb converts a Kalshi price to a 0..1 probability. API prices are
// always integer cents (0..100), so the division is unconditional; a 1-cent
// longshot quote must come out as 0.01, not 1.0.
func normalizeProb(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return domain.ClampPrice(v / 100.0)
}

// midProb returns the bid/ask midpoint as a probability, falling back to
// whichever side is quoted.
func midProb(bid, ask float64) float64 {
	b, a := normalizeProb(bid), normalizeProb(ask)
	switch {
	case b > 0 && a > 0:
		return (b + a) / 2
	case a > 0:
		return a
	default:
		return b
	}
}

// ToListing converts a Kalshi market into the normalized listing shape.
// Every Kalshi market is binary, so the outcomes are always a yes/no pair;
// the no price falls back to the yes complement when the no book is empty.
func (m *APIMarket) ToListing() domain.Listing {
	yes := midProb(m.YesBid, m.YesAsk)
	if yes == 0 && m.LastPrice > 0 {
		yes = normalizeProb(m.LastPrice)
	}
	no := midProb(m.NoBid, m.NoAsk)
	if no == 0 {
		no = domain.ClampPrice(1 - yes)
	}

	var closeTime time.Time
	if t, err := time.Parse(time.RFC3339, m.CloseTime); err == nil {
		closeTime = t
	} else if t, err := time.Parse(time.RFC3339, m.ExpirationTime); err == nil {
		closeTime = t
	}

	title := m.Title
	if m.Subtitle != "" {
		title += " " + m.Subtitle
	}

	return domain.Listing{
		ID:       m.Ticker,
		Venue:    domain.VenueKalshi,
		Title:    title,
		Category: m.Category,
		Outcomes: []domain.Outcome{
			{Name: "Yes", Price: yes},
			{Name: "No", Price: no},
		},
		Volume:    float64(m.Volume24H),
		Liquidity: m.Liquidity,
		CloseTime: closeTime,
		IsActive:  m.Status == "open",
	}
}
