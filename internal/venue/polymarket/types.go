package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from JSON number or numeric string; Gamma sends
// volume/liquidity as strings on some endpoints.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Description   string    `json:"description"`
	Slug          string    `json:"slug"`
	Category      string    `json:"category"`
	Active        flexBool  `json:"active"`
	Closed        bool      `json:"closed"`
	Outcomes      string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	Volume        flexFloat `json:"volume"`
	Liquidity     flexFloat `json:"liquidity"`
	EndDate       string    `json:"endDate"`
}

// ToListing converts a Gamma market into the normalized listing shape.
// Outcome names and prices arrive as parallel JSON-encoded string arrays;
// a market whose arrays cannot be decoded or whose lengths disagree is
// rejected as malformed rather than half-normalized.
func (m *APIMarket) ToListing() (domain.Listing, error) {
	var names []string
	if err := json.Unmarshal([]byte(m.Outcomes), &names); err != nil {
		return domain.Listing{}, domain.ErrInvalidListing
	}
	var priceStrs []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &priceStrs); err != nil {
		return domain.Listing{}, domain.ErrInvalidListing
	}
	if len(names) == 0 || len(names) != len(priceStrs) {
		return domain.Listing{}, domain.ErrInvalidListing
	}

	outcomes := make([]domain.Outcome, 0, len(names))
	for i, name := range names {
		p, err := strconv.ParseFloat(priceStrs[i], 64)
		if err != nil {
			return domain.Listing{}, domain.ErrInvalidListing
		}
		outcomes = append(outcomes, domain.Outcome{
			Name:  name,
			Price: domain.ClampPrice(p),
		})
	}

	var closeTime time.Time
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		closeTime = t
	}

	return domain.Listing{
		ID:          m.ID,
		Venue:       domain.VenuePolymarket,
		Title:       m.Question,
		Description: m.Description,
		Category:    m.Category,
		Outcomes:    outcomes,
		Volume:      float64(m.Volume),
		Liquidity:   float64(m.Liquidity),
		CloseTime:   closeTime,
		IsActive:    bool(m.Active) && !m.Closed,
	}, nil
}
