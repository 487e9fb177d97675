// Package arb derives arbitrage opportunities from price discrepancies
// between equivalent binary listings on different venues.
package arb

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// CalculatorConfig holds opportunity derivation thresholds.
type CalculatorConfig struct {
	// MinSameSideMargin is the minimum relative margin (sell-buy)/buy.
	MinSameSideMargin float64
	// MinComplementaryMargin is the minimum 1-(yes+no) margin.
	MinComplementaryMargin float64
	// MinVolume excludes listings whose trailing volume is below the floor;
	// a paper edge on an illiquid market is not executable.
	MinVolume float64
	// ExpiryWindow is how long an unrefreshed opportunity stays active.
	ExpiryWindow time.Duration
}

// Calculator computes opportunity drafts for a settled group. It is read-only
// over its inputs and safe to run per-group in parallel.
type Calculator struct {
	cfg    CalculatorConfig
	logger *slog.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator(cfg CalculatorConfig, logger *slog.Logger) *Calculator {
	return &Calculator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "arb_calculator")),
	}
}

// Opportunities evaluates every cross-venue pair of binary listings in the
// group and returns at most one draft per pair: the side/kind combination
// with the greatest profit margin that clears its threshold. Same-venue pairs
// carry no cross-venue spread and are skipped, as are non-binary and
// low-volume listings.
func (c *Calculator) Opportunities(g domain.Group, members []domain.Listing) []domain.ArbitrageOpportunity {
	eligible := make([]domain.Listing, 0, len(members))
	for _, l := range members {
		if !l.IsBinary() {
			continue
		}
		if l.Volume < c.cfg.MinVolume {
			continue
		}
		eligible = append(eligible, l)
	}

	now := time.Now().UTC()
	var out []domain.ArbitrageOpportunity
	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			if eligible[i].Venue == eligible[j].Venue {
				continue
			}
			if opp, ok := c.bestForPair(g, eligible[i], eligible[j], now); ok {
				out = append(out, opp)
			}
		}
	}
	return out
}

// legPrices holds a pair's clamped outcome prices. The normalizer already
// bounds prices to [0,1]; clamping again here keeps the margin math safe if
// an unvalidated listing ever slips through.
type legPrices struct {
	yesA, noA float64
	yesB, noB float64
}

func pairPrices(a, b domain.Listing) (legPrices, bool) {
	yesA, okYA := a.OutcomePrice("yes")
	noA, okNA := a.OutcomePrice("no")
	yesB, okYB := b.OutcomePrice("yes")
	noB, okNB := b.OutcomePrice("no")
	if !okYA || !okNA || !okYB || !okNB {
		return legPrices{}, false
	}
	return legPrices{
		yesA: domain.ClampPrice(yesA),
		noA:  domain.ClampPrice(noA),
		yesB: domain.ClampPrice(yesB),
		noB:  domain.ClampPrice(noB),
	}, true
}

// bestForPair evaluates both same-side matches (yes vs yes, no vs no) and
// both complementary matches (yes+no across venues) and keeps the single
// highest-margin candidate that clears its kind's threshold.
func (c *Calculator) bestForPair(g domain.Group, a, b domain.Listing, now time.Time) (domain.ArbitrageOpportunity, bool) {
	prices, ok := pairPrices(a, b)
	if !ok {
		return domain.ArbitrageOpportunity{}, false
	}

	var best domain.ArbitrageOpportunity
	var found bool

	consider := func(opp domain.ArbitrageOpportunity, minMargin float64) {
		if opp.ProfitMargin < minMargin || opp.ProfitMargin <= 0 {
			return
		}
		if !found || opp.ProfitMargin > best.ProfitMargin {
			best, found = opp, true
		}
	}

	if opp, ok := sameSide(a, b, "yes", prices.yesA, prices.yesB); ok {
		consider(opp, c.cfg.MinSameSideMargin)
	}
	if opp, ok := sameSide(a, b, "no", prices.noA, prices.noB); ok {
		consider(opp, c.cfg.MinSameSideMargin)
	}
	if opp, ok := complementary(a, b, prices.yesA, prices.noB); ok {
		consider(opp, c.cfg.MinComplementaryMargin)
	}
	if opp, ok := complementary(b, a, prices.yesB, prices.noA); ok {
		consider(opp, c.cfg.MinComplementaryMargin)
	}

	if !found {
		return domain.ArbitrageOpportunity{}, false
	}

	best.ID = uuid.New().String()
	best.GroupID = g.ID
	best.Confidence = g.Confidence
	best.DetectedAt = now
	best.ExpiresAt = now.Add(c.cfg.ExpiryWindow)
	best.Status = domain.OpportunityActive
	return best, true
}

// sameSide prices the same logical outcome on both venues: buy where it is
// cheap, sell where it is dear, margin relative to the buy price. A zero buy
// price makes the relative margin undefined and yields no candidate.
func sameSide(a, b domain.Listing, outcome string, priceA, priceB float64) (domain.ArbitrageOpportunity, bool) {
	if priceA == priceB {
		return domain.ArbitrageOpportunity{}, false
	}
	buy, sell := a, b
	buyPrice, sellPrice := priceA, priceB
	if priceB < priceA {
		buy, sell = b, a
		buyPrice, sellPrice = priceB, priceA
	}
	if buyPrice <= 0 {
		return domain.ArbitrageOpportunity{}, false
	}
	return domain.ArbitrageOpportunity{
		Kind:          domain.OpportunitySameSide,
		BuyListingID:  buy.Ref(),
		SellListingID: sell.Ref(),
		BuyOutcome:    outcome,
		SellOutcome:   outcome,
		BuyPrice:      buyPrice,
		SellPrice:     sellPrice,
		ProfitMargin:  (sellPrice - buyPrice) / buyPrice,
	}, true
}

// complementary buys "yes" on one venue and "no" on the other; when the two
// prices sum below certainty the difference is locked in regardless of the
// event's resolution.
func complementary(yesSide, noSide domain.Listing, yesPrice, noPrice float64) (domain.ArbitrageOpportunity, bool) {
	sum := yesPrice + noPrice
	if sum >= 1 {
		return domain.ArbitrageOpportunity{}, false
	}
	return domain.ArbitrageOpportunity{
		Kind:          domain.OpportunityComplementary,
		BuyListingID:  yesSide.Ref(),
		SellListingID: noSide.Ref(),
		BuyOutcome:    "yes",
		SellOutcome:   "no",
		BuyPrice:      yesPrice,
		SellPrice:     noPrice,
		ProfitMargin:  1 - sum,
	}, true
}
