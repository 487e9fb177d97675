package notify

import (
	"fmt"
	"strings"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// Event types emitted by the detection pipeline.
const (
	EventOpportunityDetected = "opportunity.detected"
	EventPassFailed          = "pass.failed"
)

// FormatOpportunity renders an arbitrage opportunity as a notification title
// and message. Only newly inserted opportunities should be announced; refresh
// upserts of an existing active record would just repeat the same alert.
func FormatOpportunity(opp domain.ArbitrageOpportunity) (title, message string) {
	title = fmt.Sprintf("Arbitrage: %.2f%% margin (%s)", opp.ProfitMargin*100, opp.Kind)

	var b strings.Builder
	fmt.Fprintf(&b, "Buy  %s (%s) @ %.3f\n", opp.BuyListingID, opp.BuyOutcome, opp.BuyPrice)
	fmt.Fprintf(&b, "Sell %s (%s) @ %.3f\n", opp.SellListingID, opp.SellOutcome, opp.SellPrice)
	fmt.Fprintf(&b, "Group %s, confidence %.2f\n", opp.GroupID, opp.Confidence)
	fmt.Fprintf(&b, "Valid until %s", opp.ExpiresAt.UTC().Format("15:04:05 MST"))
	return title, b.String()
}
