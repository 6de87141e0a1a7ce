package universe

import (
	"fmt"

	"mmlens/internal/domain/models"
)

// StructuralLimits is the per-ETF top-N cutoff for structural FOCUS
// qualification. IWM is deliberately absent: its membership is too fragmented
// for any single name to matter structurally.
var StructuralLimits = map[string]int{
	"SPY": 15,
	"QQQ": 10,
	"DIA": 10,
}

// EntrySignal is one qualifying condition for a ticker on a given day.
type EntrySignal struct {
	Reason  models.FocusReason
	Details string
}

// StructuralSignals maps constituent lists to STRUCTURAL entry signals.
// Cross-ETF duplicates keep the membership with the highest weight. Core
// tickers never appear as their own constituents, but are filtered anyway.
func StructuralSignals(constituents []models.ETFConstituent) map[string]EntrySignal {
	best := make(map[string]models.ETFConstituent)
	for _, c := range constituents {
		limit, ok := StructuralLimits[c.ETF]
		if !ok || c.Rank < 1 || c.Rank > limit {
			continue
		}
		if models.IsCore(c.Ticker) {
			continue
		}
		if prev, ok := best[c.Ticker]; !ok || c.WeightPct > prev.WeightPct {
			best[c.Ticker] = c
		}
	}

	out := make(map[string]EntrySignal, len(best))
	for ticker, c := range best {
		out[ticker] = EntrySignal{
			Reason:  models.ReasonStructural,
			Details: fmt.Sprintf("Rank %d in %s", c.Rank, c.ETF),
		}
	}
	return out
}
