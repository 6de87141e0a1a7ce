package universe

import (
	"fmt"
	"time"

	"mmlens/internal/domain/models"
	"mmlens/pkg/util"
)

// EventWindowDays is the trading-day radius around a calendar event inside
// which a ticker qualifies for FOCUS.
const EventWindowDays = 1

// TopOptionsCount bounds the ticker set pulled in by a market-wide macro
// event day.
const TopOptionsCount = 20

// EventSignals derives EVENT entry signals for one day.
//
// Earnings and rebalance events carry a ticker and qualify it directly when
// the event date is within +/- one trading day. Macro events (CPI, FOMC, NFP)
// are market-wide: on a macro day the top names by options volume qualify
// instead.
func EventSignals(date time.Time, events []models.CalendarEvent, topOptions []string) map[string]EntrySignal {
	out := make(map[string]EntrySignal)

	macro := ""
	for _, ev := range events {
		if !util.WithinTradingDays(date, ev.Date, EventWindowDays) {
			continue
		}
		switch ev.Type {
		case models.EventEarnings:
			if ev.Ticker == "" || models.IsCore(ev.Ticker) {
				continue
			}
			out[ev.Ticker] = EntrySignal{
				Reason:  models.ReasonEvent,
				Details: fmt.Sprintf("Earnings %s", util.FormatDate(ev.Date)),
			}
		case models.EventRebalance:
			if ev.Ticker == "" || models.IsCore(ev.Ticker) {
				continue
			}
			// Earnings detail wins when both land on the same ticker.
			if _, ok := out[ev.Ticker]; !ok {
				out[ev.Ticker] = EntrySignal{
					Reason:  models.ReasonEvent,
					Details: fmt.Sprintf("Rebalance %s", util.FormatDate(ev.Date)),
				}
			}
		case models.EventMacro:
			if macro == "" {
				macro = ev.Description
				if macro == "" {
					macro = "macro event"
				}
			}
		}
	}

	if macro != "" {
		n := len(topOptions)
		if n > TopOptionsCount {
			n = TopOptionsCount
		}
		for _, ticker := range topOptions[:n] {
			if models.IsCore(ticker) {
				continue
			}
			if _, ok := out[ticker]; !ok {
				out[ticker] = EntrySignal{
					Reason:  models.ReasonEvent,
					Details: fmt.Sprintf("Macro: %s (top-%d options volume)", macro, TopOptionsCount),
				}
			}
		}
	}

	return out
}
