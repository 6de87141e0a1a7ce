package models

import "time"

// EventType classifies calendar events consumed from the reference-data feed.
type EventType string

const (
	EventEarnings  EventType = "earnings"
	EventRebalance EventType = "rebalance"
	EventMacro     EventType = "macro" // CPI, NFP, FOMC
)

// CalendarEvent is one (ticker, event, date) record. Ticker is empty for
// market-wide macro events.
type CalendarEvent struct {
	Ticker      string    `json:"ticker"`
	Type        EventType `json:"event_type"`
	Date        time.Time `json:"event_date"`
	Description string    `json:"description"`
}

// ETFConstituent is one member of an ETF's holdings ranked by weight.
type ETFConstituent struct {
	ETF       string  `json:"etf"`
	Ticker    string  `json:"ticker"`
	Rank      int     `json:"rank"` // 1-based by weight
	WeightPct float64 `json:"weight_pct"`
}
