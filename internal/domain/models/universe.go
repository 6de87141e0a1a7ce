package models

import "time"

// CoreTickers is the fixed always-diagnosed set. Never mutated.
var CoreTickers = []string{"SPY", "QQQ", "IWM", "DIA"}

// IsCore reports whether ticker belongs to the fixed core set.
func IsCore(ticker string) bool {
	for _, t := range CoreTickers {
		if t == ticker {
			return true
		}
	}
	return false
}

// FocusReason is the entry-reason category for FOCUS membership.
type FocusReason string

const (
	ReasonStructural FocusReason = "STRUCTURAL"
	ReasonStress     FocusReason = "STRESS"
	ReasonEvent      FocusReason = "EVENT"
)

// FocusEntry describes one FOCUS member and why it is tracked.
type FocusEntry struct {
	Ticker       string      `json:"ticker"`
	Reason       FocusReason `json:"reason"`
	Details      string      `json:"details"`    // e.g. "Rank 3 in SPY", "U=82.0"
	EntryDate    string      `json:"entry_date"` // YYYY-MM-DD
	InactiveDays int         `json:"inactive_days"`
	// Protected is true iff Reason is STRUCTURAL; protected entries are exempt
	// from cap eviction and expiry.
	Protected bool `json:"protected"`
}

// UniverseSnapshot is the immutable per-day universe state. The daily cycle
// takes the prior snapshot in and returns a new one; it is mutated exactly
// once per day, at finalize.
type UniverseSnapshot struct {
	Date    string                `json:"date"` // YYYY-MM-DD
	Version int64                 `json:"version"`
	Core    []string              `json:"core"`
	Focus   map[string]FocusEntry `json:"focus"`
}

// NewUniverseSnapshot returns an empty snapshot for the given date.
func NewUniverseSnapshot(date time.Time) UniverseSnapshot {
	return UniverseSnapshot{
		Date:    date.Format("2006-01-02"),
		Version: 1,
		Core:    append([]string(nil), CoreTickers...),
		Focus:   make(map[string]FocusEntry),
	}
}

// ActiveTickers returns CORE plus FOCUS, deduplicated, order unspecified.
func (u UniverseSnapshot) ActiveTickers() []string {
	seen := make(map[string]bool, len(u.Core)+len(u.Focus))
	out := make([]string, 0, len(u.Core)+len(u.Focus))
	for _, t := range u.Core {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for t := range u.Focus {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Clone deep-copies the snapshot so the cycle can stage changes without
// touching the published state.
func (u UniverseSnapshot) Clone() UniverseSnapshot {
	c := u
	c.Core = append([]string(nil), u.Core...)
	c.Focus = make(map[string]FocusEntry, len(u.Focus))
	for k, v := range u.Focus {
		c.Focus[k] = v
	}
	return c
}
