package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseDate parses the canonical YYYY-MM-DD form. Returns (t, true) if it worked.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders the canonical YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// IsTradingDay reports whether t falls on a weekday. Exchange holidays are
// the calendar feed's concern, not handled here.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NextTradingDay returns the first weekday strictly after t.
func NextTradingDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PrevTradingDay returns the last weekday strictly before t.
func PrevTradingDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// TradingDaysBetween counts trading-day steps between a and b,
// order-insensitive. Same calendar day is 0.
func TradingDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	a = time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	b = time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	if a.After(b) {
		a, b = b, a
	}
	n := 0
	for d := a; d.Before(b); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d.AddDate(0, 0, 1)) {
			n++
		}
	}
	return n
}

// WithinTradingDays reports whether a and b are at most window trading days
// apart.
func WithinTradingDays(a, b time.Time, window int) bool {
	return TradingDaysBetween(a, b) <= window
}
