package universe

import (
	"fmt"
	"sort"
	"time"

	"mmlens/internal/domain/models"
	"mmlens/pkg/util"
)

// Defaults for the FOCUS membership lifecycle.
const (
	DefaultFocusCap   = 30
	DefaultExpiryDays = 3
)

// Manager owns the CORE/FOCUS membership state machine. It is pure: every
// method takes the staged snapshot explicitly and performs no I/O, so the
// daily cycle can stage a clone and publish it atomically at finalize.
type Manager struct {
	cap        int
	expiryDays int
}

func NewManager(focusCap, expiryDays int) (*Manager, error) {
	if focusCap < 1 {
		return nil, fmt.Errorf("universe: focus cap (%d) must be >= 1", focusCap)
	}
	if expiryDays < 1 {
		return nil, fmt.Errorf("universe: expiry days (%d) must be >= 1", expiryDays)
	}
	return &Manager{cap: focusCap, expiryDays: expiryDays}, nil
}

func reasonPriority(r models.FocusReason) int {
	switch r {
	case models.ReasonStructural:
		return 2
	case models.ReasonStress:
		return 1
	default:
		return 0
	}
}

// Promote applies one entry signal to the staged snapshot. A qualifying
// ticker already in FOCUS has its inactivity counter reset; its reason is
// upgraded only if the new signal outranks the old (STRUCTURAL > STRESS >
// EVENT). Core tickers are never staged into FOCUS.
func (m *Manager) Promote(s *models.UniverseSnapshot, date time.Time, ticker string, sig EntrySignal) {
	if models.IsCore(ticker) {
		return
	}
	if e, ok := s.Focus[ticker]; ok {
		e.InactiveDays = 0
		if reasonPriority(sig.Reason) > reasonPriority(e.Reason) {
			e.Reason = sig.Reason
			e.Details = sig.Details
			e.Protected = sig.Reason == models.ReasonStructural
		} else if sig.Reason == e.Reason {
			e.Details = sig.Details
		}
		s.Focus[ticker] = e
		return
	}
	s.Focus[ticker] = models.FocusEntry{
		Ticker:       ticker,
		Reason:       sig.Reason,
		Details:      sig.Details,
		EntryDate:    util.FormatDate(date),
		InactiveDays: 0,
		Protected:    sig.Reason == models.ReasonStructural,
	}
}

// AdvanceExpiry increments the inactivity counter for every FOCUS entry not
// in qualified and removes entries that reach the expiry limit. Protected
// entries still count inactivity but are never removed. Returns the expired
// tickers, sorted.
func (m *Manager) AdvanceExpiry(s *models.UniverseSnapshot, qualified map[string]bool) []string {
	var expired []string
	for ticker, e := range s.Focus {
		if qualified[ticker] {
			e.InactiveDays = 0
			s.Focus[ticker] = e
			continue
		}
		e.InactiveDays++
		if e.InactiveDays >= m.expiryDays && !e.Protected {
			delete(s.Focus, ticker)
			expired = append(expired, ticker)
			continue
		}
		s.Focus[ticker] = e
	}
	sort.Strings(expired)
	return expired
}

// EnforceFocusCap evicts the lowest-ranked non-protected entries until the
// snapshot fits the cap. Ranking is unusualness score descending with |Z_GEX|
// descending as the tie-break; protected entries are never evicted even when
// they alone exceed the cap. Returns the evicted tickers in eviction order.
func (m *Manager) EnforceFocusCap(s *models.UniverseSnapshot, ranks map[string]EvictionRank) []string {
	if len(s.Focus) <= m.cap {
		return nil
	}

	type candidate struct {
		ticker string
		rank   EvictionRank
	}
	var evictable []candidate
	for ticker, e := range s.Focus {
		if e.Protected {
			continue
		}
		evictable = append(evictable, candidate{ticker, ranks[ticker]})
	}
	// Worst-ranked first.
	sort.Slice(evictable, func(i, j int) bool {
		if evictable[i].rank.Score != evictable[j].rank.Score {
			return evictable[i].rank.Score < evictable[j].rank.Score
		}
		if evictable[i].rank.AbsZGEX != evictable[j].rank.AbsZGEX {
			return evictable[i].rank.AbsZGEX < evictable[j].rank.AbsZGEX
		}
		return evictable[i].ticker < evictable[j].ticker
	})

	var evicted []string
	for _, c := range evictable {
		if len(s.Focus) <= m.cap {
			break
		}
		delete(s.Focus, c.ticker)
		evicted = append(evicted, c.ticker)
	}
	return evicted
}

// FinalizeResult reports what the end-of-day mutation did.
type FinalizeResult struct {
	Snapshot models.UniverseSnapshot
	Expired  []string
	Evicted  []string
}

// Finalize is the single daily mutation of the universe state. It clones the
// prior snapshot, applies all qualifying signals, advances expiry for
// everything that did not qualify, enforces the cap, and returns the new
// versioned snapshot. The prior snapshot is never touched.
func (m *Manager) Finalize(
	prev models.UniverseSnapshot,
	date time.Time,
	signals map[string]EntrySignal,
	ranks map[string]EvictionRank,
) FinalizeResult {
	next := prev.Clone()
	next.Date = util.FormatDate(date)
	next.Version = prev.Version + 1
	if next.Focus == nil {
		next.Focus = make(map[string]models.FocusEntry)
	}

	qualified := make(map[string]bool, len(signals))
	for ticker, sig := range signals {
		m.Promote(&next, date, ticker, sig)
		qualified[ticker] = true
	}

	expired := m.AdvanceExpiry(&next, qualified)
	evicted := m.EnforceFocusCap(&next, ranks)

	return FinalizeResult{Snapshot: next, Expired: expired, Evicted: evicted}
}

// MergeSignals folds b into a, keeping the higher-priority reason on
// conflict. a is modified and returned.
func MergeSignals(a, b map[string]EntrySignal) map[string]EntrySignal {
	if a == nil {
		a = make(map[string]EntrySignal, len(b))
	}
	for ticker, sig := range b {
		if cur, ok := a[ticker]; !ok || reasonPriority(sig.Reason) > reasonPriority(cur.Reason) {
			a[ticker] = sig
		}
	}
	return a
}
