package universe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmlens/internal/domain/models"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(DefaultFocusCap, DefaultExpiryDays)
	require.NoError(t, err)
	return m
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(0, 3)
	assert.Error(t, err)
	_, err = NewManager(30, 0)
	assert.Error(t, err)
}

func TestPromoteNewAndUpgrade(t *testing.T) {
	m := testManager(t)
	s := models.NewUniverseSnapshot(day("2024-01-15"))

	m.Promote(&s, day("2024-01-15"), "NVDA", EntrySignal{models.ReasonStress, "U=82.0"})
	require.Contains(t, s.Focus, "NVDA")
	assert.Equal(t, models.ReasonStress, s.Focus["NVDA"].Reason)
	assert.False(t, s.Focus["NVDA"].Protected)
	assert.Equal(t, "2024-01-15", s.Focus["NVDA"].EntryDate)

	// Structural outranks stress and flips protection; entry date is kept.
	m.Promote(&s, day("2024-01-16"), "NVDA", EntrySignal{models.ReasonStructural, "Rank 3 in QQQ"})
	assert.Equal(t, models.ReasonStructural, s.Focus["NVDA"].Reason)
	assert.True(t, s.Focus["NVDA"].Protected)
	assert.Equal(t, "2024-01-15", s.Focus["NVDA"].EntryDate)

	// Event does not downgrade a structural entry.
	m.Promote(&s, day("2024-01-17"), "NVDA", EntrySignal{models.ReasonEvent, "Earnings 2024-01-18"})
	assert.Equal(t, models.ReasonStructural, s.Focus["NVDA"].Reason)
}

func TestPromoteSkipsCore(t *testing.T) {
	m := testManager(t)
	s := models.NewUniverseSnapshot(day("2024-01-15"))
	m.Promote(&s, day("2024-01-15"), "SPY", EntrySignal{models.ReasonStress, "U=95.0"})
	assert.Empty(t, s.Focus)
}

func TestPromoteResetsInactivity(t *testing.T) {
	m := testManager(t)
	s := models.NewUniverseSnapshot(day("2024-01-15"))
	s.Focus["AMD"] = models.FocusEntry{Ticker: "AMD", Reason: models.ReasonStress, InactiveDays: 2}

	m.Promote(&s, day("2024-01-16"), "AMD", EntrySignal{models.ReasonStress, "U=74.0"})
	assert.Equal(t, 0, s.Focus["AMD"].InactiveDays)
}

func TestAdvanceExpiry(t *testing.T) {
	m := testManager(t)
	s := models.NewUniverseSnapshot(day("2024-01-15"))
	s.Focus["AMD"] = models.FocusEntry{Ticker: "AMD", Reason: models.ReasonStress, InactiveDays: 2}
	s.Focus["TSLA"] = models.FocusEntry{Ticker: "TSLA", Reason: models.ReasonStress, InactiveDays: 0}
	s.Focus["AAPL"] = models.FocusEntry{Ticker: "AAPL", Reason: models.ReasonStructural, InactiveDays: 2, Protected: true}

	expired := m.AdvanceExpiry(&s, map[string]bool{"TSLA": true})

	// AMD hits 3 inactive days and is removed; TSLA qualified and resets;
	// AAPL hits the limit but is protected and stays.
	assert.Equal(t, []string{"AMD"}, expired)
	assert.NotContains(t, s.Focus, "AMD")
	assert.Equal(t, 0, s.Focus["TSLA"].InactiveDays)
	require.Contains(t, s.Focus, "AAPL")
	assert.Equal(t, 3, s.Focus["AAPL"].InactiveDays)
}

func TestEnforceFocusCapScenario(t *testing.T) {
	m := testManager(t)
	s := models.NewUniverseSnapshot(day("2024-01-15"))
	ranks := make(map[string]EvictionRank)

	// 15 protected structural entries plus 20 stress entries, 35 total.
	for i := 0; i < 15; i++ {
		tk := fmt.Sprintf("ST%02d", i)
		s.Focus[tk] = models.FocusEntry{Ticker: tk, Reason: models.ReasonStructural, Protected: true}
	}
	for i := 0; i < 20; i++ {
		tk := fmt.Sprintf("SR%02d", i)
		s.Focus[tk] = models.FocusEntry{Ticker: tk, Reason: models.ReasonStress}
		ranks[tk] = EvictionRank{Score: float64(50 + i), AbsZGEX: 1.0}
	}

	evicted := m.EnforceFocusCap(&s, ranks)

	// Exactly the 5 lowest-scored stress entries go; every structural stays.
	assert.Len(t, evicted, 5)
	assert.Len(t, s.Focus, 30)
	assert.ElementsMatch(t, []string{"SR00", "SR01", "SR02", "SR03", "SR04"}, evicted)
	for i := 0; i < 15; i++ {
		assert.Contains(t, s.Focus, fmt.Sprintf("ST%02d", i))
	}
}

func TestEnforceFocusCapTieBreakByZGEX(t *testing.T) {
	m, err := NewManager(1, 3)
	require.NoError(t, err)
	s := models.NewUniverseSnapshot(day("2024-01-15"))
	s.Focus["A"] = models.FocusEntry{Ticker: "A", Reason: models.ReasonStress}
	s.Focus["B"] = models.FocusEntry{Ticker: "B", Reason: models.ReasonStress}
	ranks := map[string]EvictionRank{
		"A": {Score: 75, AbsZGEX: 2.5},
		"B": {Score: 75, AbsZGEX: 1.1},
	}

	evicted := m.EnforceFocusCap(&s, ranks)
	assert.Equal(t, []string{"B"}, evicted)
	assert.Contains(t, s.Focus, "A")
}

func TestEnforceFocusCapProtectedMayExceed(t *testing.T) {
	m, err := NewManager(2, 3)
	require.NoError(t, err)
	s := models.NewUniverseSnapshot(day("2024-01-15"))
	for _, tk := range []string{"A", "B", "C"} {
		s.Focus[tk] = models.FocusEntry{Ticker: tk, Reason: models.ReasonStructural, Protected: true}
	}

	evicted := m.EnforceFocusCap(&s, nil)
	assert.Empty(t, evicted)
	assert.Len(t, s.Focus, 3)
}

func TestFinalizeIsSingleMutation(t *testing.T) {
	m := testManager(t)
	prev := models.NewUniverseSnapshot(day("2024-01-15"))
	prev.Version = 7
	prev.Focus["AMD"] = models.FocusEntry{Ticker: "AMD", Reason: models.ReasonStress, InactiveDays: 1}

	res := m.Finalize(prev, day("2024-01-16"), map[string]EntrySignal{
		"NVDA": {models.ReasonStress, "U=82.0"},
	}, nil)

	assert.Equal(t, "2024-01-16", res.Snapshot.Date)
	assert.Equal(t, int64(8), res.Snapshot.Version)
	assert.Contains(t, res.Snapshot.Focus, "NVDA")
	assert.Equal(t, 2, res.Snapshot.Focus["AMD"].InactiveDays)

	// The prior snapshot is untouched.
	assert.Equal(t, int64(7), prev.Version)
	assert.Equal(t, 1, prev.Focus["AMD"].InactiveDays)
	assert.NotContains(t, prev.Focus, "NVDA")
}

func TestMergeSignalsPriority(t *testing.T) {
	a := map[string]EntrySignal{
		"NVDA": {models.ReasonEvent, "Earnings 2024-01-16"},
	}
	b := map[string]EntrySignal{
		"NVDA": {models.ReasonStructural, "Rank 3 in QQQ"},
		"AMD":  {models.ReasonStress, "U=74.0"},
	}
	out := MergeSignals(a, b)
	assert.Equal(t, models.ReasonStructural, out["NVDA"].Reason)
	assert.Equal(t, models.ReasonStress, out["AMD"].Reason)

	// Lower priority never overwrites higher.
	out = MergeSignals(out, map[string]EntrySignal{"NVDA": {models.ReasonEvent, "x"}})
	assert.Equal(t, models.ReasonStructural, out["NVDA"].Reason)
}
