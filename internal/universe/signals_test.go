package universe

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmlens/internal/domain/models"
)

func TestStructuralSignalsDedupHighestWeight(t *testing.T) {
	sigs := StructuralSignals([]models.ETFConstituent{
		{ETF: "SPY", Ticker: "AAPL", Rank: 1, WeightPct: 7.1},
		{ETF: "QQQ", Ticker: "AAPL", Rank: 1, WeightPct: 8.9},
		{ETF: "SPY", Ticker: "XOM", Rank: 12, WeightPct: 1.3},
		{ETF: "SPY", Ticker: "LOW", Rank: 16, WeightPct: 0.9}, // past top-15
		{ETF: "DIA", Ticker: "UNH", Rank: 10, WeightPct: 2.8},
		{ETF: "DIA", Ticker: "CRM", Rank: 11, WeightPct: 2.6}, // past top-10
		{ETF: "IWM", Ticker: "SMCI", Rank: 1, WeightPct: 0.5}, // IWM excluded
	})

	require.Contains(t, sigs, "AAPL")
	assert.Equal(t, "Rank 1 in QQQ", sigs["AAPL"].Details)
	assert.Equal(t, models.ReasonStructural, sigs["AAPL"].Reason)
	assert.Contains(t, sigs, "XOM")
	assert.Contains(t, sigs, "UNH")
	assert.NotContains(t, sigs, "LOW")
	assert.NotContains(t, sigs, "CRM")
	assert.NotContains(t, sigs, "SMCI")
}

func TestEventSignalsEarningsWindow(t *testing.T) {
	monday := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	sigs := EventSignals(monday, []models.CalendarEvent{
		{Ticker: "NVDA", Type: models.EventEarnings, Date: monday.AddDate(0, 0, 1)},
		// Prior Friday is one trading day back across the weekend.
		{Ticker: "AMD", Type: models.EventEarnings, Date: monday.AddDate(0, 0, -3)},
		// Wednesday is two trading days out.
		{Ticker: "TSLA", Type: models.EventEarnings, Date: monday.AddDate(0, 0, 2)},
		{Ticker: "GS", Type: models.EventRebalance, Date: monday},
	}, nil)

	assert.Contains(t, sigs, "NVDA")
	assert.Contains(t, sigs, "AMD")
	assert.NotContains(t, sigs, "TSLA")
	require.Contains(t, sigs, "GS")
	assert.Equal(t, models.ReasonEvent, sigs["GS"].Reason)
}

func TestEventSignalsMacroPullsTopOptions(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	top := make([]string, 0, 25)
	for _, tk := range []string{"NVDA", "TSLA", "SPY"} {
		top = append(top, tk)
	}
	for i := len(top); i < 25; i++ {
		top = append(top, string(rune('A'+i))+"X")
	}

	sigs := EventSignals(d, []models.CalendarEvent{
		{Type: models.EventMacro, Date: d, Description: "CPI"},
	}, top)

	assert.Contains(t, sigs, "NVDA")
	assert.Contains(t, sigs, "TSLA")
	assert.NotContains(t, sigs, "SPY") // core never enters FOCUS
	// Only the top 20 qualify; SPY does not consume a slot check, just bound.
	assert.LessOrEqual(t, len(sigs), TopOptionsCount)
	assert.Contains(t, sigs["NVDA"].Details, "CPI")
}

func TestEventSignalsNoMacroNoTopOptions(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	sigs := EventSignals(d, nil, []string{"NVDA", "TSLA"})
	assert.Empty(t, sigs)
}

func TestStressSignal(t *testing.T) {
	score := func(u float64) *models.ScoringResult {
		return &models.ScoringResult{PercentileScore: u}
	}

	cases := []struct {
		name string
		d    *models.DiagnosticOutput
		want bool
	}{
		{"nil", nil, false},
		{"high score", &models.DiagnosticOutput{ScoringResult: score(70)}, true},
		{"below score", &models.DiagnosticOutput{ScoringResult: score(69.9)}, false},
		{"zgex", &models.DiagnosticOutput{ZScores: map[string]float64{models.FeatureGEX: -2.0}}, true},
		{"dark", &models.DiagnosticOutput{RawFeatures: map[string]float64{models.FeatureDarkShare: 0.65}}, true},
		{"zblock", &models.DiagnosticOutput{ZScores: map[string]float64{models.FeatureBlockIntensity: 2.4}}, true},
		{"calm", &models.DiagnosticOutput{
			ScoringResult: score(30),
			ZScores:       map[string]float64{models.FeatureGEX: 0.5, models.FeatureBlockIntensity: -0.3},
			RawFeatures:   map[string]float64{models.FeatureDarkShare: 0.40},
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig, ok := StressSignal(tc.d)
			assert.Equal(t, tc.want, ok)
			if ok {
				assert.Equal(t, models.ReasonStress, sig.Reason)
				assert.NotEmpty(t, sig.Details)
			}
		})
	}
}

func TestStressSignalDetailFormat(t *testing.T) {
	sig, ok := StressSignal(&models.DiagnosticOutput{
		ScoringResult: &models.ScoringResult{PercentileScore: 82},
	})
	require.True(t, ok)
	assert.Equal(t, "U=82.0", sig.Details)
}

func TestRankFromDiagnostic(t *testing.T) {
	r := RankFromDiagnostic(&models.DiagnosticOutput{
		ScoringResult: &models.ScoringResult{PercentileScore: 78},
		ZScores:       map[string]float64{models.FeatureGEX: -1.9},
	})
	assert.Equal(t, 78.0, r.Score)
	assert.Equal(t, 1.9, r.AbsZGEX)

	r = RankFromDiagnostic(&models.DiagnosticOutput{
		ZScores: map[string]float64{models.FeatureGEX: math.NaN()},
	})
	assert.Equal(t, 0.0, r.Score)
	assert.Equal(t, 0.0, r.AbsZGEX)

	r = RankFromDiagnostic(nil)
	assert.Equal(t, EvictionRank{}, r)
}
