package engine

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"mmlens/internal/domain/models"
)

func sampleOutput() *models.DiagnosticOutput {
	e := NewExplainer()
	regime := models.RegimeResult{
		Regime: models.RegimeGammaNegative,
		Conditions: []models.Condition{
			{Name: "Z_GEX", Observed: -2.31, Threshold: -1.5, Matched: true},
			{Name: "Impact_vs_median", Observed: 0.0087, Threshold: 0.0052, Matched: true},
		},
		Interpretation:     models.RegimeGammaNegative.Interpretation(),
		BaselineSufficient: true,
	}
	scoring := &models.ScoringResult{
		RawScore:        1.21,
		PercentileScore: 78,
		Interpretation:  models.BandUnusual,
		Contributions:   map[string]float64{"gex": 0.58, "dark_share": 0.46},
	}
	excluded := []models.ExcludedFeature{{Feature: "charm", Reason: "n = 9 < 21"}}
	return e.Build("SPY", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		regime, scoring, excluded, models.BaselinePartial,
		map[string]float64{"gex": -2.31, "vanna": math.NaN()},
		map[string]float64{"dark_share": 0.42})
}

func TestBuildDropsNaN(t *testing.T) {
	d := sampleOutput()
	if _, ok := d.ZScores["vanna"]; ok {
		t.Fatalf("NaN z-score must be dropped from the record")
	}
	if d.ZScores["gex"] != -2.31 {
		t.Fatalf("finite z-score must survive, got %v", d.ZScores["gex"])
	}
	if _, err := json.Marshal(d); err != nil {
		t.Fatalf("record must serialize cleanly: %v", err)
	}
}

func TestFormatText(t *testing.T) {
	d := sampleOutput()
	text := FormatText(d)

	for _, want := range []string{
		"=== Diagnostic: SPY @ 2024-01-15 ===",
		"Regime: Γ- (Gamma-Negative Liquidity Vacuum)",
		"Z_GEX = -2.3100 (threshold: -1.5000) [x]",
		"Impact_vs_median = 0.0087 (threshold: 0.0052) [x]",
		"Unusualness: 78 (Unusual)",
		"Top drivers: GEX contrib=0.58; DARK_SHARE contrib=0.46",
		"Excluded: charm (n = 9 < 21)",
		"Baseline: PARTIAL",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered text missing %q:\n%s", want, text)
		}
	}
}

func TestFormatTextDeterministic(t *testing.T) {
	d := sampleOutput()
	first := FormatText(d)
	for i := 0; i < 10; i++ {
		if got := FormatText(d); got != first {
			t.Fatalf("rendering not deterministic")
		}
	}
}

func TestFormatTextAbsentScore(t *testing.T) {
	e := NewExplainer()
	regime := models.RegimeResult{
		Regime:             models.RegimeUndetermined,
		Interpretation:     models.RegimeUndetermined.Interpretation(),
		BaselineSufficient: false,
	}
	d := e.Build("NVDA", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		regime, nil, nil, models.BaselineEmpty, nil, nil)
	text := FormatText(d)
	if !strings.Contains(text, "Unusualness: N/A (insufficient data)") {
		t.Fatalf("absent score must render N/A:\n%s", text)
	}
	if !strings.Contains(text, "Excluded: none") {
		t.Fatalf("empty exclusions must render 'none':\n%s", text)
	}
	if !strings.Contains(text, "Baseline: EMPTY") {
		t.Fatalf("baseline state missing:\n%s", text)
	}
}
