package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"mmlens/internal/domain/models"
)

// Explainer assembles the per-day diagnostic record. Pure aggregation: it
// performs no computation of its own, and both renderings derive from the
// same DiagnosticOutput without re-querying any component.
type Explainer struct{}

func NewExplainer() *Explainer { return &Explainer{} }

// Build combines the classifier and scorer outputs with exclusion metadata
// and the baseline state into one immutable DiagnosticOutput. NaN entries are
// dropped from the carried input maps so the record serializes cleanly;
// missing and excluded are indistinguishable by design.
func (e *Explainer) Build(
	ticker string,
	date time.Time,
	regime models.RegimeResult,
	scoring *models.ScoringResult,
	excluded []models.ExcludedFeature,
	state models.BaselineState,
	zScores map[string]float64,
	rawFeatures map[string]float64,
) *models.DiagnosticOutput {
	return &models.DiagnosticOutput{
		Ticker:        ticker,
		Date:          date.Format("2006-01-02"),
		RegimeResult:  regime,
		ScoringResult: scoring,
		Excluded:      append([]models.ExcludedFeature(nil), excluded...),
		BaselineState: state,
		ZScores:       dropNaN(zScores),
		RawFeatures:   dropNaN(rawFeatures),
	}
}

func dropNaN(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) {
			out[k] = v
		}
	}
	return out
}

// FormatText renders the deterministic human-readable form.
//
//	=== Diagnostic: SPY @ 2024-01-15 ===
//
//	Regime: Γ- (Gamma-Negative Liquidity Vacuum)
//	Z_GEX = -2.3100 (threshold: -1.5000) [x]
//	Impact_vs_median = 0.0087 (threshold: 0.0052) [x]
//
//	Unusualness: 78 (Unusual)
//	Top drivers: GEX contrib=0.58; DARK_SHARE contrib=0.46
//
//	Excluded: charm (n = 9 < 21)
//	Baseline: PARTIAL
func FormatText(d *models.DiagnosticOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Diagnostic: %s @ %s ===\n\n", d.Ticker, d.Date)

	fmt.Fprintf(&b, "Regime: %s (%s)\n", d.RegimeResult.Regime, d.RegimeResult.Regime.Description())
	if len(d.RegimeResult.Conditions) > 0 {
		for _, c := range d.RegimeResult.Conditions {
			mark := "[ ]"
			if c.Matched {
				mark = "[x]"
			}
			fmt.Fprintf(&b, "%s = %.4f (threshold: %.4f) %s\n", c.Name, c.Observed, c.Threshold, mark)
		}
	} else {
		fmt.Fprintf(&b, "  %s\n", d.RegimeResult.Interpretation)
	}
	b.WriteString("\n")

	if d.ScoringResult == nil {
		b.WriteString("Unusualness: N/A (insufficient data)\n")
	} else {
		fmt.Fprintf(&b, "Unusualness: %.0f (%s)\n", d.ScoringResult.PercentileScore, d.ScoringResult.Interpretation)
		if top := TopContributors(d.ScoringResult.Contributions, 3); len(top) > 0 {
			parts := make([]string, 0, len(top))
			for _, c := range top {
				parts = append(parts, fmt.Sprintf("%s contrib=%.2f", strings.ToUpper(c.Feature), c.Value))
			}
			fmt.Fprintf(&b, "Top drivers: %s\n", strings.Join(parts, "; "))
		}
	}
	b.WriteString("\n")

	if len(d.Excluded) == 0 {
		b.WriteString("Excluded: none\n")
	} else {
		parts := make([]string, 0, len(d.Excluded))
		for _, ef := range d.Excluded {
			parts = append(parts, ef.String())
		}
		fmt.Fprintf(&b, "Excluded: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(&b, "Baseline: %s", d.BaselineState)

	return b.String()
}
