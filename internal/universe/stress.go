package universe

import (
	"fmt"
	"math"

	"mmlens/internal/domain/models"
)

// Stress thresholds. Inclusive: a value exactly at a threshold qualifies.
const (
	stressScoreFloor  = 70.0
	stressZGEXFloor   = 2.0
	stressDarkFloor   = 0.65
	stressZBlockFloor = 2.0
)

// StressSignal evaluates one diagnostic against the stress entry conditions.
// Any one condition qualifies; the returned detail names the first condition
// that fired, in fixed evaluation order.
func StressSignal(d *models.DiagnosticOutput) (EntrySignal, bool) {
	if d == nil {
		return EntrySignal{}, false
	}

	if d.ScoringResult != nil {
		u := d.ScoringResult.PercentileScore
		if !math.IsNaN(u) && u >= stressScoreFloor {
			return EntrySignal{
				Reason:  models.ReasonStress,
				Details: fmt.Sprintf("U=%.1f", u),
			}, true
		}
	}
	if z, ok := d.ZScores[models.FeatureGEX]; ok && math.Abs(z) >= stressZGEXFloor {
		return EntrySignal{
			Reason:  models.ReasonStress,
			Details: fmt.Sprintf("|Z_GEX|=%.2f", math.Abs(z)),
		}, true
	}
	if v, ok := d.RawFeatures[models.FeatureDarkShare]; ok && v >= stressDarkFloor {
		return EntrySignal{
			Reason:  models.ReasonStress,
			Details: fmt.Sprintf("dark_share=%.2f", v),
		}, true
	}
	if z, ok := d.ZScores[models.FeatureBlockIntensity]; ok && math.Abs(z) >= stressZBlockFloor {
		return EntrySignal{
			Reason:  models.ReasonStress,
			Details: fmt.Sprintf("|Z_block|=%.2f", math.Abs(z)),
		}, true
	}

	return EntrySignal{}, false
}

// EvictionRank carries the cap-enforcement ranking inputs for one FOCUS
// entry. Higher is safer.
type EvictionRank struct {
	Score   float64
	AbsZGEX float64
}

// RankFromDiagnostic extracts the eviction rank for a ticker's diagnostic.
// Missing score or z-score ranks as zero, the most evictable.
func RankFromDiagnostic(d *models.DiagnosticOutput) EvictionRank {
	var r EvictionRank
	if d == nil {
		return r
	}
	if d.ScoringResult != nil && !math.IsNaN(d.ScoringResult.PercentileScore) {
		r.Score = d.ScoringResult.PercentileScore
	}
	if z, ok := d.ZScores[models.FeatureGEX]; ok && !math.IsNaN(z) {
		r.AbsZGEX = math.Abs(z)
	}
	return r
}
