package models

// InterpretationBand buckets a percentile unusualness score. Boundaries are
// closed on the lower edge, open on the upper.
type InterpretationBand string

const (
	BandNormal   InterpretationBand = "Normal"   // [0, 30)
	BandElevated InterpretationBand = "Elevated" // [30, 60)
	BandUnusual  InterpretationBand = "Unusual"  // [60, 80)
	BandExtreme  InterpretationBand = "Extreme"  // [80, 100]
)

// ScoringResult is the unusualness score for one instrument-day.
type ScoringResult struct {
	RawScore        float64            `json:"raw_score"`
	PercentileScore float64            `json:"percentile_score"`
	Interpretation  InterpretationBand `json:"interpretation"`
	// Contributions maps feature -> w_k * |Z_k| for every included feature.
	Contributions map[string]float64 `json:"feature_contributions"`
	// Excluded lists features that contributed exactly 0 (NaN z-score or
	// explicitly excluded). Remaining weights are not rescaled.
	Excluded []string `json:"excluded_features"`
}

// Contribution is a (feature, weighted |z|) pair used for driver ranking.
type Contribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}
