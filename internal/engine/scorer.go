package engine

import (
	"fmt"
	"math"
	"sort"

	"mmlens/internal/domain/models"
)

// DefaultWeights is the fixed diagnostic weight table. Conceptual allocations:
// not optimized, not tunable, never renormalized when features drop out.
var DefaultWeights = map[string]float64{
	models.FeatureDarkShare:      0.25,
	models.FeatureGEX:            0.25,
	models.FeatureVenueMix:       0.20,
	models.FeatureBlockIntensity: 0.15,
	models.FeatureIVSkew:         0.15,
}

// Scorer computes the unusualness score: a weighted sum of absolute z-scores
// mapped to a percentile rank within the instrument's own history.
type Scorer struct {
	window  int
	weights map[string]float64
}

// NewScorer validates the configuration and returns a Scorer. A nil weights
// map selects DefaultWeights.
func NewScorer(window int, weights map[string]float64) (*Scorer, error) {
	if window < 1 {
		return nil, fmt.Errorf("scorer: window (%d) must be >= 1", window)
	}
	if weights == nil {
		weights = DefaultWeights
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("scorer: weight table must not be empty")
	}
	var sum float64
	for f, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("scorer: weight for %q (%v) must be positive", f, w)
		}
		sum += w
	}
	if sum < 0.99 || sum > 1.01 {
		return nil, fmt.Errorf("scorer: weights sum to %.3f, expected ~1.0", sum)
	}
	return &Scorer{window: window, weights: weights}, nil
}

// RawScore computes S = sum over included features of w_k * |z_k|.
// A feature is excluded when its z-score is NaN or it appears in excluded;
// excluded features contribute exactly 0 and remaining weights are not
// rescaled. Returns the score and per-feature contributions.
func (s *Scorer) RawScore(zScores map[string]float64, excluded []string) (float64, map[string]float64) {
	skip := make(map[string]bool, len(excluded))
	for _, f := range excluded {
		skip[f] = true
	}

	var raw float64
	contribs := make(map[string]float64)
	for feature, z := range zScores {
		if skip[feature] || math.IsNaN(z) {
			continue
		}
		w, ok := s.weights[feature]
		if !ok || w == 0 {
			continue
		}
		c := w * math.Abs(z)
		contribs[feature] = c
		raw += c
	}
	return raw, contribs
}

// PercentileScores maps each raw score to its percentile rank [0,100] within
// the trailing window of the same instrument's raw-score history, expanding
// during cold start. NaN scores yield NaN ranks.
func (s *Scorer) PercentileScores(rawScores []float64) []float64 {
	out := make([]float64, len(rawScores))
	for i, cur := range rawScores {
		start := 0
		if i >= s.window {
			start = i - s.window + 1
		}
		if math.IsNaN(cur) {
			out[i] = math.NaN()
			continue
		}
		rank, n := 0, 0
		for _, v := range rawScores[start : i+1] {
			if math.IsNaN(v) {
				continue
			}
			n++
			if v <= cur {
				rank++
			}
		}
		if n == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(rank) / float64(n) * 100
	}
	return out
}

// Interpretation maps a percentile score to its band. Bands are closed on the
// lower edge, open on the upper.
func (s *Scorer) Interpretation(percentile float64) models.InterpretationBand {
	switch {
	case math.IsNaN(percentile):
		return models.BandNormal
	case percentile < 30:
		return models.BandNormal
	case percentile < 60:
		return models.BandElevated
	case percentile < 80:
		return models.BandUnusual
	default:
		return models.BandExtreme
	}
}

// Score computes the full ScoringResult for one day given the z-scores and
// the instrument's prior raw-score history. Returns nil when no feature was
// included at all: an all-NaN day has no valid score, which is absent rather
// than zero.
func (s *Scorer) Score(zScores map[string]float64, history []float64, excluded []string) *models.ScoringResult {
	raw, contribs := s.RawScore(zScores, excluded)
	if len(contribs) == 0 {
		return nil
	}

	extended := append(append([]float64(nil), history...), raw)
	percentiles := s.PercentileScores(extended)
	pct := percentiles[len(percentiles)-1]

	return &models.ScoringResult{
		RawScore:        raw,
		PercentileScore: pct,
		Interpretation:  s.Interpretation(pct),
		Contributions:   contribs,
		Excluded:        append([]string(nil), excluded...),
	}
}

// TopContributors returns the n largest contributions, descending.
func TopContributors(contribs map[string]float64, n int) []models.Contribution {
	out := make([]models.Contribution, 0, len(contribs))
	for f, v := range contribs {
		out = append(out, models.Contribution{Feature: f, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Feature < out[j].Feature
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
