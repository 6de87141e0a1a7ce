package engine

import (
	"fmt"
	"math"
	"sort"

	"mmlens/internal/domain/models"
)

// Baseline computes per-instrument rolling statistics and z-scores. It uses
// an expanding window while fewer than Window observations exist (cold start)
// and a trailing rolling window of exactly Window thereafter. Statistics use
// only non-NaN observations; below MinPeriods the stats are invalid and the
// z-score is NaN. Baselines are never shared across instruments.
type Baseline struct {
	window         int
	minPeriods     int
	driftThreshold float64
}

// NewBaseline validates the configuration and returns a Baseline.
func NewBaseline(window, minPeriods int, driftThreshold float64) (*Baseline, error) {
	if window < minPeriods {
		return nil, fmt.Errorf("baseline: window (%d) must be >= min periods (%d)", window, minPeriods)
	}
	if minPeriods < 2 {
		return nil, fmt.Errorf("baseline: min periods (%d) must be >= 2 for std calculation", minPeriods)
	}
	if driftThreshold <= 0 || driftThreshold > 1 {
		return nil, fmt.Errorf("baseline: drift threshold (%v) must be in (0, 1]", driftThreshold)
	}
	return &Baseline{window: window, minPeriods: minPeriods, driftThreshold: driftThreshold}, nil
}

func (b *Baseline) Window() int     { return b.window }
func (b *Baseline) MinPeriods() int { return b.minPeriods }

// ComputeStatistics returns one BaselineStats per input date.
func (b *Baseline) ComputeStatistics(values []float64) []models.BaselineStats {
	out := make([]models.BaselineStats, len(values))
	for i := range values {
		start := 0
		if i >= b.window {
			start = i - b.window + 1
		}
		out[i] = b.windowStats(values[start : i+1])
	}
	return out
}

// windowStats computes mean, sample std and median over the non-NaN values of
// one window slice.
func (b *Baseline) windowStats(window []float64) models.BaselineStats {
	valid := make([]float64, 0, len(window))
	for _, v := range window {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	n := len(valid)
	if n < b.minPeriods {
		return models.InvalidBaselineStats(n)
	}

	var sum float64
	for _, v := range valid {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range valid {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(n-1))

	sorted := append([]float64(nil), valid...)
	sort.Float64s(sorted)
	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	// Zero variance means the feature is constant in window: z-score is
	// undefined, so the baseline is not valid for scoring.
	valid2 := std > 0
	return models.BaselineStats{Mean: mean, Std: std, Median: median, NValid: n, Valid: valid2}
}

// ComputeZScores returns z = (x - mean) / std per date, using the stats valid
// as of the same date (no look-ahead). NaN where the input is NaN or the
// baseline is invalid.
func (b *Baseline) ComputeZScores(values []float64) []float64 {
	stats := b.ComputeStatistics(values)
	out := make([]float64, len(values))
	for i, v := range values {
		s := stats[i]
		if math.IsNaN(v) || !s.Valid {
			out[i] = math.NaN()
			continue
		}
		out[i] = (v - s.Mean) / s.Std
	}
	return out
}

// State derives the baseline state from per-feature valid-observation counts.
func (b *Baseline) State(featureCounts map[string]int) models.BaselineState {
	if len(featureCounts) == 0 {
		return models.BaselineEmpty
	}
	all, any := true, false
	for _, n := range featureCounts {
		if n >= b.minPeriods {
			any = true
		} else {
			all = false
		}
	}
	switch {
	case all:
		return models.BaselineComplete
	case any:
		return models.BaselinePartial
	default:
		return models.BaselineEmpty
	}
}

// DetectDrift reports whether the relative mean change between consecutive
// periods exceeds the drift threshold. Informational only: drift never blocks
// or alters computation.
func (b *Baseline) DetectDrift(currentMean, previousMean float64) bool {
	if math.IsNaN(currentMean) || math.IsNaN(previousMean) {
		return false
	}
	if previousMean == 0 {
		return currentMean != 0
	}
	return math.Abs((currentMean-previousMean)/previousMean) > b.driftThreshold
}

// ExcludedFeatures lists features whose valid count is below MinPeriods,
// sorted by count ascending. The reason string reports the shortfall,
// e.g. "n = 9 < 21".
func (b *Baseline) ExcludedFeatures(featureCounts map[string]int) []models.ExcludedFeature {
	out := make([]models.ExcludedFeature, 0)
	for name, n := range featureCounts {
		if n < b.minPeriods {
			out = append(out, models.ExcludedFeature{
				Feature: name,
				Reason:  fmt.Sprintf("n = %d < %d", n, b.minPeriods),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := featureCounts[out[i].Feature], featureCounts[out[j].Feature]
		if ci != cj {
			return ci < cj
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}
