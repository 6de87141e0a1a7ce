package engine

import (
	"math"
	"testing"

	"mmlens/internal/domain/models"
)

func mustBaseline(t *testing.T) *Baseline {
	t.Helper()
	b, err := NewBaseline(63, 21, 0.10)
	if err != nil {
		t.Fatalf("NewBaseline: %v", err)
	}
	return b
}

func TestNewBaselineValidation(t *testing.T) {
	if _, err := NewBaseline(10, 21, 0.10); err == nil {
		t.Fatalf("expected error for window < min periods")
	}
	if _, err := NewBaseline(63, 1, 0.10); err == nil {
		t.Fatalf("expected error for min periods < 2")
	}
	if _, err := NewBaseline(63, 21, 0); err == nil {
		t.Fatalf("expected error for zero drift threshold")
	}
	if _, err := NewBaseline(63, 21, 1.5); err == nil {
		t.Fatalf("expected error for drift threshold > 1")
	}
}

func TestComputeStatisticsColdStart(t *testing.T) {
	b := mustBaseline(t)
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i)
	}
	stats := b.ComputeStatistics(values)

	// Below min periods: invalid, NaN stats.
	if stats[10].Valid {
		t.Fatalf("expected invalid stats at t=10, n=%d", stats[10].NValid)
	}
	if !math.IsNaN(stats[10].Mean) {
		t.Fatalf("expected NaN mean at t=10, got %v", stats[10].Mean)
	}

	// At t=20 the expanding window holds 21 observations 0..20.
	s := stats[20]
	if !s.Valid || s.NValid != 21 {
		t.Fatalf("expected valid stats with n=21 at t=20, got valid=%v n=%d", s.Valid, s.NValid)
	}
	if s.Mean != 10 {
		t.Fatalf("expected mean 10, got %v", s.Mean)
	}
	if s.Median != 10 {
		t.Fatalf("expected median 10, got %v", s.Median)
	}
}

func TestComputeStatisticsRollingWindow(t *testing.T) {
	b := mustBaseline(t)
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	stats := b.ComputeStatistics(values)

	// Past the window the mean must trail: window [37..99] -> mean 68.
	s := stats[99]
	if s.NValid != 63 {
		t.Fatalf("expected trailing window of 63, got %d", s.NValid)
	}
	if s.Mean != 68 {
		t.Fatalf("expected trailing mean 68, got %v", s.Mean)
	}
}

func TestComputeStatisticsIgnoresNaN(t *testing.T) {
	b := mustBaseline(t)
	values := make([]float64, 30)
	for i := range values {
		if i%2 == 0 {
			values[i] = float64(i)
		} else {
			values[i] = math.NaN()
		}
	}
	stats := b.ComputeStatistics(values)
	// Only 15 non-NaN observations in 30 days: below min periods.
	if stats[29].Valid {
		t.Fatalf("expected invalid stats with sparse data, n=%d", stats[29].NValid)
	}
	if stats[29].NValid != 15 {
		t.Fatalf("expected 15 valid observations, got %d", stats[29].NValid)
	}
}

func TestComputeZScores(t *testing.T) {
	b := mustBaseline(t)
	values := make([]float64, 40)
	for i := range values {
		values[i] = 1.0
	}
	values[39] = 2.0
	zs := b.ComputeZScores(values)

	// Constant history: std=0, so baseline invalid and z NaN everywhere
	// before the jump.
	if !math.IsNaN(zs[30]) {
		t.Fatalf("expected NaN z for zero-variance window, got %v", zs[30])
	}

	// A series with real variance produces finite z-scores after warmup.
	values2 := make([]float64, 40)
	for i := range values2 {
		values2[i] = float64(i % 7)
	}
	zs2 := b.ComputeZScores(values2)
	if math.IsNaN(zs2[39]) {
		t.Fatalf("expected finite z at t=39")
	}

	// NaN input propagates.
	values2[39] = math.NaN()
	zs2 = b.ComputeZScores(values2)
	if !math.IsNaN(zs2[39]) {
		t.Fatalf("expected NaN z for NaN input")
	}
}

func TestBaselineState(t *testing.T) {
	b := mustBaseline(t)
	cases := []struct {
		counts map[string]int
		want   models.BaselineState
	}{
		{map[string]int{"gex": 25, "dark_share": 30}, models.BaselineComplete},
		{map[string]int{"gex": 25, "vanna": 15}, models.BaselinePartial},
		{map[string]int{"vanna": 10, "charm": 8}, models.BaselineEmpty},
		{map[string]int{}, models.BaselineEmpty},
	}
	for _, tc := range cases {
		if got := b.State(tc.counts); got != tc.want {
			t.Fatalf("State(%v) = %s, want %s", tc.counts, got, tc.want)
		}
	}
}

func TestDetectDrift(t *testing.T) {
	b := mustBaseline(t)
	if b.DetectDrift(1.05, 1.0) {
		t.Fatalf("5%% change should not be drift at threshold 0.10")
	}
	if !b.DetectDrift(1.11, 1.0) {
		t.Fatalf("11%% change should be drift")
	}
	if b.DetectDrift(math.NaN(), 1.0) {
		t.Fatalf("NaN mean should never report drift")
	}
	if !b.DetectDrift(0.5, 0) {
		t.Fatalf("zero previous with non-zero current is drift")
	}
}

func TestExcludedFeatures(t *testing.T) {
	b := mustBaseline(t)
	out := b.ExcludedFeatures(map[string]int{"gex": 25, "vanna": 15, "charm": 9})
	if len(out) != 2 {
		t.Fatalf("expected 2 excluded features, got %d", len(out))
	}
	// Sorted by count ascending: charm (9) before vanna (15).
	if out[0].Feature != "charm" || out[0].Reason != "n = 9 < 21" {
		t.Fatalf("unexpected first exclusion: %+v", out[0])
	}
	if out[1].Feature != "vanna" {
		t.Fatalf("unexpected second exclusion: %+v", out[1])
	}
}
