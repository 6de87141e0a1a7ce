package models

import "math"

// BaselineState summarizes data sufficiency across all features of an
// instrument on a given day. Derived from per-feature counts, never stored.
type BaselineState string

const (
	BaselineEmpty    BaselineState = "EMPTY"    // all features below min periods
	BaselinePartial  BaselineState = "PARTIAL"  // mixed
	BaselineComplete BaselineState = "COMPLETE" // all features at or above min periods
)

// Sufficient reports whether the classifier may run at all. EMPTY means
// diagnosis is withheld (UND).
func (s BaselineState) Sufficient() bool {
	return s == BaselinePartial || s == BaselineComplete
}

// BaselineStats holds the rolling statistics for one feature at one date.
// Valid is true iff NValid >= minPeriods and Std > 0; when false, Mean, Std
// and Median are NaN and the downstream z-score is NaN.
type BaselineStats struct {
	Mean   float64
	Std    float64
	Median float64
	NValid int
	Valid  bool
}

// InvalidBaselineStats is the stats value for an insufficient window.
func InvalidBaselineStats(n int) BaselineStats {
	return BaselineStats{
		Mean:   math.NaN(),
		Std:    math.NaN(),
		Median: math.NaN(),
		NValid: n,
		Valid:  false,
	}
}
