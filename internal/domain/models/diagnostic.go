package models

import "fmt"

// ExcludedFeature records a feature left out of the day's computation together
// with a human-readable reason, e.g. "n = 9 < 21" or "NaN value".
type ExcludedFeature struct {
	Feature string `json:"feature"`
	Reason  string `json:"reason"`
}

func (e ExcludedFeature) String() string {
	return fmt.Sprintf("%s (%s)", e.Feature, e.Reason)
}

// DiagnosticOutput is the complete diagnostic record for one (ticker, date).
// Immutable once produced; both the structured and the text rendering derive
// from this value alone.
type DiagnosticOutput struct {
	Ticker        string            `json:"ticker"`
	Date          string            `json:"date"` // YYYY-MM-DD
	RegimeResult  RegimeResult      `json:"regime"`
	ScoringResult *ScoringResult    `json:"unusualness,omitempty"` // absent when no valid score exists
	Excluded      []ExcludedFeature `json:"excluded_features"`
	BaselineState BaselineState     `json:"baseline_state"`

	// ZScores and RawFeatures carry the inputs forward for the universe
	// stress check; they are not part of the rendered explanation.
	ZScores     map[string]float64 `json:"z_scores,omitempty"`
	RawFeatures map[string]float64 `json:"raw_features,omitempty"`
}
