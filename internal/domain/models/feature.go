package models

import (
	"math"
	"time"
)

// Canonical microstructure feature names. Keys into FeatureSeries maps,
// z-score maps and the scorer weight table.
const (
	FeatureDarkShare      = "dark_share"
	FeatureGEX            = "gex"
	FeatureDEX            = "dex"
	FeatureVenueMix       = "venue_mix"
	FeatureBlockIntensity = "block_intensity"
	FeatureIVSkew         = "iv_skew"
	FeatureEfficiency     = "efficiency"
	FeatureImpact         = "impact"
	FeatureVanna          = "vanna"
	FeatureCharm          = "charm"

	// FeatureClose is the daily close price. It is an input to the daily
	// return, not a diagnostic feature, so it is absent from AllFeatures.
	FeatureClose = "close"
)

// AllFeatures lists every feature the store may hold, in canonical order.
var AllFeatures = []string{
	FeatureDarkShare,
	FeatureGEX,
	FeatureDEX,
	FeatureVenueMix,
	FeatureBlockIntensity,
	FeatureIVSkew,
	FeatureEfficiency,
	FeatureImpact,
	FeatureVanna,
	FeatureCharm,
}

// ScanFeatures is the cheap subset evaluated during the pass-2 stress scan.
var ScanFeatures = []string{
	FeatureGEX,
	FeatureDarkShare,
	FeatureBlockIntensity,
}

// FeaturePoint is one (date, value) observation. Value may be NaN; NaN means
// missing and is never interpolated.
type FeaturePoint struct {
	Date  time.Time
	Value float64
}

// FeatureSeries is an ordered-by-date sequence of observations for one
// (ticker, feature) pair. Instrument isolation is an invariant: a series never
// mixes tickers.
type FeatureSeries struct {
	Ticker  string
	Feature string
	Points  []FeaturePoint
}

// Values returns the raw value slice in date order.
func (s FeatureSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Last returns the most recent value, or NaN for an empty series.
func (s FeatureSeries) Last() float64 {
	if len(s.Points) == 0 {
		return math.NaN()
	}
	return s.Points[len(s.Points)-1].Value
}

// FeatureRecord is a single ingested observation as delivered by the feed or
// the Kafka features topic.
type FeatureRecord struct {
	Ticker  string  `json:"ticker"`
	Feature string  `json:"feature"`
	Date    string  `json:"date"` // YYYY-MM-DD
	Value   float64 `json:"value"`
}
