package engine

import (
	"math"
	"testing"

	"mmlens/internal/domain/models"
)

func TestClassifyUndeterminedOverridesAll(t *testing.T) {
	c := NewClassifier()
	// Inputs that would otherwise match Gamma-Negative.
	in := ClassifierInput{
		ZScores:            map[string]float64{models.FeatureGEX: -2.31},
		RawFeatures:        map[string]float64{models.FeatureImpact: 0.0087},
		BaselineMedians:    map[string]float64{models.FeatureImpact: 0.0052},
		DailyReturn:        -0.015,
		BaselineSufficient: false,
	}
	res := c.Classify(in)
	if res.Regime != models.RegimeUndetermined {
		t.Fatalf("insufficient baseline must yield UND, got %s", res.Regime)
	}
	if res.BaselineSufficient {
		t.Fatalf("BaselineSufficient must be false on UND")
	}
}

func TestClassifyGammaNegative(t *testing.T) {
	c := NewClassifier()
	in := ClassifierInput{
		ZScores:            map[string]float64{models.FeatureGEX: -2.31},
		RawFeatures:        map[string]float64{models.FeatureImpact: 0.0087},
		BaselineMedians:    map[string]float64{models.FeatureImpact: 0.0052},
		DailyReturn:        -0.015,
		BaselineSufficient: true,
	}
	res := c.Classify(in)
	if res.Regime != models.RegimeGammaNegative {
		t.Fatalf("expected Γ-, got %s", res.Regime)
	}
	if len(res.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(res.Conditions))
	}
	for _, cond := range res.Conditions {
		if !cond.Matched {
			t.Fatalf("condition %s should be matched: %+v", cond.Name, cond)
		}
	}
}

func TestClassifyBoundaryNotStrict(t *testing.T) {
	c := NewClassifier()
	// Z_GEX exactly at -1.5 does not satisfy the strict inequality.
	in := ClassifierInput{
		ZScores:            map[string]float64{models.FeatureGEX: -1.5},
		RawFeatures:        map[string]float64{models.FeatureImpact: 0.0087},
		BaselineMedians:    map[string]float64{models.FeatureImpact: 0.0052},
		DailyReturn:        -0.015,
		BaselineSufficient: true,
	}
	res := c.Classify(in)
	if res.Regime == models.RegimeGammaNegative {
		t.Fatalf("boundary value must not classify as Γ-")
	}
	if res.Regime != models.RegimeNeutral {
		t.Fatalf("expected NEU fallback, got %s", res.Regime)
	}
}

func TestClassifyDarkDominant(t *testing.T) {
	c := NewClassifier()
	in := ClassifierInput{
		ZScores: map[string]float64{
			models.FeatureGEX:            0.2,
			models.FeatureBlockIntensity: 1.5,
		},
		RawFeatures:        map[string]float64{models.FeatureDarkShare: 0.75},
		BaselineMedians:    map[string]float64{},
		DailyReturn:        0.001,
		BaselineSufficient: true,
	}
	res := c.Classify(in)
	if res.Regime != models.RegimeDarkDominant {
		t.Fatalf("expected DD, got %s", res.Regime)
	}
}

func TestClassifyGammaPositive(t *testing.T) {
	c := NewClassifier()
	in := ClassifierInput{
		ZScores:            map[string]float64{models.FeatureGEX: 2.1},
		RawFeatures:        map[string]float64{models.FeatureEfficiency: 0.4},
		BaselineMedians:    map[string]float64{models.FeatureEfficiency: 0.9},
		DailyReturn:        0.002,
		BaselineSufficient: true,
	}
	res := c.Classify(in)
	if res.Regime != models.RegimeGammaPositive {
		t.Fatalf("expected Γ+, got %s", res.Regime)
	}
}

func TestClassifyAbsorptionAndDistribution(t *testing.T) {
	c := NewClassifier()
	abs := ClassifierInput{
		ZScores:            map[string]float64{models.FeatureDEX: -1.4},
		RawFeatures:        map[string]float64{models.FeatureDarkShare: 0.55},
		BaselineMedians:    map[string]float64{},
		DailyReturn:        -0.002,
		BaselineSufficient: true,
	}
	if res := c.Classify(abs); res.Regime != models.RegimeAbsorption {
		t.Fatalf("expected ABS, got %s", res.Regime)
	}

	dist := ClassifierInput{
		ZScores:            map[string]float64{models.FeatureDEX: 1.6},
		RawFeatures:        map[string]float64{},
		BaselineMedians:    map[string]float64{},
		DailyReturn:        0.001,
		BaselineSufficient: true,
	}
	if res := c.Classify(dist); res.Regime != models.RegimeDistribution {
		t.Fatalf("expected DIST, got %s", res.Regime)
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	c := NewClassifier()
	// Inputs satisfying both Γ- and DD: Γ- is evaluated first and wins.
	in := ClassifierInput{
		ZScores: map[string]float64{
			models.FeatureGEX:            -2.0,
			models.FeatureBlockIntensity: 2.0,
		},
		RawFeatures: map[string]float64{
			models.FeatureImpact:    0.010,
			models.FeatureDarkShare: 0.80,
		},
		BaselineMedians:    map[string]float64{models.FeatureImpact: 0.005},
		DailyReturn:        -0.01,
		BaselineSufficient: true,
	}
	if res := c.Classify(in); res.Regime != models.RegimeGammaNegative {
		t.Fatalf("priority order broken: got %s, want Γ-", res.Regime)
	}
}

func TestClassifyNaNInputsFallThrough(t *testing.T) {
	c := NewClassifier()
	in := ClassifierInput{
		ZScores:            map[string]float64{models.FeatureGEX: math.NaN()},
		RawFeatures:        map[string]float64{},
		BaselineMedians:    map[string]float64{},
		DailyReturn:        math.NaN(),
		BaselineSufficient: true,
	}
	res := c.Classify(in)
	if res.Regime != models.RegimeNeutral {
		t.Fatalf("NaN inputs must fall through to NEU, got %s", res.Regime)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier()
	in := ClassifierInput{
		ZScores:            map[string]float64{models.FeatureGEX: -2.31, models.FeatureDEX: 0.3},
		RawFeatures:        map[string]float64{models.FeatureImpact: 0.0087, models.FeatureDarkShare: 0.4},
		BaselineMedians:    map[string]float64{models.FeatureImpact: 0.0052},
		DailyReturn:        -0.015,
		BaselineSufficient: true,
	}
	first := c.Classify(in)
	for i := 0; i < 10; i++ {
		got := c.Classify(in)
		if got.Regime != first.Regime || len(got.Conditions) != len(first.Conditions) {
			t.Fatalf("classification not deterministic: %s vs %s", got.Regime, first.Regime)
		}
	}
}
