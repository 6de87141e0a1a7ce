package engine

import (
	"math"

	"mmlens/internal/domain/models"
)

// Fixed classification thresholds. Strict inequalities throughout: a value
// exactly at a threshold does not match.
const (
	zGEXThreshold     = 1.5
	zBlockThreshold   = 1.0
	zDEXThreshold     = 1.0
	darkShareDDFloor  = 0.70
	darkShareABSFloor = 0.50
	returnABSCap      = -0.005 // ABS requires daily return >= -0.5%
	returnDISTCap     = 0.005  // DIST requires daily return <= +0.5%
)

// ClassifierInput carries everything the decision list needs for one
// instrument-day.
type ClassifierInput struct {
	ZScores         map[string]float64
	RawFeatures     map[string]float64
	BaselineMedians map[string]float64
	DailyReturn     float64
	// BaselineSufficient is false when the baseline state is EMPTY; the
	// classifier then returns UND without evaluating any rule.
	BaselineSufficient bool
}

// Classifier assigns one of the seven regimes via a priority-ordered decision
// list. Pure and stateless: identical inputs always yield identical results.
type Classifier struct {
	rules []rule
}

type rule struct {
	regime models.Regime
	eval   func(in ClassifierInput) ([]models.Condition, bool)
}

// NewClassifier builds the fixed, ordered rule list. First match wins.
func NewClassifier() *Classifier {
	return &Classifier{rules: []rule{
		{models.RegimeGammaPositive, evalGammaPositive},
		{models.RegimeGammaNegative, evalGammaNegative},
		{models.RegimeDarkDominant, evalDarkDominant},
		{models.RegimeAbsorption, evalAbsorption},
		{models.RegimeDistribution, evalDistribution},
	}}
}

// Classify evaluates the rules in fixed order and returns the first match,
// NEU when nothing matched, or UND immediately when the baseline is
// insufficient.
func (c *Classifier) Classify(in ClassifierInput) models.RegimeResult {
	if !in.BaselineSufficient {
		return models.RegimeResult{
			Regime:             models.RegimeUndetermined,
			Conditions:         nil,
			Interpretation:     models.RegimeUndetermined.Interpretation(),
			BaselineSufficient: false,
		}
	}

	for _, r := range c.rules {
		conds, matched := r.eval(in)
		if matched {
			return models.RegimeResult{
				Regime:             r.regime,
				Conditions:         conds,
				Interpretation:     r.regime.Interpretation(),
				BaselineSufficient: true,
			}
		}
	}

	return models.RegimeResult{
		Regime:             models.RegimeNeutral,
		Conditions:         nil,
		Interpretation:     models.RegimeNeutral.Interpretation(),
		BaselineSufficient: true,
	}
}

func get(m map[string]float64, key string) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return math.NaN()
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Γ+: Z_GEX > +1.5 AND efficiency < median(efficiency).
func evalGammaPositive(in ClassifierInput) ([]models.Condition, bool) {
	zGEX := get(in.ZScores, models.FeatureGEX)
	eff := get(in.RawFeatures, models.FeatureEfficiency)
	effMed := get(in.BaselineMedians, models.FeatureEfficiency)
	if anyNaN(zGEX, eff, effMed) {
		return nil, false
	}
	c1 := zGEX > zGEXThreshold
	c2 := eff < effMed
	conds := []models.Condition{
		{Name: "Z_GEX", Observed: zGEX, Threshold: zGEXThreshold, Matched: c1},
		{Name: "Efficiency_vs_median", Observed: eff, Threshold: effMed, Matched: c2},
	}
	return conds, c1 && c2
}

// Γ-: Z_GEX < -1.5 AND impact > median(impact).
func evalGammaNegative(in ClassifierInput) ([]models.Condition, bool) {
	zGEX := get(in.ZScores, models.FeatureGEX)
	impact := get(in.RawFeatures, models.FeatureImpact)
	impactMed := get(in.BaselineMedians, models.FeatureImpact)
	if anyNaN(zGEX, impact, impactMed) {
		return nil, false
	}
	c1 := zGEX < -zGEXThreshold
	c2 := impact > impactMed
	conds := []models.Condition{
		{Name: "Z_GEX", Observed: zGEX, Threshold: -zGEXThreshold, Matched: c1},
		{Name: "Impact_vs_median", Observed: impact, Threshold: impactMed, Matched: c2},
	}
	return conds, c1 && c2
}

// DD: dark_share > 0.70 AND Z_block > +1.0.
func evalDarkDominant(in ClassifierInput) ([]models.Condition, bool) {
	dark := get(in.RawFeatures, models.FeatureDarkShare)
	zBlock := get(in.ZScores, models.FeatureBlockIntensity)
	if anyNaN(dark, zBlock) {
		return nil, false
	}
	c1 := dark > darkShareDDFloor
	c2 := zBlock > zBlockThreshold
	conds := []models.Condition{
		{Name: "DarkShare", Observed: dark, Threshold: darkShareDDFloor, Matched: c1},
		{Name: "Z_block", Observed: zBlock, Threshold: zBlockThreshold, Matched: c2},
	}
	return conds, c1 && c2
}

// ABS: Z_DEX < -1.0 AND daily return >= -0.005 AND dark_share > 0.50.
func evalAbsorption(in ClassifierInput) ([]models.Condition, bool) {
	zDEX := get(in.ZScores, models.FeatureDEX)
	dark := get(in.RawFeatures, models.FeatureDarkShare)
	if anyNaN(zDEX, in.DailyReturn, dark) {
		return nil, false
	}
	c1 := zDEX < -zDEXThreshold
	c2 := in.DailyReturn >= returnABSCap
	c3 := dark > darkShareABSFloor
	conds := []models.Condition{
		{Name: "Z_DEX", Observed: zDEX, Threshold: -zDEXThreshold, Matched: c1},
		{Name: "Daily_return", Observed: in.DailyReturn, Threshold: returnABSCap, Matched: c2},
		{Name: "DarkShare", Observed: dark, Threshold: darkShareABSFloor, Matched: c3},
	}
	return conds, c1 && c2 && c3
}

// DIST: Z_DEX > +1.0 AND daily return <= +0.005.
func evalDistribution(in ClassifierInput) ([]models.Condition, bool) {
	zDEX := get(in.ZScores, models.FeatureDEX)
	if anyNaN(zDEX, in.DailyReturn) {
		return nil, false
	}
	c1 := zDEX > zDEXThreshold
	c2 := in.DailyReturn <= returnDISTCap
	conds := []models.Condition{
		{Name: "Z_DEX", Observed: zDEX, Threshold: zDEXThreshold, Matched: c1},
		{Name: "Daily_return", Observed: in.DailyReturn, Threshold: returnDISTCap, Matched: c2},
	}
	return conds, c1 && c2
}
