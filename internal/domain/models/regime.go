package models

// Regime is one of the seven mutually exclusive daily classifications.
type Regime string

const (
	RegimeGammaPositive Regime = "Γ+"   // dealers long gamma, volatility suppression
	RegimeGammaNegative Regime = "Γ-"   // dealers short gamma, liquidity vacuum
	RegimeDarkDominant  Regime = "DD"   // dark-dominant accumulation
	RegimeAbsorption    Regime = "ABS"  // sell pressure absorbed
	RegimeDistribution  Regime = "DIST" // buy pressure distributed into strength
	RegimeNeutral       Regime = "NEU"  // no dominant pattern
	RegimeUndetermined  Regime = "UND"  // insufficient data
)

// Description returns the long-form regime name.
func (r Regime) Description() string {
	switch r {
	case RegimeGammaPositive:
		return "Gamma-Positive Control"
	case RegimeGammaNegative:
		return "Gamma-Negative Liquidity Vacuum"
	case RegimeDarkDominant:
		return "Dark-Dominant Accumulation"
	case RegimeAbsorption:
		return "Absorption-Like"
	case RegimeDistribution:
		return "Distribution-Like"
	case RegimeNeutral:
		return "Neutral / Mixed"
	case RegimeUndetermined:
		return "Undetermined"
	}
	return string(r)
}

// Interpretation returns the microstructure reading of the regime.
func (r Regime) Interpretation() string {
	switch r {
	case RegimeGammaPositive:
		return "Dealers are significantly long gamma. Their hedging activity compresses the intraday range, resulting in below-normal price efficiency. Volatility suppression regime."
	case RegimeGammaNegative:
		return "Dealers are significantly short gamma. Their hedging amplifies directional moves. Above-normal price impact per unit volume signals a liquidity vacuum."
	case RegimeDarkDominant:
		return "More than 70% of volume is executing off-exchange, with block-print intensity elevated above +1 sigma. Consistent with institutional positioning via dark liquidity."
	case RegimeAbsorption:
		return "Net delta exposure is significantly negative (sell pressure), but the daily close-to-close move is no worse than -0.5%, and dark pool participation exceeds 50%. Passive buying is absorbing the sell flow."
	case RegimeDistribution:
		return "Net delta exposure is significantly positive (buy pressure), but the daily move is no better than +0.5%. Supply is being distributed into strength without upside follow-through."
	case RegimeNeutral:
		return "No single microstructure pattern dominates. The instrument is in a balanced or ambiguous state."
	case RegimeUndetermined:
		return "System cannot classify. Diagnosis withheld."
	}
	return ""
}

// Condition records one evaluated rule condition for explainability.
type Condition struct {
	Name      string  `json:"name"`
	Observed  float64 `json:"observed"`
	Threshold float64 `json:"threshold"`
	Matched   bool    `json:"matched"`
}

// RegimeResult is the classifier output for one instrument-day.
type RegimeResult struct {
	Regime             Regime      `json:"regime"`
	Conditions         []Condition `json:"triggering_conditions"`
	Interpretation     string      `json:"interpretation"`
	BaselineSufficient bool        `json:"baseline_sufficient"`
}
