package engine

import (
	"math"
	"testing"

	"mmlens/internal/domain/models"
)

func mustScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(63, nil)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return s
}

func TestNewScorerValidation(t *testing.T) {
	if _, err := NewScorer(0, nil); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
	if _, err := NewScorer(63, map[string]float64{}); err == nil {
		t.Fatalf("expected error for empty weight table")
	}
	if _, err := NewScorer(63, map[string]float64{"gex": 0.2}); err == nil {
		t.Fatalf("expected error for weights not summing to ~1")
	}
	if _, err := NewScorer(63, map[string]float64{"gex": -1, "dark_share": 2}); err == nil {
		t.Fatalf("expected error for negative weight")
	}
}

func TestRawScoreWeighting(t *testing.T) {
	s := mustScorer(t)
	raw, contribs := s.RawScore(map[string]float64{
		models.FeatureGEX:       2.5,
		models.FeatureDarkShare: -1.8,
		models.FeatureIVSkew:    0.5,
	}, nil)
	want := 0.25*2.5 + 0.25*1.8 + 0.15*0.5
	if math.Abs(raw-want) > 1e-12 {
		t.Fatalf("raw score = %v, want %v", raw, want)
	}
	if len(contribs) != 3 {
		t.Fatalf("expected 3 contributions, got %d", len(contribs))
	}
}

func TestRawScoreNoRenormalization(t *testing.T) {
	s := mustScorer(t)
	// Exclude dark_share: gex contribution must be unchanged, not rescaled.
	raw, contribs := s.RawScore(map[string]float64{
		models.FeatureGEX:       2.0,
		models.FeatureDarkShare: 2.0,
	}, []string{models.FeatureDarkShare})
	if raw != 0.25*2.0 {
		t.Fatalf("raw score = %v, want %v", raw, 0.25*2.0)
	}
	if _, ok := contribs[models.FeatureDarkShare]; ok {
		t.Fatalf("excluded feature must not contribute")
	}
}

func TestRawScoreNaNExcluded(t *testing.T) {
	s := mustScorer(t)
	raw, contribs := s.RawScore(map[string]float64{
		models.FeatureGEX:       math.NaN(),
		models.FeatureDarkShare: 1.0,
	}, nil)
	if raw != 0.25 {
		t.Fatalf("raw score = %v, want 0.25", raw)
	}
	if len(contribs) != 1 {
		t.Fatalf("NaN z-score must contribute 0")
	}
}

func TestRawScoreUnknownFeatureIgnored(t *testing.T) {
	s := mustScorer(t)
	raw, _ := s.RawScore(map[string]float64{models.FeatureVanna: 5.0}, nil)
	if raw != 0 {
		t.Fatalf("unweighted feature must contribute 0, got %v", raw)
	}
}

func TestPercentileScores(t *testing.T) {
	s := mustScorer(t)
	pct := s.PercentileScores([]float64{1.0, 1.5, 2.0, 1.2, 3.0})
	if pct[4] != 100 {
		t.Fatalf("highest score should rank 100, got %v", pct[4])
	}
	if pct[0] != 100 {
		t.Fatalf("single-element history ranks 100, got %v", pct[0])
	}
	// 1.2 ranks 2nd of 4 values <= it in {1.0, 1.5, 2.0, 1.2} -> 50.
	if pct[3] != 50 {
		t.Fatalf("pct[3] = %v, want 50", pct[3])
	}
}

func TestPercentileScoresNaN(t *testing.T) {
	s := mustScorer(t)
	pct := s.PercentileScores([]float64{math.NaN(), 1.0, math.NaN()})
	if !math.IsNaN(pct[0]) || !math.IsNaN(pct[2]) {
		t.Fatalf("NaN raw scores must yield NaN percentiles")
	}
	if pct[1] != 100 {
		t.Fatalf("NaN history entries are skipped, got %v", pct[1])
	}
}

func TestInterpretationBands(t *testing.T) {
	s := mustScorer(t)
	cases := []struct {
		pct  float64
		want models.InterpretationBand
	}{
		{0, models.BandNormal},
		{29.99, models.BandNormal},
		{30, models.BandElevated},
		{59.99, models.BandElevated},
		{60, models.BandUnusual},
		{79.99, models.BandUnusual},
		{80, models.BandExtreme},
		{100, models.BandExtreme},
	}
	for _, tc := range cases {
		if got := s.Interpretation(tc.pct); got != tc.want {
			t.Fatalf("Interpretation(%v) = %s, want %s", tc.pct, got, tc.want)
		}
	}
}

func TestScoreAbsentWhenAllExcluded(t *testing.T) {
	s := mustScorer(t)
	res := s.Score(map[string]float64{models.FeatureGEX: math.NaN()}, nil, nil)
	if res != nil {
		t.Fatalf("expected absent score for all-NaN day, got %+v", res)
	}
}

func TestContributionBound(t *testing.T) {
	s := mustScorer(t)
	z := map[string]float64{
		models.FeatureGEX:            1.7,
		models.FeatureDarkShare:      -2.3,
		models.FeatureVenueMix:       0.4,
		models.FeatureBlockIntensity: math.NaN(),
	}
	_, contribs := s.RawScore(z, nil)
	maxAbs := 2.3
	var total, weightSum float64
	for f, c := range contribs {
		total += c
		weightSum += DefaultWeights[f]
	}
	if total > weightSum*maxAbs+1e-12 {
		t.Fatalf("sum of contributions %v exceeds bound %v", total, weightSum*maxAbs)
	}
}

func TestTopContributors(t *testing.T) {
	top := TopContributors(map[string]float64{
		"gex": 0.625, "dark_share": 0.45, "iv_skew": 0.075, "venue_mix": 0.02,
	}, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 contributors, got %d", len(top))
	}
	if top[0].Feature != "gex" || top[1].Feature != "dark_share" {
		t.Fatalf("unexpected ranking: %+v", top)
	}
}
