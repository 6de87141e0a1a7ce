package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmlens/internal/domain/models"
	"mmlens/internal/engine"
)

// memFeatureStore is an in-memory FeatureStore for tests. Series are keyed by
// ticker|feature and stored in date order.
type memFeatureStore struct {
	mu     sync.Mutex
	series map[string][]models.FeaturePoint
	fail   bool
}

func newMemFeatureStore() *memFeatureStore {
	return &memFeatureStore{series: make(map[string][]models.FeaturePoint)}
}

// add stores vals on consecutive calendar days ending at end.
func (m *memFeatureStore) add(ticker, feature string, end time.Time, vals ...float64) {
	pts := make([]models.FeaturePoint, len(vals))
	for i, v := range vals {
		pts[i] = models.FeaturePoint{
			Date:  end.AddDate(0, 0, -(len(vals) - 1 - i)),
			Value: v,
		}
	}
	m.mu.Lock()
	m.series[ticker+"|"+feature] = pts
	m.mu.Unlock()
}

func (m *memFeatureStore) GetSeries(ctx context.Context, ticker, feature string, from, to time.Time) (models.FeatureSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return models.FeatureSeries{}, fmt.Errorf("store down")
	}
	out := models.FeatureSeries{Ticker: ticker, Feature: feature}
	for _, p := range m.series[ticker+"|"+feature] {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out.Points = append(out.Points, p)
		}
	}
	return out, nil
}

func (m *memFeatureStore) Store(ctx context.Context, r *models.FeatureRecord) error { return nil }
func (m *memFeatureStore) StoreBatch(ctx context.Context, rs []*models.FeatureRecord) error {
	return nil
}
func (m *memFeatureStore) Health(ctx context.Context) error { return nil }

// fakeMetrics counts recorder calls. Safe for concurrent use.
type fakeMetrics struct {
	mu          sync.Mutex
	errors      map[string]int
	diagnostics map[string]int
	focusSize   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: make(map[string]int), diagnostics: make(map[string]int)}
}

func (f *fakeMetrics) RecordDiagnostic(regime, ticker string) {
	f.mu.Lock()
	f.diagnostics[regime]++
	f.mu.Unlock()
}
func (f *fakeMetrics) RecordUnusualness(ticker string, score float64) {}
func (f *fakeMetrics) RecordFocusSize(n int) {
	f.mu.Lock()
	f.focusSize = n
	f.mu.Unlock()
}
func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	f.errors[kind]++
	f.mu.Unlock()
}
func (f *fakeMetrics) RecordLatency(op string, seconds float64) {}
func (f *fakeMetrics) RecordMessageSent(backend, ticker string) {}

func (f *fakeMetrics) errorCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[kind]
}

func newTestProcessor(t *testing.T, store *memFeatureStore, m *fakeMetrics) *DiagnosticProcessor {
	t.Helper()
	baseline, err := engine.NewBaseline(63, 21, 0.10)
	require.NoError(t, err)
	scorer, err := engine.NewScorer(63, nil)
	require.NoError(t, err)
	return NewDiagnosticProcessor(store, baseline, scorer, engine.NewClassifier(), engine.NewExplainer(), m, 120)
}

// varied produces n mildly varying values around center so the window std is
// never zero.
func varied(center float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = center + 0.01*float64(i%5)
	}
	return out
}

func TestRunFullNoDataYieldsUndetermined(t *testing.T) {
	store := newMemFeatureStore()
	m := newFakeMetrics()
	proc := newTestProcessor(t, store, m)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	out := proc.RunFull(context.Background(), "XYZ", date)

	require.NotNil(t, out)
	assert.Equal(t, "XYZ", out.Ticker)
	assert.Equal(t, "2024-03-15", out.Date)
	assert.Equal(t, models.RegimeUndetermined, out.RegimeResult.Regime)
	assert.False(t, out.RegimeResult.BaselineSufficient)
	assert.Equal(t, models.BaselineEmpty, out.BaselineState)
	assert.Nil(t, out.ScoringResult)
	assert.Len(t, out.Excluded, len(models.AllFeatures))
}

func TestRunFullPartialHistory(t *testing.T) {
	store := newMemFeatureStore()
	m := newFakeMetrics()
	proc := newTestProcessor(t, store, m)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	store.add("AAPL", models.FeatureDarkShare, date, varied(0.40, 41)...)
	store.add("AAPL", models.FeatureGEX, date, varied(1.0, 41)...)

	out := proc.RunFull(context.Background(), "AAPL", date)
	require.NotNil(t, out)

	assert.Equal(t, models.BaselinePartial, out.BaselineState)
	assert.True(t, out.RegimeResult.BaselineSufficient)
	assert.NotEqual(t, models.RegimeUndetermined, out.RegimeResult.Regime)

	require.NotNil(t, out.ScoringResult)
	assert.False(t, math.IsNaN(out.ScoringResult.RawScore))
	assert.GreaterOrEqual(t, out.ScoringResult.PercentileScore, 0.0)
	assert.LessOrEqual(t, out.ScoringResult.PercentileScore, 100.0)
	assert.Contains(t, out.ScoringResult.Contributions, models.FeatureDarkShare)
	assert.Contains(t, out.ScoringResult.Contributions, models.FeatureGEX)
	assert.NotContains(t, out.ScoringResult.Contributions, models.FeatureVenueMix)

	// The eight absent features are excluded with a zero count.
	assert.Len(t, out.Excluded, len(models.AllFeatures)-2)
	for _, e := range out.Excluded {
		assert.Equal(t, "n = 0 < 21", e.Reason)
	}
}

func TestRunFullFetchFailureDegrades(t *testing.T) {
	store := newMemFeatureStore()
	store.fail = true
	m := newFakeMetrics()
	proc := newTestProcessor(t, store, m)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	out := proc.RunFull(context.Background(), "AAPL", date)

	// Every fetch fails but the run still produces an UND record.
	require.NotNil(t, out)
	assert.Equal(t, models.RegimeUndetermined, out.RegimeResult.Regime)
	assert.GreaterOrEqual(t, m.errorCount("feature_fetch"), len(models.AllFeatures))
}

func TestRunFullDeterministic(t *testing.T) {
	store := newMemFeatureStore()
	m := newFakeMetrics()
	proc := newTestProcessor(t, store, m)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, f := range models.AllFeatures {
		store.add("SPY", f, date, varied(0.5, 45)...)
	}
	store.add("SPY", models.FeatureClose, date, varied(450, 45)...)

	a := proc.RunFull(context.Background(), "SPY", date)
	b := proc.RunFull(context.Background(), "SPY", date)
	require.Equal(t, a, b)
}

func TestRunScanComputesStressSubsetOnly(t *testing.T) {
	store := newMemFeatureStore()
	m := newFakeMetrics()
	proc := newTestProcessor(t, store, m)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	// 30 quiet days then a violent gex print today.
	vals := make([]float64, 0, 31)
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			vals = append(vals, 0.1)
		} else {
			vals = append(vals, -0.1)
		}
	}
	vals = append(vals, 5.0)
	store.add("NVDA", models.FeatureGEX, date, vals...)

	out := proc.RunScan(context.Background(), "NVDA", date)
	require.NotNil(t, out)
	assert.Equal(t, "NVDA", out.Ticker)
	assert.Equal(t, "2024-03-15", out.Date)
	assert.Nil(t, out.ScoringResult)
	assert.Len(t, out.ZScores, len(models.ScanFeatures))

	assert.GreaterOrEqual(t, out.ZScores[models.FeatureGEX], 2.0)
	assert.Equal(t, 5.0, out.RawFeatures[models.FeatureGEX])
	assert.True(t, math.IsNaN(out.ZScores[models.FeatureDarkShare]))
}
