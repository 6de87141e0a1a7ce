package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"mmlens/internal/domain/models"
	drepo "mmlens/internal/domain/repository"
	"mmlens/internal/engine"
	"mmlens/internal/services/features"
	"mmlens/pkg/util"
)

// DiagnosticProcessor runs the per-instrument pipeline: fetch the feature
// history, normalize against the instrument's own baseline, score, classify
// and assemble the diagnostic record. Each run touches only one instrument's
// series, so runs are safe to execute concurrently across instruments.
type DiagnosticProcessor struct {
	features   drepo.FeatureStore
	baseline   *engine.Baseline
	scorer     *engine.Scorer
	classifier *engine.Classifier
	explainer  *engine.Explainer
	metrics    drepo.Metrics
	// lookbackDays is the calendar-day fetch horizon; it must comfortably
	// cover the baseline window plus weekends and holidays.
	lookbackDays int
}

func NewDiagnosticProcessor(
	features drepo.FeatureStore,
	baseline *engine.Baseline,
	scorer *engine.Scorer,
	classifier *engine.Classifier,
	explainer *engine.Explainer,
	metrics drepo.Metrics,
	lookbackDays int,
) *DiagnosticProcessor {
	return &DiagnosticProcessor{
		features:     features,
		baseline:     baseline,
		scorer:       scorer,
		classifier:   classifier,
		explainer:    explainer,
		metrics:      metrics,
		lookbackDays: lookbackDays,
	}
}

// matrix is one instrument's feature history aligned on a shared date axis.
// Missing observations are NaN, never interpolated.
type matrix struct {
	dates  []string
	series map[string][]float64
}

func (m matrix) today() int { return len(m.dates) - 1 }

// loadMatrix fetches the requested features up to and including date and
// aligns them. A failed fetch degrades to an all-NaN column: missing data is
// reported, not recovered, and one instrument's gap never aborts the cycle.
func (p *DiagnosticProcessor) loadMatrix(ctx context.Context, ticker string, names []string, date time.Time) matrix {
	from := date.AddDate(0, 0, -p.lookbackDays)
	byDate := make(map[string]map[string]float64, len(names))
	dateSet := make(map[string]bool)

	for _, name := range names {
		s, err := p.features.GetSeries(ctx, ticker, name, from, date)
		if err != nil {
			p.metrics.RecordError("feature_fetch")
			continue
		}
		col := make(map[string]float64, len(s.Points))
		for _, pt := range s.Points {
			d := util.FormatDate(pt.Date)
			col[d] = pt.Value
			dateSet[d] = true
		}
		byDate[name] = col
	}

	todayKey := util.FormatDate(date)
	dateSet[todayKey] = true

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	series := make(map[string][]float64, len(names))
	for _, name := range names {
		col := byDate[name]
		vals := make([]float64, len(dates))
		for i, d := range dates {
			if v, ok := col[d]; ok {
				vals[i] = v
			} else {
				vals[i] = math.NaN()
			}
		}
		series[name] = vals
	}

	return matrix{dates: dates, series: series}
}

// dailyReturn computes close-to-close return for the last aligned day. NaN
// when either close is missing or non-positive.
func (p *DiagnosticProcessor) dailyReturn(ctx context.Context, ticker string, date time.Time) float64 {
	m := p.loadMatrix(ctx, ticker, []string{models.FeatureClose}, date)
	rets := features.DailyReturns(m.series[models.FeatureClose])
	if len(rets) == 0 {
		return math.NaN()
	}
	return rets[m.today()]
}

// RunFull executes the complete pipeline for one instrument-day and returns
// the diagnostic record. It never returns an error for missing data: an
// instrument with no usable history yields an UND record.
func (p *DiagnosticProcessor) RunFull(ctx context.Context, ticker string, date time.Time) *models.DiagnosticOutput {
	start := time.Now()
	m := p.loadMatrix(ctx, ticker, models.AllFeatures, date)
	t := m.today()

	zToday := make(map[string]float64, len(models.AllFeatures))
	rawToday := make(map[string]float64, len(models.AllFeatures))
	medians := make(map[string]float64)
	counts := make(map[string]int, len(models.AllFeatures))
	zHistory := make(map[string][]float64, len(models.AllFeatures))

	for _, name := range models.AllFeatures {
		vals := m.series[name]
		stats := p.baseline.ComputeStatistics(vals)
		zs := p.baseline.ComputeZScores(vals)

		zToday[name] = zs[t]
		rawToday[name] = vals[t]
		counts[name] = stats[t].NValid
		if stats[t].Valid {
			medians[name] = stats[t].Median
		}
		zHistory[name] = zs
	}

	excluded := p.baseline.ExcludedFeatures(counts)
	excludedNames := make([]string, len(excluded))
	for i, e := range excluded {
		excludedNames[i] = e.Feature
	}

	// Raw-score history for the percentile rank: one weighted sum per prior
	// day. Invalid days carry NaN z-scores and contribute nothing.
	rawHistory := make([]float64, 0, t)
	for i := 0; i < t; i++ {
		day := make(map[string]float64, len(models.AllFeatures))
		for name, zs := range zHistory {
			day[name] = zs[i]
		}
		raw, contribs := p.scorer.RawScore(day, nil)
		if len(contribs) == 0 {
			rawHistory = append(rawHistory, math.NaN())
		} else {
			rawHistory = append(rawHistory, raw)
		}
	}

	scoring := p.scorer.Score(zToday, rawHistory, excludedNames)
	state := p.baseline.State(counts)

	regime := p.classifier.Classify(engine.ClassifierInput{
		ZScores:            zToday,
		RawFeatures:        rawToday,
		BaselineMedians:    medians,
		DailyReturn:        p.dailyReturn(ctx, ticker, date),
		BaselineSufficient: state != models.BaselineEmpty,
	})

	out := p.explainer.Build(ticker, date, regime, scoring, excluded, state, zToday, rawToday)

	p.metrics.RecordDiagnostic(string(regime.Regime), ticker)
	if scoring != nil && !math.IsNaN(scoring.PercentileScore) {
		p.metrics.RecordUnusualness(ticker, scoring.PercentileScore)
	}
	p.metrics.RecordLatency("diagnose_full", time.Since(start).Seconds())
	return out
}

// RunScan computes only the cheap stress subset for the pass-2 scan. The
// returned record carries z-scores and raw values for the scan features and
// nothing else; it is never persisted or published.
func (p *DiagnosticProcessor) RunScan(ctx context.Context, ticker string, date time.Time) *models.DiagnosticOutput {
	start := time.Now()
	m := p.loadMatrix(ctx, ticker, models.ScanFeatures, date)
	t := m.today()

	zToday := make(map[string]float64, len(models.ScanFeatures))
	rawToday := make(map[string]float64, len(models.ScanFeatures))
	for _, name := range models.ScanFeatures {
		vals := m.series[name]
		zs := p.baseline.ComputeZScores(vals)
		zToday[name] = zs[t]
		rawToday[name] = vals[t]
	}

	p.metrics.RecordLatency("diagnose_scan", time.Since(start).Seconds())
	return &models.DiagnosticOutput{
		Ticker:      ticker,
		Date:        util.FormatDate(date),
		ZScores:     zToday,
		RawFeatures: rawToday,
	}
}
