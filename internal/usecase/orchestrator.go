package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mmlens/internal/domain/models"
	drepo "mmlens/internal/domain/repository"
	"mmlens/internal/universe"
	"mmlens/pkg/logger"
)

// CycleResult is the outcome of one daily diagnostic cycle.
type CycleResult struct {
	Snapshot    models.UniverseSnapshot
	Diagnostics map[string]*models.DiagnosticOutput
	Promoted    []string
	Expired     []string
	Evicted     []string
}

// Orchestrator drives the two-pass daily cycle. Pass 1 runs the full
// pipeline on CORE plus structural and event names; a hard barrier follows,
// then pass 2 scans the broad universe with the cheap feature subset and
// retroactively runs the full pipeline on anything that crossed a stress
// threshold. The universe snapshot is read-only throughout and mutated
// exactly once, at finalize.
type Orchestrator struct {
	proc      *DiagnosticProcessor
	manager   *universe.Manager
	refdata   drepo.ReferenceData
	diagStore drepo.DiagnosticStore
	uniStore  drepo.UniverseStore
	pub       drepo.Publisher
	metrics   drepo.Metrics
	log       *logger.Logger
	workers   int
}

func NewOrchestrator(
	proc *DiagnosticProcessor,
	manager *universe.Manager,
	refdata drepo.ReferenceData,
	diagStore drepo.DiagnosticStore,
	uniStore drepo.UniverseStore,
	pub drepo.Publisher,
	metrics drepo.Metrics,
	log *logger.Logger,
	workers int,
) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		proc:      proc,
		manager:   manager,
		refdata:   refdata,
		diagStore: diagStore,
		uniStore:  uniStore,
		pub:       pub,
		metrics:   metrics,
		log:       log,
		workers:   workers,
	}
}

// runBatch executes the full pipeline for a set of tickers on a bounded
// worker pool and returns all results before the caller proceeds. This is
// the pass barrier: nothing downstream sees a partial batch.
func (o *Orchestrator) runBatch(ctx context.Context, tickers []string, date time.Time) map[string]*models.DiagnosticOutput {
	out := make(map[string]*models.DiagnosticOutput, len(tickers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)

	for _, ticker := range tickers {
		wg.Add(1)
		sem <- struct{}{}
		go func(tk string) {
			defer wg.Done()
			defer func() { <-sem }()
			d := o.proc.RunFull(ctx, tk, date)
			mu.Lock()
			out[tk] = d
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()
	return out
}

// loadReference gathers the external structural and event signals. Every
// upstream failure degrades to an empty result; the cycle never aborts for
// missing reference data.
func (o *Orchestrator) loadReference(ctx context.Context, date time.Time) (map[string]universe.EntrySignal, map[string]universe.EntrySignal) {
	var constituents []models.ETFConstituent
	for etf, n := range universe.StructuralLimits {
		cs, err := o.refdata.TopConstituents(ctx, etf, n)
		if err != nil {
			o.metrics.RecordError("refdata_constituents")
			o.log.Warn("constituents unavailable", logger.String("etf", etf), logger.Error(err))
			continue
		}
		constituents = append(constituents, cs...)
	}

	events, err := o.refdata.EventsAround(ctx, date, universe.EventWindowDays)
	if err != nil {
		o.metrics.RecordError("refdata_events")
		o.log.Warn("calendar unavailable", logger.Error(err))
	}

	topOptions, err := o.refdata.TopByOptionsVolume(ctx, date, universe.TopOptionsCount)
	if err != nil {
		o.metrics.RecordError("refdata_options")
	}

	return universe.StructuralSignals(constituents), universe.EventSignals(date, events, topOptions)
}

// RunCycle executes one complete daily cycle and returns the new universe
// snapshot together with every full diagnostic produced.
func (o *Orchestrator) RunCycle(ctx context.Context, date time.Time) (CycleResult, error) {
	start := time.Now()

	prev, found, err := o.uniStore.LoadLatest(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("load universe: %w", err)
	}
	if !found {
		prev = models.NewUniverseSnapshot(date)
	}

	structuralSigs, eventSigs := o.loadReference(ctx, date)

	// Pass-1 selection: CORE, today's structural set, yesterday's structural
	// FOCUS, and event-qualified names. Read-only on prev.
	pass1Set := make(map[string]bool)
	for _, tk := range prev.Core {
		pass1Set[tk] = true
	}
	for tk := range structuralSigs {
		pass1Set[tk] = true
	}
	for tk, e := range prev.Focus {
		if e.Reason == models.ReasonStructural {
			pass1Set[tk] = true
		}
	}
	for tk := range eventSigs {
		pass1Set[tk] = true
	}
	pass1 := make([]string, 0, len(pass1Set))
	for tk := range pass1Set {
		pass1 = append(pass1, tk)
	}
	sort.Strings(pass1)

	diagnostics := o.runBatch(ctx, pass1, date)

	// Stress signals are evaluated only against committed pass-1 results.
	stressSigs := make(map[string]universe.EntrySignal)
	for tk, d := range diagnostics {
		if sig, ok := universe.StressSignal(d); ok {
			stressSigs[tk] = sig
		}
	}

	// Pass 2: cheap scan over the broad universe minus the pass-1 set, plus
	// yesterday's remaining FOCUS members so retention is re-evaluated even
	// for names that fell out of the scan list.
	scanList, err := o.refdata.ScanUniverse(ctx, date)
	if err != nil {
		o.metrics.RecordError("refdata_scan")
		o.log.Warn("scan universe unavailable", logger.Error(err))
	}
	scanSet := make(map[string]bool)
	for _, tk := range scanList {
		if !pass1Set[tk] && !models.IsCore(tk) {
			scanSet[tk] = true
		}
	}
	for tk := range prev.Focus {
		if !pass1Set[tk] {
			scanSet[tk] = true
		}
	}

	var promoted []string
	for tk := range scanSet {
		if sig, ok := universe.StressSignal(o.proc.RunScan(ctx, tk, date)); ok {
			// Promotion grants the full pipeline retroactively for today.
			d := o.proc.RunFull(ctx, tk, date)
			diagnostics[tk] = d
			if full, ok := universe.StressSignal(d); ok {
				stressSigs[tk] = full
			} else {
				stressSigs[tk] = sig
			}
			promoted = append(promoted, tk)
		}
	}
	sort.Strings(promoted)

	signals := universe.MergeSignals(nil, structuralSigs)
	signals = universe.MergeSignals(signals, stressSigs)
	signals = universe.MergeSignals(signals, eventSigs)

	ranks := make(map[string]universe.EvictionRank, len(diagnostics))
	for tk, d := range diagnostics {
		ranks[tk] = universe.RankFromDiagnostic(d)
	}

	// Finalize: the single mutation of universe state for the day.
	res := o.manager.Finalize(prev, date, signals, ranks)

	if err := o.persist(ctx, res.Snapshot, diagnostics); err != nil {
		return CycleResult{}, err
	}

	o.metrics.RecordFocusSize(len(res.Snapshot.Focus))
	o.metrics.RecordLatency("cycle", time.Since(start).Seconds())
	o.log.Info("daily cycle complete",
		logger.String("date", res.Snapshot.Date),
		logger.Int("pass1", len(pass1)),
		logger.Int("promoted", len(promoted)),
		logger.Int("focus", len(res.Snapshot.Focus)),
		logger.Int("expired", len(res.Expired)),
		logger.Int("evicted", len(res.Evicted)),
	)

	return CycleResult{
		Snapshot:    res.Snapshot,
		Diagnostics: diagnostics,
		Promoted:    promoted,
		Expired:     res.Expired,
		Evicted:     res.Evicted,
	}, nil
}

func (o *Orchestrator) persist(ctx context.Context, snap models.UniverseSnapshot, diagnostics map[string]*models.DiagnosticOutput) error {
	for tk, d := range diagnostics {
		if err := o.diagStore.Save(ctx, d); err != nil {
			o.metrics.RecordError("diag_save")
			return fmt.Errorf("save diagnostic %s: %w", tk, err)
		}
		if err := o.pub.PublishDiagnostic(ctx, d); err != nil {
			// Publishing is best effort; storage is the source of truth.
			o.metrics.RecordError("diag_publish")
			o.log.Warn("publish diagnostic failed", logger.String("ticker", tk), logger.Error(err))
		}
	}
	if err := o.uniStore.Save(ctx, snap); err != nil {
		o.metrics.RecordError("universe_save")
		return fmt.Errorf("save universe snapshot: %w", err)
	}
	if err := o.pub.PublishSnapshot(ctx, snap); err != nil {
		o.metrics.RecordError("snapshot_publish")
		o.log.Warn("publish snapshot failed", logger.Error(err))
	}
	return nil
}

// RunSingle executes the full pipeline for one ticker on demand, outside the
// daily cycle. The result is persisted and published but universe state is
// untouched.
func (o *Orchestrator) RunSingle(ctx context.Context, ticker string, date time.Time) (*models.DiagnosticOutput, error) {
	d := o.proc.RunFull(ctx, ticker, date)
	if err := o.diagStore.Save(ctx, d); err != nil {
		o.metrics.RecordError("diag_save")
		return nil, fmt.Errorf("save diagnostic %s: %w", ticker, err)
	}
	if err := o.pub.PublishDiagnostic(ctx, d); err != nil {
		o.metrics.RecordError("diag_publish")
		o.log.Warn("publish diagnostic failed", logger.String("ticker", ticker), logger.Error(err))
	}
	return d, nil
}
