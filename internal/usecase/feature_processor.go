package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"mmlens/internal/domain/models"
	drepo "mmlens/internal/domain/repository"
)

// FeatureProcessor validates and persists ingested feature records.
type FeatureProcessor struct {
	store   drepo.FeatureStore
	metrics drepo.Metrics
	batchSz int
	batchTO time.Duration
}

// NewFeatureProcessor creates a new FeatureProcessor instance.
func NewFeatureProcessor(
	store drepo.FeatureStore,
	metrics drepo.Metrics,
	batchSz int,
	batchTO time.Duration,
) *FeatureProcessor {
	return &FeatureProcessor{
		store:   store,
		metrics: metrics,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// ValidateRecord rejects records the store must never see. NaN values are
// accepted: a NaN observation is a legitimate "missing" marker.
func ValidateRecord(r *models.FeatureRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if r.Ticker == "" {
		return fmt.Errorf("ticker empty")
	}
	if r.Feature == "" {
		return fmt.Errorf("feature empty")
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return fmt.Errorf("date %q: %w", r.Date, err)
	}
	if math.IsInf(r.Value, 0) {
		return fmt.Errorf("value infinite")
	}
	return nil
}

// Process persists a single feature record.
func (p *FeatureProcessor) Process(ctx context.Context, r *models.FeatureRecord) error {
	if err := ValidateRecord(r); err != nil {
		p.metrics.RecordError("process_validate")
		return fmt.Errorf("process record: %w", err)
	}

	start := time.Now()
	if err := p.store.Store(ctx, r); err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process record: %w", err)
	}

	p.metrics.RecordMessageSent("clickhouse", r.Ticker)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch persists multiple feature records in one insert.
func (p *FeatureProcessor) ProcessBatch(ctx context.Context, rs []*models.FeatureRecord) error {
	if len(rs) == 0 {
		return nil
	}
	for _, r := range rs {
		if err := ValidateRecord(r); err != nil {
			p.metrics.RecordError("process_batch_validate")
			return fmt.Errorf("process batch: %w", err)
		}
	}

	start := time.Now()
	if err := p.store.StoreBatch(ctx, rs); err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, r := range rs {
		p.metrics.RecordMessageSent("clickhouse", r.Ticker)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// BatchSize returns the configured batch size for upstream buffering.
func (p *FeatureProcessor) BatchSize() int { return p.batchSz }

// BatchTimeout returns the configured batch flush timeout.
func (p *FeatureProcessor) BatchTimeout() time.Duration { return p.batchTO }
