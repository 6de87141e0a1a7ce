package usecase

import (
	"context"

	"mmlens/internal/domain/models"
	drepo "mmlens/internal/domain/repository"
	mid "mmlens/internal/middleware"
)

// FeatureCollector consumes the feature feed and routes records through the
// ingest pipeline into storage.
type FeatureCollector struct {
	stream  drepo.FeatureStream
	proc    *FeatureProcessor
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
}

// NewFeatureCollector creates a new FeatureCollector instance.
func NewFeatureCollector(stream drepo.FeatureStream, proc *FeatureProcessor, metrics drepo.Metrics, pipe *mid.IngestPipeline) *FeatureCollector {
	return &FeatureCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the feature stream is connected.
func (c *FeatureCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *FeatureCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	recCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, recCh, errCh)
	return nil
}

func (c *FeatureCollector) consume(ctx context.Context, recCh <-chan *models.FeatureRecord, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case r := <-recCh:
			if r == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, r)
			} else {
				_ = c.proc.Process(ctx, r)
			}
		}
	}
}

func (c *FeatureCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying FeatureProcessor for lifecycle management.
func (c *FeatureCollector) Processor() *FeatureProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *FeatureCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
