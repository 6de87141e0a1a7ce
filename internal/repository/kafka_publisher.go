package repository

import (
	"context"
	"fmt"

	"mmlens/internal/domain/models"
	domrepo "mmlens/internal/domain/repository"
	pkgkafka "mmlens/pkg/kafka"
)

// KafkaPublisher emits diagnostic records and universe snapshots for
// downstream consumers.
type KafkaPublisher struct {
	producer      *pkgkafka.Producer
	diagTopic     string
	snapshotTopic string
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, diagTopic, snapshotTopic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, diagTopic: diagTopic, snapshotTopic: snapshotTopic}
}

func (p *KafkaPublisher) PublishDiagnostic(ctx context.Context, d *models.DiagnosticOutput) error {
	if d == nil {
		return fmt.Errorf("diagnostic is nil")
	}
	// Keyed by ticker so per-instrument ordering is preserved per partition.
	return p.producer.Publish(ctx, p.diagTopic, []byte(d.Ticker), d)
}

func (p *KafkaPublisher) PublishSnapshot(ctx context.Context, s models.UniverseSnapshot) error {
	return p.producer.Publish(ctx, p.snapshotTopic, []byte(s.Date), s)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
