package usecase

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"mmlens/internal/domain/models"
	drepo "mmlens/internal/domain/repository"
	pkgkafka "mmlens/pkg/kafka"
)

// KafkaFeaturesHandler consumes feature records from Kafka and writes them to
// storage.
type KafkaFeaturesHandler struct {
	topic   string
	store   drepo.FeatureStore
	metrics drepo.Metrics
}

func NewKafkaFeaturesHandler(topic string, store drepo.FeatureStore, metrics drepo.Metrics) *KafkaFeaturesHandler {
	return &KafkaFeaturesHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaFeaturesHandler) Topic() string { return h.topic }

// incoming message schema: {ticker, feature, date, value}; value may be null
// for a missing observation.
func (h *KafkaFeaturesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Ticker  string   `json:"ticker"`
		Feature string   `json:"feature"`
		Date    string   `json:"date"`
		Value   *float64 `json:"value"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	value := math.NaN()
	if m.Value != nil {
		value = *m.Value
	}
	r := &models.FeatureRecord{
		Ticker:  m.Ticker,
		Feature: m.Feature,
		Date:    m.Date,
		Value:   value,
	}
	if err := ValidateRecord(r); err != nil {
		h.metrics.RecordError("consumer_validate")
		return err
	}

	start := time.Now()
	err := h.store.Store(ctx, r)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", m.Ticker)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaFeaturesHandler)(nil)
