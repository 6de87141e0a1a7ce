package kafka

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "mmlens/pkg/logger"
)

// MessageHandler consumes raw payloads from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Workers    int
	BufferSize int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	DLQTopic   string
	MinBytes   int
	MaxBytes   int
}

type ConsumerOption func(*ConsumerConfig)

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}
func WithConsumerWorkers(n int) ConsumerOption {
	return func(c *ConsumerConfig) { c.Workers = n }
}
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

var (
	consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mmlens_kafka_consumer_queue_depth",
		Help: "Messages waiting for a worker",
	}, []string{"topic"})

	consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "mmlens_kafka_consumer_handle_seconds",
		Help: "Handling time per message",
	}, []string{"topic"})

	consumerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mmlens_kafka_consumer_errors_total",
		Help: "Messages that exhausted retries",
	}, []string{"topic"})
)

// Consumer reads the feature-record topic through a group reader and fans
// messages out to a worker pool. Offsets commit after the handler succeeds,
// or after the message lands on the DLQ, so nothing is lost on restart.
type Consumer struct {
	cfg      *ConsumerConfig
	l        *applogger.Logger
	handler  MessageHandler
	reader   *kafka.Reader
	dlq      *kafka.Writer
	hook     ConsumerHook
	msgs     chan kafka.Message
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:    "mmlens",
		Workers:    1,
		BufferSize: 10,
		RetryMax:   3,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   10e3,
		MaxBytes:   10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}

	c := &Consumer{
		cfg:  cfg,
		hook: NoopHook{},
		msgs: make(chan kafka.Message, cfg.BufferSize),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler sets the handler. The consumer serves one topic; a second
// registration is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if c.handler == nil {
		c.handler = h
	}
}

// WithConsumerHook installs a lifecycle hook.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// SetLogger injects a structured logger.
func (c *Consumer) SetLogger(l *applogger.Logger) { c.l = l }

func (c *Consumer) Start() error {
	if c.handler == nil {
		return fmt.Errorf("kafka consumer: no handler registered")
	}

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		Topic:    c.handler.Topic(),
		GroupID:  c.cfg.GroupID,
		MinBytes: c.cfg.MinBytes,
		MaxBytes: c.cfg.MaxBytes,
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
	c.wg.Add(1)
	go c.fetchLoop(ctx)

	if c.l != nil {
		c.l.Info("kafka consumer started",
			applogger.String("topic", c.handler.Topic()),
			applogger.Int("workers", c.cfg.Workers))
	}
	return nil
}

func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		if c.reader != nil {
			if err := c.reader.Close(); err != nil && stopErr == nil {
				stopErr = err
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
	})
	return stopErr
}

func (c *Consumer) fetchLoop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.msgs)

	topic := c.handler.Topic()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if c.l != nil {
				c.l.Error("kafka fetch", applogger.String("topic", topic), applogger.Error(err))
			}
			continue
		}
		select {
		case c.msgs <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.wg.Done()
	for msg := range c.msgs {
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	topic := c.handler.Topic()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil && c.l != nil {
			c.l.Error("kafka handler panic", applogger.String("topic", topic), applogger.Any("panic", r))
		}
		consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}()

	var err error
	for attempt := 0; ; attempt++ {
		var data []byte
		hctx := ctx
		hctx, data, err = c.hook.BeforeHandle(ctx, msg, msg.Value)
		if err == nil {
			err = c.handler.Handle(hctx, data)
			c.hook.AfterHandle(hctx, msg, data, err)
		}
		if err == nil || attempt >= c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt+1)):
		case <-ctx.Done():
			return
		}
	}

	if err != nil {
		consumerErrors.WithLabelValues(topic).Inc()
		c.hook.OnError(ctx, msg, msg.Value, err)
		if c.l != nil {
			c.l.Error("kafka message dropped", applogger.String("topic", topic), applogger.Error(err))
		}
		if c.dlq != nil {
			dlqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if dlqErr := c.dlq.WriteMessages(dlqCtx, kafka.Message{
				Topic:   c.cfg.DLQTopic,
				Value:   msg.Value,
				Time:    time.Now(),
				Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}},
			}); dlqErr != nil && c.l != nil {
				c.l.Error("kafka dlq write", applogger.Error(dlqErr))
			}
			cancel()
		}
	}

	// Commit unless the failure had nowhere to go; an uncommitted message
	// is redelivered after restart.
	if err == nil || c.dlq != nil {
		commitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if commitErr := c.reader.CommitMessages(commitCtx, msg); commitErr != nil && c.l != nil {
			c.l.Error("kafka commit", applogger.Error(commitErr))
		}
		cancel()
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min * time.Duration(1<<uint(attempt-1))
	if d > max {
		d = max
	}
	return d - time.Duration(rand.Int63n(int64(d)/2))
}
