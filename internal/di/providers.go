package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mmlens/internal/domain/repository"
	"mmlens/internal/engine"
	"mmlens/internal/handler/api"
	"mmlens/internal/jobs"
	mid "mmlens/internal/middleware"
	internalrepo "mmlens/internal/repository"
	"mmlens/internal/service/featurefeed"
	"mmlens/internal/service/refdata"
	"mmlens/internal/universe"
	"mmlens/internal/usecase"
	pkgcache "mmlens/pkg/cache"
	pkgch "mmlens/pkg/clickhouse"
	"mmlens/pkg/config"
	xhttp "mmlens/pkg/http"
	pkgkafka "mmlens/pkg/kafka"
	applogger "mmlens/pkg/logger"
	"mmlens/pkg/metrics"
	"mmlens/pkg/queue"
	"mmlens/pkg/server"
)

// snapshotRetention bounds how long dated universe snapshots are kept in
// Redis. The "latest" pointer never expires.
const snapshotRetention = 90 * 24 * time.Hour

// ProvideLogger creates the application logger. Production gets JSON output,
// everything else the console writer.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append(
		[]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.SchemaStatements...,
	)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	return consumer, nil
}

// ProvideRedisClient creates the shared Redis client.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideFeatureStore creates the ClickHouse feature store.
func ProvideFeatureStore(chClient *pkgch.Client, l *applogger.Logger) repository.FeatureStore {
	s := internalrepo.NewCHFeatureStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideDiagnosticStore creates the ClickHouse diagnostic store.
func ProvideDiagnosticStore(chClient *pkgch.Client, l *applogger.Logger) repository.DiagnosticStore {
	s := internalrepo.NewCHDiagnosticStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideUniverseStore creates the Redis-backed universe snapshot store.
func ProvideUniverseStore(cli *redis.Client) repository.UniverseStore {
	return internalrepo.NewRedisUniverseStore(cli, snapshotRetention)
}

// ProvidePublisher creates the Kafka publisher for diagnostics and snapshots.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.DiagTopic, cfg.Kafka.SnapshotTopic)
}

// ProvideFeatureStream creates the vendor WebSocket feature feed.
func ProvideFeatureStream(cfg *config.Config) repository.FeatureStream {
	return featurefeed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Tickers,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideRefData creates the reference-data client. Responses are cached
// through the layered cache so restarts do not burn through the vendor quota;
// when Redis is unreachable the client degrades to memory-only caching.
func ProvideRefData(cfg *config.Config, l *applogger.Logger) repository.ReferenceData {
	httpClient := xhttp.NewClient(xhttp.WithTimeout(15 * time.Second))
	c := refdata.NewClient(httpClient, cfg.RefData.BaseURL, cfg.RefData.APIKey, cfg.RefData.RPS, cfg.RefData.Burst)
	c.SetLogger(l)

	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("mmlens:refdata"),
	)
	if err != nil {
		l.Warn("refdata cache falling back to memory", applogger.Error(err))
		c.SetCache(pkgcache.NewMemoryCache())
	} else {
		c.SetCache(pkgcache.NewLayeredCache(rc))
	}
	return c
}

// splitHostPort splits "host:port", defaulting the port to 6379.
func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideDiagnosticProcessor assembles the per-instrument pipeline from the
// engine stages.
func ProvideDiagnosticProcessor(
	store repository.FeatureStore,
	m repository.Metrics,
	cfg *config.Config,
) (*usecase.DiagnosticProcessor, error) {
	baseline, err := engine.NewBaseline(cfg.Engine.Window, cfg.Engine.MinPeriods, cfg.Engine.DriftPct)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	scorer, err := engine.NewScorer(cfg.Engine.Window, nil)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	return usecase.NewDiagnosticProcessor(
		store,
		baseline,
		scorer,
		engine.NewClassifier(),
		engine.NewExplainer(),
		m,
		cfg.Engine.LookbackDays,
	), nil
}

// ProvideUniverseManager creates the FOCUS membership manager.
func ProvideUniverseManager(cfg *config.Config) (*universe.Manager, error) {
	return universe.NewManager(cfg.Universe.FocusCap, cfg.Universe.ExpiryDays)
}

// ProvideOrchestrator creates the daily-cycle orchestrator.
func ProvideOrchestrator(
	proc *usecase.DiagnosticProcessor,
	manager *universe.Manager,
	ref repository.ReferenceData,
	diagStore repository.DiagnosticStore,
	uniStore repository.UniverseStore,
	pub repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(proc, manager, ref, diagStore, uniStore, pub, m, l, cfg.Universe.Workers)
}

// ProvideFeatureProcessor creates the ingest processor.
func ProvideFeatureProcessor(
	store repository.FeatureStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.FeatureProcessor {
	return usecase.NewFeatureProcessor(store, m, cfg.Ingest.BatchSize, cfg.Ingest.BatchTimeout)
}

// ProvideFeatureCollector creates the feed collector with the throttling
// pipeline between the WebSocket and the store.
func ProvideFeatureCollector(
	stream repository.FeatureStream,
	processor *usecase.FeatureProcessor,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.FeatureCollector {
	pipe := mid.NewIngestPipeline(processor, m,
		mid.WithMaxRPS(cfg.Ingest.MaxRPS),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
	)
	return usecase.NewFeatureCollector(stream, processor, m, pipe)
}

// ProvideKafkaFeaturesHandler registers the handler for the features topic.
func ProvideKafkaFeaturesHandler(store repository.FeatureStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaFeaturesHandler {
	return usecase.NewKafkaFeaturesHandler(cfg.Kafka.FeaturesTopic, store, m)
}

// ProvideDiagnosticsHandler creates the HTTP handler with an in-process
// response cache and the job queue for async run requests.
func ProvideDiagnosticsHandler(
	l *applogger.Logger,
	diagStore repository.DiagnosticStore,
	uniStore repository.UniverseStore,
	features repository.FeatureStore,
	orch *usecase.Orchestrator,
	jobQueue *queue.RedisQueue,
) *api.DiagnosticsEchoHandler {
	h := api.NewDiagnosticsEchoHandler(l, diagStore, uniStore, features, orch)
	h.SetCache(pkgcache.NewMemoryCache())
	h.SetQueue(jobQueue)
	return h
}

// ProvideJobQueue creates the Redis job queue with the diagnostics job
// registered, so cycle runs can be enqueued instead of blocking API calls.
func ProvideJobQueue(
	cli *redis.Client,
	orch *usecase.Orchestrator,
	l *applogger.Logger,
) *queue.RedisQueue {
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    1,
		RetryLimit: 2,
		RetryDelay: time.Minute,
	}, cli, []queue.Job{jobs.NewRunDiagnosticsJob(orch, l)})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	m repository.Metrics,
	collector *usecase.FeatureCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaFeaturesHandler,
	chClient *pkgch.Client,
	handler *api.DiagnosticsEchoHandler,
	pub repository.Publisher,
	jobQueue *queue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.ConsumeErrorHook(l, func() {
			m.RecordError("kafka_consume")
		}))
	}
	app := server.New(cfg, collector, consumer, kh, chClient)
	app.SetHTTPHandler(handler)
	app.Publisher = pub
	app.Jobs = jobQueue
	return app
}
