//go:build wireinject
// +build wireinject

package di

import (
	"mmlens/pkg/config"
	"mmlens/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Repositories
		ProvideFeatureStore,
		ProvideDiagnosticStore,
		ProvideUniverseStore,
		ProvidePublisher,
		ProvideFeatureStream,
		ProvideRefData,

		// Use cases
		ProvideDiagnosticProcessor,
		ProvideUniverseManager,
		ProvideOrchestrator,
		ProvideFeatureProcessor,
		ProvideFeatureCollector,
		ProvideKafkaFeaturesHandler,

		// Delivery
		ProvideDiagnosticsHandler,
		ProvideJobQueue,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
