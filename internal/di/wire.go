//go:build wireinject
// +build wireinject

package di

import (
	"ZigmaPulse/pkg/config"
	"ZigmaPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideTracing,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideLogBuffer,
		ProvideLogStore,
		ProvideLogSources,
		ProvideHistoryStore,
		ProvideSignalPublisher,

		// Services
		ProvideParser,
		ProvideNotifier,
		ProvideArchiver,
		ProvideQueue,
		ProvideResponseCache,
		ProvideRateLimiter,

		// Use cases
		ProvideSignalFeed,
		ProvideOverview,
		ProvideHistory,
		ProvidePoller,
		ProvideLogCollector,
		ProvideKafkaConsumer,

		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
