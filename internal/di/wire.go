//go:build wireinject
// +build wireinject

package di

import (
	"Volatile/pkg/config"
	"Volatile/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application
// with a cleanup function closing every client it opened.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideDigest,
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideLimiter,
		ProvideYahooClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideTables,
		ProvideSeriesSource,
		ProvidePredictionStore,
		ProvidePredictionPublisher,
		ProvidePriceSource,

		// Use cases
		ProvideEstimator,
		ProvideHolder,

		// Application
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
