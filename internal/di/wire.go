//go:build wireinject
// +build wireinject

package di

import (
	domrepo "EconDash/internal/domain/repository"
	"EconDash/pkg/config"
	"EconDash/pkg/metrics"
	"EconDash/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		wire.Bind(new(domrepo.Metrics), new(*metrics.Recorder)),

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Sources and stores
		ProvideMarketData,
		ProvideIndicators,
		ProvideIndicatorStore,

		// Use cases
		ProvideDashboard,
		ProvideSourceEventsHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
