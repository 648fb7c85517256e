//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"StockScreener/internal/domain/repository"
	internalrepo "StockScreener/internal/repository"
	"StockScreener/internal/usecase"
	"StockScreener/pkg/config"
	"StockScreener/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideResultStore,
		wire.Bind(new(repository.ResultStore), new(*internalrepo.CacheResultStore)),
		wire.Bind(new(repository.JobStore), new(*internalrepo.CacheResultStore)),
		ProvidePriceArchive,
		ProvideEventPublisher,

		// Market data
		ProvideFMPClient,
		ProvidePriceProvider,
		ProvideFundamentals,
		ProvideSymbolLister,

		// Use cases
		ProvideSymbolResolver,
		ProvideIndicatorEngine,
		ProvideScreenerConfig,
		ProvideScreener,
		ProvideTrendAnalysis,
		ProvideHistoryFetcher,
		ProvideJobTracker,
		usecase.NewJobs,
		ProvideScheduler,
		ProvideScreenRequestsHandler,

		// Delivery
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
