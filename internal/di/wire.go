//go:build wireinject
// +build wireinject

package di

import (
	"TradeCore/pkg/config"
	"TradeCore/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCacheService,

		// Domain collaborators
		ProvideAuditSink,
		ProvideMarketStream,
		ProvideBrokerTransport,
		ProvideAccountSource,
		ProvideScorer,

		// Use cases
		ProvideExecutionGateway,
		ProvideFusionEngine,
		ProvideReconcileQueue,
		ProvideTradeEngine,
		ProvideBarCollector,
		ProvideAuditQuery,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
