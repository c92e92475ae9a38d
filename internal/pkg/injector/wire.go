//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"

	"github.com/lk2023060901/linkedin-discovery/internal/conf"
	"github.com/lk2023060901/linkedin-discovery/internal/data"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	"github.com/lk2023060901/linkedin-discovery/internal/server"
)

// ProviderSet is the Wire provider set for the whole service
var ProviderSet = wire.NewSet(
	dataProviderSet,
	engineProviderSet,
	serverProviderSet,
)

// Data layer providers
var dataProviderSet = wire.NewSet(
	data.NewData,
	wire.Bind(new(server.HealthChecker), new(*data.Data)),
)

// Engine providers, leaf first
var engineProviderSet = wire.NewSet(
	quotaProviderSet,
	chainProviderSet,
	cacheProviderSet,
	dispatcherProviderSet,
)

var quotaProviderSet = wire.NewSet(
	provideQuotaTracker,
)

var chainProviderSet = wire.NewSet(
	provideChainTiers,
	provideChain,
)

var cacheProviderSet = wire.NewSet(
	provideCacheStore,
)

var dispatcherProviderSet = wire.NewSet(
	provideDispatcher,
	provideRecorder,
	provideUseCase,
	provideHousekeeper,
	newEngine,
)

// Service and server providers
var serverProviderSet = wire.NewSet(
	provideDiscoveryService,
	server.NewHTTPServer,
)

// InitializeApp wires the whole service
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(ProviderSet, newApp)
	return nil, nil, nil
}

// NewEngine builds providers, chain, cache, quota, dispatcher and recorder
// from config over already opened infrastructure
func NewEngine(config *conf.Config, d *data.Data, log *logger.Logger) (*Engine, error) {
	wire.Build(engineProviderSet)
	return nil, nil
}
