package injector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/conf"
	"github.com/lk2023060901/linkedin-discovery/internal/data"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/biz"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/cache"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/chain"
	discoverydata "github.com/lk2023060901/linkedin-discovery/internal/discovery/data"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/housekeeping"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/metrics"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/queue"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/quota"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/service"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	"github.com/lk2023060901/linkedin-discovery/internal/server"
	"github.com/lk2023060901/linkedin-discovery/internal/websearch/provider"
)

// Engine is the assembled discovery engine without its HTTP surface
type Engine struct {
	UseCase      *biz.DiscoveryUseCase
	Dispatcher   *queue.Dispatcher
	Cache        cache.Store
	Quota        quota.Tracker
	Recorder     *metrics.Recorder // nil when metrics are disabled
	Housekeeper  *housekeeping.Housekeeper
	housekeeping bool
}

func newEngine(
	config *conf.Config,
	runner *chain.Chain,
	uc *biz.DiscoveryUseCase,
	dispatcher *queue.Dispatcher,
	store cache.Store,
	tracker quota.Tracker,
	recorder *metrics.Recorder,
	housekeeper *housekeeping.Housekeeper,
	log *logger.Logger,
) *Engine {
	dc := config.Discovery
	log.Info("discovery engine assembled",
		zap.Any("providers", runner.Providers()),
		zap.String("cache_backend", dc.Cache.Backend),
		zap.String("quota_backend", dc.QuotaBackend),
		zap.Bool("metrics", dc.Metrics.Enabled))

	return &Engine{
		UseCase:      uc,
		Dispatcher:   dispatcher,
		Cache:        store,
		Quota:        tracker,
		Recorder:     recorder,
		Housekeeper:  housekeeper,
		housekeeping: dc.Housekeeping.Enabled,
	}
}

func newApp(config *conf.Config, log *logger.Logger, engine *Engine, httpServer *server.HTTPServer) *App {
	return &App{
		Config:     config,
		Logger:     log,
		Engine:     engine,
		HTTPServer: httpServer,
	}
}

// Start starts the dispatcher and the housekeeping jobs
func (e *Engine) Start() error {
	if err := e.Dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if e.housekeeping {
		if err := e.Housekeeper.Start(); err != nil {
			return fmt.Errorf("start housekeeping: %w", err)
		}
	}
	return nil
}

// Stop drains the dispatcher, flushes local cache hits and drains pending metrics
func (e *Engine) Stop(ctx context.Context) error {
	var errs []error
	if err := e.Housekeeper.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop housekeeping: %w", err))
	}
	e.Dispatcher.Stop(ctx)
	if f, ok := e.Cache.(housekeeping.Flusher); ok {
		f.Flush(ctx)
	}
	if e.Recorder != nil {
		if err := e.Recorder.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close metrics recorder: %w", err))
		}
	}
	return errors.Join(errs...)
}

func provideChain(config *conf.Config, tiers []chain.Tier, log *logger.Logger) *chain.Chain {
	return chain.New(tiers, config.Discovery.Chain, log)
}

func provideDispatcher(
	config *conf.Config,
	store cache.Store,
	runner *chain.Chain,
	tracker quota.Tracker,
	log *logger.Logger,
) *queue.Dispatcher {
	return queue.NewDispatcher(config.Discovery.Queue, store, runner, tracker, log)
}

// provideRecorder returns nil when metrics are disabled
func provideRecorder(config *conf.Config, d *data.Data, log *logger.Logger) (*metrics.Recorder, error) {
	mc := config.Discovery.Metrics
	if !mc.Enabled {
		return nil, nil
	}
	if d.DB == nil {
		return nil, errors.New("metrics need a database")
	}
	return metrics.NewRecorder(discoverydata.NewMetricsRepo(d.DB), mc.Config, log), nil
}

func provideUseCase(
	config *conf.Config,
	dispatcher *queue.Dispatcher,
	store cache.Store,
	recorder *metrics.Recorder,
	log *logger.Logger,
) *biz.DiscoveryUseCase {
	var rec biz.MetricRecorder
	if recorder != nil {
		rec = recorder
	}
	return biz.NewDiscoveryUseCase(dispatcher, store, rec, config.Discovery.AutoSelectThreshold, log)
}

func provideHousekeeper(config *conf.Config, store cache.Store, tracker quota.Tracker, log *logger.Logger) *housekeeping.Housekeeper {
	return housekeeping.New(config.Discovery.Housekeeping, store, tracker, log)
}

func provideDiscoveryService(config *conf.Config, uc *biz.DiscoveryUseCase, log *logger.Logger) *service.DiscoveryService {
	return service.NewDiscoveryService(uc, config.Discovery.Batch, log)
}

func provideQuotaTracker(config *conf.Config, d *data.Data) quota.Tracker {
	if config.Discovery.QuotaBackend == conf.QuotaBackendRedis && d.Redis != nil {
		return discoverydata.NewRedisTracker(d.Redis, config.Discovery.Quota)
	}
	return quota.NewMemoryTracker(config.Discovery.Quota)
}

// provideChainTiers creates one tier per enabled provider. Providers with a
// dedicated budget get their own tracker; the rest share the global one.
func provideChainTiers(config *conf.Config, shared quota.Tracker, log *logger.Logger) ([]chain.Tier, error) {
	enabled := config.EnabledProviders()
	providers, err := provider.NewFactory().CreateChain(enabled)
	if err != nil {
		return nil, err
	}

	tiers := make([]chain.Tier, 0, len(providers))
	for i, p := range providers {
		pc := enabled[i]
		tracker := shared
		if pc.HasOwnQuota() {
			qc := quota.Config{DailyLimit: pc.DailyLimit, MonthlyLimit: pc.MonthlyLimit}
			if rt, ok := shared.(*discoverydata.RedisTracker); ok {
				tracker = rt.Scoped(string(pc.ID), qc)
			} else {
				tracker = quota.NewMemoryTracker(qc)
			}
		}
		tiers = append(tiers, chain.Tier{Provider: p, Quota: tracker})
	}
	if len(tiers) == 0 {
		log.Warn("no search providers enabled, discovery falls back to url guesses only")
	}
	return tiers, nil
}

func provideCacheStore(config *conf.Config, d *data.Data, log *logger.Logger) (cache.Store, error) {
	cc := config.Discovery.Cache

	var durable cache.Store
	switch cc.Backend {
	case cache.BackendRedis:
		if d.Redis == nil {
			return nil, errors.New("redis cache backend needs a redis connection")
		}
		durable = discoverydata.NewRedisCacheStore(d.Redis, cc.TTL)
	case cache.BackendPostgres:
		if d.DB == nil {
			return nil, errors.New("postgres cache backend needs a database")
		}
		durable = discoverydata.NewPostgresCacheStore(d.DB, cc.TTL)
	case cache.BackendMemory:
		return cache.NewMemoryStore(cc.TTL, nil), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cc.Backend)
	}
	return cache.NewTiered(durable, cc.LocalSize, cc.LocalTTL, log), nil
}
