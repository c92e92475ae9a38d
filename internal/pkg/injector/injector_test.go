package injector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/linkedin-discovery/internal/conf"
	"github.com/lk2023060901/linkedin-discovery/internal/data"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/cache"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/chain"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/housekeeping"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/metrics"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/queue"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/quota"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	wstypes "github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

func memoryConfig(providers ...conf.ProviderConfig) *conf.Config {
	return &conf.Config{
		Discovery: conf.DiscoveryConfig{
			AutoSelectThreshold: 0.7,
			QuotaBackend:        conf.QuotaBackendMemory,
			Cache:               cache.Config{Backend: cache.BackendMemory, TTL: time.Hour},
			Quota:               quota.Config{DailyLimit: 10, MonthlyLimit: 100},
			Queue:               queue.DefaultConfig(),
			Chain:               chain.DefaultConfig(),
			Metrics:             conf.MetricsConfig{Enabled: false, Config: metrics.DefaultConfig()},
			Housekeeping:        housekeeping.Config{Enabled: false},
			Providers:           providers,
		},
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"Microsoft","results":[
			{"title":"Microsoft | LinkedIn","url":"https://www.linkedin.com/company/microsoft/","content":"Technology company"},
			{"title":"Satya Nadella | LinkedIn","url":"https://www.linkedin.com/in/satyanadella/","content":"CEO"}
		]}`))
	}))
	defer srv.Close()

	cfg := memoryConfig(conf.ProviderConfig{
		ProviderConfig: wstypes.ProviderConfig{ID: wstypes.ProviderSearXNG, APIHost: srv.URL},
		Enabled:        true,
	})

	engine, err := NewEngine(cfg, &data.Data{}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, engine.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, engine.Stop(ctx))
	}()

	ctx := context.Background()
	results, err := engine.UseCase.Discover(ctx, "Microsoft", types.PriorityHigh)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "microsoft", results[0].VanityName)
	assert.InDelta(t, 0.95, results[0].Confidence, 1e-9)

	// warm cache
	again, err := engine.UseCase.Discover(ctx, "  microsoft ", types.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, results, again)
	assert.Equal(t, int32(1), calls.Load())

	status, err := engine.UseCase.QueueStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.RequestsToday)

	_, err = engine.UseCase.Discover(ctx, "A", types.PriorityHigh)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestEngine_BackendRequirements(t *testing.T) {
	cfg := memoryConfig()
	cfg.Discovery.Cache.Backend = cache.BackendRedis
	_, err := NewEngine(cfg, &data.Data{}, logger.NewNop())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Discovery.Cache.Backend = cache.BackendPostgres
	_, err = NewEngine(cfg, &data.Data{}, logger.NewNop())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Discovery.Metrics.Enabled = true
	_, err = NewEngine(cfg, &data.Data{}, logger.NewNop())
	assert.Error(t, err)
}

func TestProvideChainTiers(t *testing.T) {
	cfg := memoryConfig(
		conf.ProviderConfig{
			ProviderConfig: wstypes.ProviderConfig{ID: wstypes.ProviderBrave, APIKey: "k", DailyLimit: 50, MonthlyLimit: 2000},
			Enabled:        true,
		},
		conf.ProviderConfig{
			ProviderConfig: wstypes.ProviderConfig{ID: wstypes.ProviderTavily, APIKey: "k"},
			Enabled:        true,
		},
		conf.ProviderConfig{
			ProviderConfig: wstypes.ProviderConfig{ID: wstypes.ProviderExa},
			Enabled:        false,
		},
	)
	shared := quota.NewMemoryTracker(cfg.Discovery.Quota)

	tiers, err := provideChainTiers(cfg, shared, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, wstypes.ProviderBrave, tiers[0].Provider.GetID())
	assert.NotSame(t, shared, tiers[0].Quota)
	assert.Same(t, shared, tiers[1].Quota)

	snap, err := tiers[0].Quota.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50), snap.DailyLimit)

	cfg.Discovery.Providers[1].APIKey = ""
	_, err = provideChainTiers(cfg, shared, logger.NewNop())
	assert.Error(t, err)
}

func TestInitializeApp_MemoryBackends(t *testing.T) {
	cfg := memoryConfig()
	cfg.Server.Host = "127.0.0.1"

	app, cleanup, err := InitializeApp(cfg, logger.NewNop())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, app.Engine)
	assert.NotNil(t, app.HTTPServer)
	assert.Nil(t, app.Engine.Recorder)

	cfg = memoryConfig()
	cfg.Discovery.Cache.Backend = "mongo"
	_, _, err = InitializeApp(cfg, logger.NewNop())
	assert.Error(t, err)
}
