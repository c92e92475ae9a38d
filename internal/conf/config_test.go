package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/cache"
	wstypes "github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sampleConfig = `
server:
  port: 9090
discovery:
  cache:
    backend: postgres
    ttl: 72h
  quota:
    daily_limit: 50
  providers:
    - id: google
      enabled: true
      engine_id: cx-123
      api_key_env: TEST_GOOGLE_KEY
    - id: brave
      enabled: true
      api_key: brave-key
      daily_limit: 2000
      monthly_limit: 2000
    - id: exa
      enabled: false
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_GOOGLE_KEY", "google-key")
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, cache.BackendPostgres, cfg.Discovery.Cache.Backend)
	assert.Equal(t, 72*time.Hour, cfg.Discovery.Cache.TTL)
	assert.Equal(t, 10*time.Second, cfg.Discovery.Cache.LocalTTL)
	assert.Equal(t, int64(50), cfg.Discovery.Quota.DailyLimit)
	assert.Equal(t, int64(3000), cfg.Discovery.Quota.MonthlyLimit)
	assert.Equal(t, 0.7, cfg.Discovery.AutoSelectThreshold)
	assert.Equal(t, 5, cfg.Discovery.Queue.Workers)
	assert.True(t, cfg.Discovery.Chain.EnableURLGuess)
	assert.True(t, cfg.Discovery.Metrics.Enabled)
	assert.Equal(t, 256, cfg.Discovery.Metrics.BufferSize)
	assert.Equal(t, "@every 1h", cfg.Discovery.Housekeeping.PurgeSpec)
	assert.Equal(t, 4, cfg.Discovery.Batch.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Discovery.Batch.Heartbeat)

	providers := cfg.EnabledProviders()
	require.Len(t, providers, 2)
	assert.Equal(t, wstypes.ProviderGoogle, providers[0].ID)
	assert.Equal(t, "google-key", providers[0].APIKey)
	assert.Equal(t, "https://www.googleapis.com", providers[0].APIHost)
	assert.False(t, providers[0].HasOwnQuota())
	assert.Equal(t, wstypes.ProviderBrave, providers[1].ID)
	assert.True(t, providers[1].HasOwnQuota())

	assert.True(t, cfg.NeedsDatabase())
	assert.True(t, cfg.NeedsRedis()) // quota backend defaults to redis
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("DISCOVERY_SERVER_PORT", "7070")
	t.Setenv("DISCOVERY_DISCOVERY_CACHE_BACKEND", "memory")
	t.Setenv("DISCOVERY_DISCOVERY_QUOTA_BACKEND", "memory")
	t.Setenv("DISCOVERY_DISCOVERY_METRICS_ENABLED", "false")

	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), "server:\n  port: 9090\n"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, cache.BackendMemory, cfg.Discovery.Cache.Backend)
	assert.False(t, cfg.NeedsDatabase())
	assert.False(t, cfg.NeedsRedis())
	assert.Empty(t, cfg.EnabledProviders())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TEST_BRAVE_DOTENV_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEST_BRAVE_DOTENV_KEY") })

	path := writeConfig(t, dir, `
discovery:
  providers:
    - id: brave
      enabled: true
      api_key_env: TEST_BRAVE_DOTENV_KEY
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.EnabledProviders(), 1)
	assert.Equal(t, "from-dotenv", cfg.EnabledProviders()[0].APIKey)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"cache backend", "discovery:\n  cache:\n    backend: memcached\n"},
		{"quota backend", "discovery:\n  quota_backend: etcd\n"},
		{"threshold", "discovery:\n  auto_select_threshold: 1.5\n"},
		{"missing key", "discovery:\n  providers:\n    - id: tavily\n      enabled: true\n"},
		{"duplicate provider", "discovery:\n  providers:\n    - id: searxng\n      enabled: true\n      api_host: http://searx\n    - id: searxng\n      enabled: true\n      api_host: http://searx\n"},
		{"log level", "log:\n  level: loud\n"},
		{"batch concurrency", "discovery:\n  batch:\n    concurrency: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, t.TempDir(), tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
