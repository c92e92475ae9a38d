package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/biz"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/cache"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/chain"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/housekeeping"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/metrics"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/queue"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/quota"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/service"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/database"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/redis"
	wstypes "github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// EnvPrefix 环境变量前缀，例如 DISCOVERY_SERVER_PORT
const EnvPrefix = "DISCOVERY"

const (
	QuotaBackendMemory = "memory"
	QuotaBackendRedis  = "redis"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       logger.Config   `mapstructure:"log"`
	Database  database.Config `mapstructure:"database"`
	Redis     redis.Config    `mapstructure:"redis"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DiscoveryConfig struct {
	AutoSelectThreshold float64             `mapstructure:"auto_select_threshold"`
	QuotaBackend        string              `mapstructure:"quota_backend"`
	Cache               cache.Config        `mapstructure:"cache"`
	Quota               quota.Config        `mapstructure:"quota"`
	Queue               queue.Config        `mapstructure:"queue"`
	Chain               chain.Config        `mapstructure:"chain"`
	Metrics             MetricsConfig       `mapstructure:"metrics"`
	Housekeeping        housekeeping.Config `mapstructure:"housekeeping"`
	Batch               service.BatchConfig `mapstructure:"batch"`
	Providers           []ProviderConfig    `mapstructure:"providers"` // chain order
}

type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	metrics.Config `mapstructure:",squash"`
}

// ProviderConfig 搜索服务商配置；APIKeyEnv 指定从哪个环境变量读取密钥
type ProviderConfig struct {
	wstypes.ProviderConfig `mapstructure:",squash"`
	Enabled                bool   `mapstructure:"enabled"`
	APIKeyEnv              string `mapstructure:"api_key_env"`
}

// LoadConfig reads path, then .env files, then DISCOVERY_* environment overrides
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.resolveProviderKeys()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// loadDotEnv loads .env from the working directory and from the config directory.
// Variables already set in the environment win.
func loadDotEnv(dir string) error {
	for _, f := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.output", lc.Output)
	v.SetDefault("log.enablecaller", lc.EnableCaller)
	v.SetDefault("log.enablestacktrace", lc.EnableStacktrace)
	v.SetDefault("log.file.filename", lc.File.Filename)
	v.SetDefault("log.file.maxsize", lc.File.MaxSize)
	v.SetDefault("log.file.maxage", lc.File.MaxAge)
	v.SetDefault("log.file.maxbackups", lc.File.MaxBackups)
	v.SetDefault("log.file.compress", lc.File.Compress)

	dc := database.DefaultConfig()
	v.SetDefault("database.host", dc.Host)
	v.SetDefault("database.port", dc.Port)
	v.SetDefault("database.user", dc.User)
	v.SetDefault("database.password", dc.Password)
	v.SetDefault("database.dbname", dc.DBName)
	v.SetDefault("database.sslmode", dc.SSLMode)
	v.SetDefault("database.maxidleconns", dc.MaxIdleConns)
	v.SetDefault("database.maxopenconns", dc.MaxOpenConns)
	v.SetDefault("database.connmaxlifetime", dc.ConnMaxLifetime)
	v.SetDefault("database.connmaxidletime", dc.ConnMaxIdleTime)
	v.SetDefault("database.loglevel", dc.LogLevel)
	v.SetDefault("database.slowthreshold", dc.SlowThreshold)
	v.SetDefault("database.preparestmt", dc.PrepareStmt)
	v.SetDefault("database.timezone", dc.Timezone)
	v.SetDefault("database.automigrate", dc.AutoMigrate)

	rc := redis.DefaultConfig()
	v.SetDefault("redis.mode", string(rc.Mode))
	v.SetDefault("redis.master_addr", rc.MasterAddr)
	v.SetDefault("redis.password", rc.Password)
	v.SetDefault("redis.db", rc.DB)
	v.SetDefault("redis.pool_size", rc.PoolSize)
	v.SetDefault("redis.min_idle_conns", rc.MinIdleConns)
	v.SetDefault("redis.dial_timeout", rc.DialTimeout)
	v.SetDefault("redis.read_timeout", rc.ReadTimeout)
	v.SetDefault("redis.write_timeout", rc.WriteTimeout)
	v.SetDefault("redis.pool_timeout", rc.PoolTimeout)
	v.SetDefault("redis.max_retries", rc.MaxRetries)
	v.SetDefault("redis.min_retry_backoff", rc.MinRetryBackoff)
	v.SetDefault("redis.max_retry_backoff", rc.MaxRetryBackoff)
	v.SetDefault("redis.conn_max_idle_time", rc.ConnMaxIdleTime)
	v.SetDefault("redis.key_prefix", rc.KeyPrefix)

	v.SetDefault("discovery.auto_select_threshold", biz.DefaultAutoSelectThreshold)
	v.SetDefault("discovery.quota_backend", QuotaBackendRedis)

	cc := cache.DefaultConfig()
	v.SetDefault("discovery.cache.backend", cc.Backend)
	v.SetDefault("discovery.cache.ttl", cc.TTL)
	v.SetDefault("discovery.cache.local_ttl", cc.LocalTTL)
	v.SetDefault("discovery.cache.local_size", cc.LocalSize)

	qc := quota.DefaultConfig()
	v.SetDefault("discovery.quota.daily_limit", qc.DailyLimit)
	v.SetDefault("discovery.quota.monthly_limit", qc.MonthlyLimit)

	wc := queue.DefaultConfig()
	v.SetDefault("discovery.queue.workers", wc.Workers)
	v.SetDefault("discovery.queue.queue_size", wc.QueueSize)
	v.SetDefault("discovery.queue.work_timeout", wc.WorkTimeout)

	ch := chain.DefaultConfig()
	v.SetDefault("discovery.chain.provider_timeout", ch.ProviderTimeout)
	v.SetDefault("discovery.chain.max_results", ch.MaxResults)
	v.SetDefault("discovery.chain.search_results", ch.SearchResults)
	v.SetDefault("discovery.chain.site", ch.Site)
	v.SetDefault("discovery.chain.enable_url_guess", ch.EnableURLGuess)
	v.SetDefault("discovery.chain.retry.max_attempts", ch.Retry.MaxAttempts)
	v.SetDefault("discovery.chain.retry.initial_interval", ch.Retry.InitialInterval)
	v.SetDefault("discovery.chain.retry.max_interval", ch.Retry.MaxInterval)

	mc := metrics.DefaultConfig()
	v.SetDefault("discovery.metrics.enabled", true)
	v.SetDefault("discovery.metrics.buffer_size", mc.BufferSize)
	v.SetDefault("discovery.metrics.write_timeout", mc.WriteTimeout)

	hc := housekeeping.DefaultConfig()
	v.SetDefault("discovery.housekeeping.enabled", hc.Enabled)
	v.SetDefault("discovery.housekeeping.purge_spec", hc.PurgeSpec)
	v.SetDefault("discovery.housekeeping.flush_spec", hc.FlushSpec)
	v.SetDefault("discovery.housekeeping.quota_report_spec", hc.QuotaReportSpec)
	v.SetDefault("discovery.housekeeping.job_timeout", hc.JobTimeout)

	bc := service.DefaultBatchConfig()
	v.SetDefault("discovery.batch.concurrency", bc.Concurrency)
	v.SetDefault("discovery.batch.max_streams", bc.MaxStreams)
	v.SetDefault("discovery.batch.heartbeat", bc.Heartbeat)
}

// resolveProviderKeys reads API keys named by api_key_env
func (c *Config) resolveProviderKeys() {
	for i := range c.Discovery.Providers {
		p := &c.Discovery.Providers[i]
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
		p.ApplyDefaults()
	}
}

// EnabledProviders returns the enabled providers in chain order
func (c *Config) EnabledProviders() []wstypes.ProviderConfig {
	var out []wstypes.ProviderConfig
	for _, p := range c.Discovery.Providers {
		if p.Enabled {
			out = append(out, p.ProviderConfig)
		}
	}
	return out
}

// NeedsDatabase reports whether any configured component persists to PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.Discovery.Cache.Backend == cache.BackendPostgres || c.Discovery.Metrics.Enabled
}

// NeedsRedis reports whether any configured component uses Redis
func (c *Config) NeedsRedis() bool {
	return c.Discovery.Cache.Backend == cache.BackendRedis || c.Discovery.QuotaBackend == QuotaBackendRedis
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.NeedsDatabase() {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.NeedsRedis() {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	d := c.Discovery
	if d.AutoSelectThreshold <= 0 || d.AutoSelectThreshold > 1 {
		return errors.New("discovery.auto_select_threshold must be in (0, 1]")
	}
	switch d.QuotaBackend {
	case QuotaBackendMemory, QuotaBackendRedis:
	default:
		return fmt.Errorf("unsupported quota backend %q", d.QuotaBackend)
	}
	if err := d.Cache.Validate(); err != nil {
		return fmt.Errorf("discovery.cache: %w", err)
	}
	if err := d.Quota.Validate(); err != nil {
		return fmt.Errorf("discovery.quota: %w", err)
	}
	if err := d.Batch.Validate(); err != nil {
		return fmt.Errorf("discovery.batch: %w", err)
	}

	seen := make(map[wstypes.ProviderID]bool)
	for _, p := range d.Providers {
		if !p.Enabled {
			continue
		}
		if seen[p.ID] {
			return fmt.Errorf("provider %q configured twice", p.ID)
		}
		seen[p.ID] = true
		if err := p.ProviderConfig.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", p.ID, err)
		}
	}
	return nil
}
