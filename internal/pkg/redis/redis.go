package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

// Client Redis 客户端封装
type Client struct {
	config *Config
	logger *logger.Logger
	rdb    redis.UniversalClient
}

// New 创建 Redis 客户端
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsConfig, err := loadTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	var rdb redis.UniversalClient
	switch cfg.Mode {
	case ModeSingle:
		rdb = redis.NewClient(&redis.Options{
			Addr:            cfg.MasterAddr,
			Username:        cfg.Username,
			Password:        cfg.Password,
			DB:              cfg.DB,
			PoolSize:        cfg.PoolSize,
			MinIdleConns:    cfg.MinIdleConns,
			DialTimeout:     cfg.DialTimeout,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			PoolTimeout:     cfg.PoolTimeout,
			MaxRetries:      cfg.MaxRetries,
			MinRetryBackoff: cfg.MinRetryBackoff,
			MaxRetryBackoff: cfg.MaxRetryBackoff,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			TLSConfig:       tlsConfig,
		})
	case ModeSentinel:
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:      cfg.MasterName,
			SentinelAddrs:   cfg.SentinelAddrs,
			Username:        cfg.Username,
			Password:        cfg.Password,
			DB:              cfg.DB,
			PoolSize:        cfg.PoolSize,
			MinIdleConns:    cfg.MinIdleConns,
			DialTimeout:     cfg.DialTimeout,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			PoolTimeout:     cfg.PoolTimeout,
			MaxRetries:      cfg.MaxRetries,
			MinRetryBackoff: cfg.MinRetryBackoff,
			MaxRetryBackoff: cfg.MaxRetryBackoff,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			TLSConfig:       tlsConfig,
		})
	case ModeCluster:
		// 集群模式下 Lua 脚本的键必须落在同一 slot，业务键统一使用 {hash tag}
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           cfg.ClusterAddrs,
			Username:        cfg.Username,
			Password:        cfg.Password,
			PoolSize:        cfg.PoolSize,
			MinIdleConns:    cfg.MinIdleConns,
			DialTimeout:     cfg.DialTimeout,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			PoolTimeout:     cfg.PoolTimeout,
			MaxRetries:      cfg.MaxRetries,
			MinRetryBackoff: cfg.MinRetryBackoff,
			MaxRetryBackoff: cfg.MaxRetryBackoff,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			TLSConfig:       tlsConfig,
		})
	default:
		return nil, fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}

	client := Wrap(rdb, cfg, log)

	// 健康检查
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	client.logger.Info("redis client initialized successfully",
		zap.String("mode", string(cfg.Mode)),
		zap.String("master_addr", cfg.MasterAddr),
	)
	return client, nil
}

// Wrap 包装已有的 go-redis 客户端
func Wrap(rdb redis.UniversalClient, cfg *Config, log *logger.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		config: cfg,
		logger: log.Named("redis"),
		rdb:    rdb,
	}
}

func loadTLSConfig(cfg *Config) (*tls.Config, error) {
	if !cfg.EnableTLS {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify,
		ServerName:         cfg.TLSServerName,
	}
	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file failed: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("append CA cert failed")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return ErrNotInitialized
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.logger.Error("redis ping failed", zap.Error(err))
		return err
	}
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("close redis client failed", zap.Error(err))
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}

// Universal 获取底层客户端（用于高级操作）
func (c *Client) Universal() redis.UniversalClient {
	return c.rdb
}

// Key 拼接带配置前缀的键
func (c *Client) Key(parts ...string) string {
	return c.config.Key(parts...)
}
