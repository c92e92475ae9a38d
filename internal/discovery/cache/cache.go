// Package cache stores discovery results keyed by normalized search term.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

// ErrMiss is returned by Get when no fresh entry exists.
var ErrMiss = errors.New("cache miss")

// Store is the durable term -> results mapping.
//
// Get only returns entries with now < ExpiresAt and counts the read as a hit.
// Put upserts: an existing entry gets its hit count incremented and its results
// and expiry refreshed; a new entry starts with HitCount 1.
// Inspect returns stale entries too and does not count a hit.
// Failures reaching the backend wrap types.ErrCacheUnavailable.
type Store interface {
	Get(ctx context.Context, term string) (*types.SearchCacheEntry, error)
	Put(ctx context.Context, term string, results []types.CandidateResult) (*types.SearchCacheEntry, error)
	Invalidate(ctx context.Context, term string) error
	Inspect(ctx context.Context, term string) (*types.SearchCacheEntry, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// HitRecorder is implemented by stores that accept hit counts observed elsewhere.
type HitRecorder interface {
	AddHits(ctx context.Context, term string, n int64) error
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config 缓存配置
type Config struct {
	Backend   string        `mapstructure:"backend"`
	TTL       time.Duration `mapstructure:"ttl"`
	LocalTTL  time.Duration `mapstructure:"local_ttl"`
	LocalSize int           `mapstructure:"local_size"`
}

// DefaultConfig returns a seven day durable TTL fronted by a ten second local tier
func DefaultConfig() Config {
	return Config{
		Backend:   BackendRedis,
		TTL:       7 * 24 * time.Hour,
		LocalTTL:  10 * time.Second,
		LocalSize: 1024,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Backend)
	}
	if c.TTL <= 0 {
		return errors.New("cache ttl must be positive")
	}
	if c.LocalTTL < 0 || c.LocalSize < 0 {
		return errors.New("local cache settings must not be negative")
	}
	return nil
}

// Unavailable wraps a backend failure.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrCacheUnavailable, op, err)
}
