package chain

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	wstypes "github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// RetryConfig 重试配置
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"` // including the first call
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// DefaultRetryConfig allows one retry of a transient failure
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// RetryPolicy is the single retry policy applied to every provider call.
type RetryPolicy struct {
	cfg RetryConfig
}

// NewRetryPolicy creates a policy; MaxAttempts below 1 means a single attempt
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryPolicy{cfg: cfg}
}

// Retryable reports whether err is a transient provider failure (network, 429, 5xx).
func (p *RetryPolicy) Retryable(err error) bool {
	var perr *wstypes.ProviderError
	if errors.As(err, &perr) {
		return perr.Transient()
	}
	return false
}

// Do runs op until it succeeds, returns a backoff.Permanent error, runs out of
// attempts or ctx is done.
func (p *RetryPolicy) Do(ctx context.Context, op backoff.Operation, notify backoff.Notify) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval
	b.MaxElapsedTime = 0

	bo := backoff.WithMaxRetries(b, uint64(p.cfg.MaxAttempts-1))
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}
