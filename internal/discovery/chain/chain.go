// Package chain runs the ordered provider fallback for one search term.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/quota"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	"github.com/lk2023060901/linkedin-discovery/internal/websearch/provider"
	wstypes "github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// SourceURLGuess marks candidates built without a provider call.
const SourceURLGuess = "url_guess"

// AttemptStatus is the result of one tier
type AttemptStatus string

const (
	StatusOK      AttemptStatus = "ok"
	StatusEmpty   AttemptStatus = "empty"
	StatusDenied  AttemptStatus = "denied"
	StatusTimeout AttemptStatus = "timeout"
	StatusFailed  AttemptStatus = "failed"
)

// Tier is one network provider with the quota tracker that pays for it.
type Tier struct {
	Provider provider.Provider
	Quota    quota.Tracker
}

// Attempt records what one tier did
type Attempt struct {
	Provider wstypes.ProviderID `json:"provider"`
	Status   AttemptStatus      `json:"status"`
	Calls    int                `json:"calls"` // quota charged
	Took     time.Duration      `json:"took"`
	Err      error              `json:"-"`
}

// Outcome is the chain result for a term.
// Cacheable is false for URL guesses, which are unverified.
type Outcome struct {
	Results   []types.CandidateResult
	Source    string
	Guessed   bool
	Cacheable bool
	Attempts  []Attempt
}

// Config 回退链配置
type Config struct {
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	MaxResults      int           `mapstructure:"max_results"`    // candidates kept per search
	SearchResults   int           `mapstructure:"search_results"` // results requested from a provider
	Site            string        `mapstructure:"site"`
	EnableURLGuess  bool          `mapstructure:"enable_url_guess"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		ProviderTimeout: 5 * time.Second,
		MaxResults:      3,
		SearchResults:   10,
		Site:            "linkedin.com/company",
		EnableURLGuess:  true,
		Retry:           DefaultRetryConfig(),
	}
}

// Chain tries each tier in order and stops at the first one that yields a
// valid company page.
type Chain struct {
	tiers []Tier
	cfg   Config
	retry *RetryPolicy
	log   *logger.Logger
}

// New creates a chain over tiers in the given order
func New(tiers []Tier, cfg Config, log *logger.Logger) *Chain {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultConfig().ProviderTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	return &Chain{
		tiers: tiers,
		cfg:   cfg,
		retry: NewRetryPolicy(cfg.Retry),
		log:   log.Named("chain"),
	}
}

// Budgets returns the tracker that pays for each tier
func (c *Chain) Budgets() map[wstypes.ProviderID]quota.Tracker {
	out := make(map[wstypes.ProviderID]quota.Tracker, len(c.tiers))
	for _, t := range c.tiers {
		out[t.Provider.GetID()] = t.Quota
	}
	return out
}

// Providers returns the tier order
func (c *Chain) Providers() []wstypes.ProviderID {
	ids := make([]wstypes.ProviderID, len(c.tiers))
	for i, t := range c.tiers {
		ids[i] = t.Provider.GetID()
	}
	return ids
}

// Run resolves term. An empty Results slice with a nil error means providers
// answered with nothing usable (NoResults). When no tier could answer, the URL
// guess is returned if enabled; otherwise a *types.DiscoveryError with
// ErrQuotaExhausted, ErrTransport or ErrNoResults.
func (c *Chain) Run(ctx context.Context, term string) (*Outcome, error) {
	var (
		attempts []Attempt
		answered int
		denied   int
		lastErr  error
	)

	for _, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		results, attempt := c.try(ctx, tier, term)
		attempts = append(attempts, attempt)

		switch attempt.Status {
		case StatusOK:
			return &Outcome{
				Results:   results,
				Source:    string(attempt.Provider),
				Cacheable: true,
				Attempts:  attempts,
			}, nil
		case StatusEmpty:
			answered++
		case StatusDenied:
			denied++
		default:
			lastErr = attempt.Err
		}
	}

	if answered > 0 {
		return &Outcome{Cacheable: true, Attempts: attempts}, nil
	}

	if c.cfg.EnableURLGuess {
		if guess, ok := guessCandidate(term); ok {
			c.log.Info("falling back to url guess",
				zap.String("search_term", term),
				zap.String("url", guess.URL))
			return &Outcome{
				Results:  []types.CandidateResult{guess},
				Source:   SourceURLGuess,
				Guessed:  true,
				Attempts: attempts,
			}, nil
		}
	}

	switch {
	case len(c.tiers) > 0 && denied == len(c.tiers):
		return &Outcome{Attempts: attempts}, types.NewDiscoveryError(term, types.ErrQuotaExhausted, nil)
	case lastErr != nil:
		return &Outcome{Attempts: attempts}, types.NewDiscoveryError(term, types.ErrTransport, lastErr)
	default:
		return &Outcome{Attempts: attempts}, types.NewDiscoveryError(term, types.ErrNoResults, nil)
	}
}

// try runs one tier under the per-provider timeout. Every HTTP attempt,
// retries included, reserves quota first.
func (c *Chain) try(ctx context.Context, tier Tier, term string) ([]types.CandidateResult, Attempt) {
	id := tier.Provider.GetID()
	attempt := Attempt{Provider: id}
	start := time.Now()

	tierCtx, cancel := context.WithTimeout(ctx, c.cfg.ProviderTimeout)
	defer cancel()

	req := &wstypes.SearchRequest{
		Query:          term,
		Site:           c.cfg.Site,
		MaxResults:     c.cfg.SearchResults,
		IncludeDomains: []string{"linkedin.com"},
	}

	var resp *wstypes.SearchResponse
	op := func() error {
		granted, err := tier.Quota.TryReserve(tierCtx)
		if err != nil {
			c.log.Warn("quota check failed, treating as denied",
				zap.String("provider", string(id)),
				zap.Error(err))
			return backoff.Permanent(types.ErrQuotaDenied)
		}
		if !granted {
			return backoff.Permanent(types.ErrQuotaDenied)
		}
		attempt.Calls++

		resp, err = tier.Provider.Search(tierCtx, req)
		if err == nil {
			return nil
		}
		if tierCtx.Err() != nil || !c.retry.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Debug("retrying provider",
			zap.String("provider", string(id)),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := c.retry.Do(tierCtx, op, notify)
	attempt.Took = time.Since(start)

	switch {
	case err == nil:
		results := buildCandidates(term, resp.Results, string(id), c.cfg.MaxResults)
		attempt.Status = StatusOK
		if len(results) == 0 {
			attempt.Status = StatusEmpty
		}
		c.log.Debug("provider answered",
			zap.String("provider", string(id)),
			zap.String("search_term", term),
			zap.Int("raw", len(resp.Results)),
			zap.Int("candidates", len(results)),
			zap.Duration("took", attempt.Took))
		return results, attempt

	case errors.Is(err, types.ErrQuotaDenied) && attempt.Calls == 0:
		attempt.Status = StatusDenied
		attempt.Err = err
		c.log.Info("provider skipped, quota denied", zap.String("provider", string(id)))
		return nil, attempt

	case errors.Is(tierCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		attempt.Status = StatusTimeout
		attempt.Err = fmt.Errorf("%w after %s: %v", types.ErrProviderTimeout, c.cfg.ProviderTimeout, err)

	default:
		attempt.Status = StatusFailed
		attempt.Err = err
	}

	c.log.Warn("provider failed, advancing chain",
		zap.String("provider", string(id)),
		zap.String("status", string(attempt.Status)),
		zap.Int("calls", attempt.Calls),
		zap.Error(attempt.Err))
	return nil, attempt
}
