// Package biz is the discovery facade consumed by the HTTP surface and other back-end callers.
package biz

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/linkedin"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

const (
	// MinTermLength is the shortest accepted company name, after trimming
	MinTermLength = 2

	// DefaultAutoSelectThreshold is the confidence at which the UI may preselect the top candidate
	DefaultAutoSelectThreshold = 0.7
)

// Dispatcher resolves normalized terms through the queue
type Dispatcher interface {
	Submit(ctx context.Context, term string, priority types.Priority) ([]types.CandidateResult, error)
	Status(ctx context.Context) (types.QueueStatus, error)
}

// CacheInvalidator removes a cached term
type CacheInvalidator interface {
	Invalidate(ctx context.Context, term string) error
}

// MetricRecorder accepts metrics without blocking
type MetricRecorder interface {
	Record(m types.SearchMetric) bool
	Summary(ctx context.Context, since time.Time) (*types.MetricSummary, error)
}

// DiscoveryUseCase 发现业务逻辑
type DiscoveryUseCase struct {
	dispatcher Dispatcher
	cache      CacheInvalidator // nil when caching is disabled
	metrics    MetricRecorder
	threshold  float64
	now        func() time.Time
	log        *logger.Logger
}

// NewDiscoveryUseCase creates the facade. A threshold outside (0, 1] falls back to the default.
func NewDiscoveryUseCase(d Dispatcher, c CacheInvalidator, m MetricRecorder, threshold float64, log *logger.Logger) *DiscoveryUseCase {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultAutoSelectThreshold
	}
	return &DiscoveryUseCase{
		dispatcher: d,
		cache:      c,
		metrics:    m,
		threshold:  threshold,
		now:        time.Now,
		log:        log.Named("discovery"),
	}
}

// Discover resolves companyName to scored LinkedIn company page candidates.
// Invalid names are rejected before they reach the queue.
func (uc *DiscoveryUseCase) Discover(ctx context.Context, companyName string, priority types.Priority) ([]types.CandidateResult, error) {
	term := types.DisplayTerm(companyName)
	if utf8.RuneCountInString(term) < MinTermLength {
		return nil, types.NewDiscoveryError(term, types.ErrInvalidInput, nil)
	}

	results, err := uc.dispatcher.Submit(ctx, term, priority)
	if err != nil {
		uc.log.WithContext(ctx).Debug("discovery ended without results",
			zap.String("search_term", term),
			zap.String("reason", types.ManualEntryReason(err)),
			zap.Error(err))
		return nil, err
	}
	return results, nil
}

// QueueStatus reports queue depth and quota usage
func (uc *DiscoveryUseCase) QueueStatus(ctx context.Context) (types.QueueStatus, error) {
	return uc.dispatcher.Status(ctx)
}

// InvalidateCache forces the next discovery of term to hit the providers
func (uc *DiscoveryUseCase) InvalidateCache(ctx context.Context, term string) error {
	key := types.NormalizeTerm(term)
	if key == "" {
		return types.NewDiscoveryError(term, types.ErrInvalidInput, nil)
	}
	if uc.cache == nil {
		return nil
	}
	if err := uc.cache.Invalidate(ctx, key); err != nil {
		return fmt.Errorf("invalidate %q: %w", key, err)
	}
	uc.log.WithContext(ctx).Info("cache entry invalidated", zap.String("search_term", key))
	return nil
}

// ValidateURL reports whether raw is a LinkedIn company page and returns its canonical form
func (uc *DiscoveryUseCase) ValidateURL(raw string) (string, bool) {
	canonical, err := linkedin.Canonicalize(raw)
	if err != nil {
		return "", false
	}
	return canonical, true
}

// AutoSelect returns the top candidate when its confidence reaches the threshold
func (uc *DiscoveryUseCase) AutoSelect(results []types.CandidateResult) (*types.CandidateResult, bool) {
	return AutoSelect(results, uc.threshold)
}

// AutoSelect returns the first result when its confidence is at least threshold.
// Results are expected in confidence order.
func AutoSelect(results []types.CandidateResult, threshold float64) (*types.CandidateResult, bool) {
	if len(results) == 0 || results[0].Confidence < threshold {
		return nil, false
	}
	top := results[0]
	return &top, true
}
