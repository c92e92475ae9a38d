package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

// flushTimeout bounds a background hit-count flush
const flushTimeout = 5 * time.Second

type localEntry struct {
	entry   *types.SearchCacheEntry
	pending atomic.Int64 // hits served locally, not yet in the durable store
	flushed atomic.Int64
}

// Tiered fronts a durable store with a small expiring in-process LRU.
// Writes and invalidations go to the durable store first; the local tier
// never outlives its own TTL, so it cannot diverge for longer than that.
type Tiered struct {
	durable Store
	local   *expirable.LRU[string, *localEntry]
	now     func() time.Time
	log     *logger.Logger
}

// NewTiered wraps durable. A zero size or ttl disables the local tier.
func NewTiered(durable Store, size int, ttl time.Duration, log *logger.Logger) *Tiered {
	t := &Tiered{
		durable: durable,
		now:     time.Now,
		log:     log.Named("cache-tiered"),
	}
	if size > 0 && ttl > 0 {
		t.local = expirable.NewLRU[string, *localEntry](size, t.onEvict, ttl)
	}
	return t
}

func (t *Tiered) Get(ctx context.Context, term string) (*types.SearchCacheEntry, error) {
	if t.local != nil {
		if le, ok := t.local.Get(term); ok && le.entry.Fresh(t.now()) {
			hits := le.pending.Add(1)
			e := le.entry.Clone()
			e.HitCount += le.flushed.Load() + hits
			return e, nil
		}
	}

	e, err := t.durable.Get(ctx, term)
	if err != nil {
		return nil, err
	}
	t.remember(term, e)
	return e, nil
}

func (t *Tiered) Put(ctx context.Context, term string, results []types.CandidateResult) (*types.SearchCacheEntry, error) {
	e, err := t.durable.Put(ctx, term, results)
	if err != nil {
		t.forget(term)
		return nil, err
	}
	t.forget(term)
	t.remember(term, e)
	return e, nil
}

func (t *Tiered) Invalidate(ctx context.Context, term string) error {
	err := t.durable.Invalidate(ctx, term)
	t.forget(term)
	return err
}

func (t *Tiered) Inspect(ctx context.Context, term string) (*types.SearchCacheEntry, error) {
	return t.durable.Inspect(ctx, term)
}

func (t *Tiered) Purge(ctx context.Context, before time.Time) (int64, error) {
	return t.durable.Purge(ctx, before)
}

// LocalLen returns the number of entries in the in-process tier
func (t *Tiered) LocalLen() int {
	if t.local == nil {
		return 0
	}
	return t.local.Len()
}

// Flush writes locally counted hits to the durable store.
func (t *Tiered) Flush(ctx context.Context) {
	if t.local == nil {
		return
	}
	for _, term := range t.local.Keys() {
		if le, ok := t.local.Peek(term); ok {
			t.flush(ctx, term, le)
		}
	}
}

func (t *Tiered) remember(term string, e *types.SearchCacheEntry) {
	if t.local == nil {
		return
	}
	t.local.Add(term, &localEntry{entry: e.Clone()})
}

// forget drops the local copy; the evict callback flushes its pending hits
func (t *Tiered) forget(term string) {
	if t.local == nil {
		return
	}
	t.local.Remove(term)
}

func (t *Tiered) onEvict(term string, le *localEntry) {
	if le.pending.Load() == 0 {
		return
	}
	// called with the LRU lock held
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		t.flush(ctx, term, le)
	}()
}

func (t *Tiered) flush(ctx context.Context, term string, le *localEntry) {
	n := le.pending.Swap(0)
	if n == 0 {
		return
	}
	hr, ok := t.durable.(HitRecorder)
	if !ok {
		return
	}
	err := hr.AddHits(ctx, term, n)
	if err == nil {
		le.flushed.Add(n)
		return
	}
	if !errors.Is(err, ErrMiss) {
		t.log.Warn("failed to flush local cache hits",
			zap.String("search_term", term),
			zap.Int64("hits", n),
			zap.Error(err))
	}
}
