// Package queue arbitrates discovery requests: priority ordering, single-flight
// per normalized term, cache-first resolution and bounded concurrency.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/cache"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/chain"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/quota"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/workerpool"
	wstypes "github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// Runner resolves a term through the provider fallback chain
type Runner interface {
	Run(ctx context.Context, term string) (*chain.Outcome, error)
}

// budgeted runners expose the trackers paying for each provider
type budgeted interface {
	Budgets() map[wstypes.ProviderID]quota.Tracker
}

// Config 调度器配置
type Config struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	WorkTimeout time.Duration `mapstructure:"work_timeout"` // upper bound for one resolution, detached from callers
}

// DefaultConfig bounds the engine to five concurrent chains
func DefaultConfig() Config {
	return Config{
		Workers:     5,
		QueueSize:   1000,
		WorkTimeout: 30 * time.Second,
	}
}

type pendingRequest struct {
	priority types.Priority
	queued   bool
}

type taskResult struct {
	results []types.CandidateResult
	err     error
}

// Dispatcher 发现请求调度器
type Dispatcher struct {
	cfg    Config
	cache  cache.Store // nil means provider-only
	runner Runner
	quota  quota.Tracker
	log    *logger.Logger

	group    singleflight.Group
	inFlight atomic.Int64

	mu      sync.Mutex
	pool    *workerpool.Pool
	running bool
	closed  chan struct{}
	pending map[string]*pendingRequest
}

// NewDispatcher creates a dispatcher; call Start before Submit
func NewDispatcher(cfg Config, store cache.Store, runner Runner, tracker quota.Tracker, log *logger.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.WorkTimeout <= 0 {
		cfg.WorkTimeout = def.WorkTimeout
	}
	return &Dispatcher{
		cfg:     cfg,
		cache:   store,
		runner:  runner,
		quota:   tracker,
		log:     log.Named("dispatcher"),
		closed:  make(chan struct{}),
		pending: make(map[string]*pendingRequest),
	}
}

// Start 启动 worker pool
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("dispatcher already running")
	}
	select {
	case <-d.closed:
		return types.ErrDispatcherClosed
	default:
	}

	pool, err := workerpool.New(&workerpool.Config{
		Workers:   d.cfg.Workers,
		QueueSize: d.cfg.QueueSize,
	}, d.log.Logger)
	if err != nil {
		return err
	}

	d.pool = pool
	d.running = true
	d.log.Info("discovery dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize))
	return nil
}

// Stop rejects new work, drops queued requests and waits for running ones
// until ctx is done. Waiting callers of dropped requests get ErrDispatcherClosed.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.closed)
	pool := d.pool
	d.mu.Unlock()

	timeout := d.cfg.WorkTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	dropped := pool.Shutdown(timeout)
	d.log.Info("discovery dispatcher stopped", zap.Int("dropped", dropped))
}

// Submit resolves term, sharing one execution among all concurrent callers of
// the same normalized term. Cancelling ctx abandons only this caller's wait;
// the execution still completes and populates the cache.
func (d *Dispatcher) Submit(ctx context.Context, term string, priority types.Priority) ([]types.CandidateResult, error) {
	key := types.NormalizeTerm(term)
	if key == "" {
		return nil, types.NewDiscoveryError(term, types.ErrInvalidInput, nil)
	}
	display := types.DisplayTerm(term)

	if err := d.register(key, priority); err != nil {
		return nil, err
	}

	ch := d.group.DoChan(key, func() (interface{}, error) {
		return d.execute(key, display, priority)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return types.CloneResults(res.Val.([]types.CandidateResult)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status reports queue and quota state without side effects
func (d *Dispatcher) Status(ctx context.Context) (types.QueueStatus, error) {
	status := types.QueueStatus{InFlight: int(d.inFlight.Load())}

	d.mu.Lock()
	if d.pool != nil {
		status.QueueLength = d.pool.QueueLength()
	}
	d.mu.Unlock()

	snap, err := d.quota.Snapshot(ctx)
	if err != nil {
		return status, fmt.Errorf("quota snapshot: %w", err)
	}
	status.RequestsToday = snap.RequestsToday
	status.RequestsThisMonth = snap.RequestsThisMonth
	status.DailyLimit = snap.DailyLimit
	status.MonthlyLimit = snap.MonthlyLimit

	// providers with a dedicated budget are not counted in the shared totals
	b, ok := d.runner.(budgeted)
	if !ok {
		return status, nil
	}
	for id, tracker := range b.Budgets() {
		if tracker == nil || tracker == d.quota {
			continue
		}
		counter, err := tracker.Snapshot(ctx)
		if err != nil {
			return status, fmt.Errorf("quota snapshot %s: %w", id, err)
		}
		if status.Providers == nil {
			status.Providers = make(map[string]types.QuotaCounter)
		}
		status.Providers[string(id)] = counter
	}
	return status, nil
}

// register rejects callers after Stop. A high priority caller promotes a
// request that is still queued at normal priority; it never creates an entry,
// only execute does.
func (d *Dispatcher) register(key string, priority types.Priority) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return types.ErrDispatcherClosed
	}

	req, ok := d.pending[key]
	if !ok || priority != types.PriorityHigh || req.priority == types.PriorityHigh {
		return nil
	}
	req.priority = types.PriorityHigh
	if req.queued && d.pool.Promote(key, workerpool.PriorityHigh) {
		d.log.Debug("promoted queued request", zap.String("search_term", key))
	}
	return nil
}

// execute runs once per key at a time under singleflight. priority is the
// one of the caller that started the flight.
func (d *Dispatcher) execute(key, display string, priority types.Priority) (interface{}, error) {
	done := make(chan taskResult, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("discovery task panicked", zap.String("search_term", key), zap.Any("panic", r))
				done <- taskResult{err: fmt.Errorf("discovery task panicked: %v", r)}
			}
		}()
		results, err := d.resolve(key, display)
		done <- taskResult{results: results, err: err}
	}

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil, types.ErrDispatcherClosed
	}
	req := &pendingRequest{priority: priority}
	err := d.pool.SubmitKeyed(key, poolPriority(priority), task)
	if err == nil {
		req.queued = true
		d.pending[key] = req
	}
	d.mu.Unlock()

	if err != nil {
		if errors.Is(err, workerpool.ErrPoolClosed) {
			return nil, types.ErrDispatcherClosed
		}
		if errors.Is(err, workerpool.ErrQueueFull) {
			return nil, types.NewDiscoveryError(display, types.ErrQueueFull, err)
		}
		return nil, err
	}

	defer d.forget(key, req)
	select {
	case res := <-done:
		return res.results, res.err
	case <-d.closed:
		// still-queued work was dropped; running work may finish and fill the cache
		return nil, types.ErrDispatcherClosed
	}
}

func (d *Dispatcher) forget(key string, req *pendingRequest) {
	d.mu.Lock()
	if d.pending[key] == req {
		delete(d.pending, key)
	}
	d.mu.Unlock()
}

// resolve is the worker body: cache, then chain, then write-through.
func (d *Dispatcher) resolve(key, display string) ([]types.CandidateResult, error) {
	d.inFlight.Add(1)
	defer d.inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WorkTimeout)
	defer cancel()
	ctx = logger.WithSearchTerm(ctx, key)
	log := d.log.WithContext(ctx)

	if d.cache != nil {
		entry, err := d.cache.Get(ctx, key)
		switch {
		case err == nil:
			log.Debug("cache hit", zap.Int64("hit_count", entry.HitCount))
			return finish(display, entry.Results)
		case errors.Is(err, cache.ErrMiss):
		default:
			log.Warn("cache unavailable, resolving without cache", zap.Error(err))
		}
	}

	start := time.Now()
	out, err := d.runner.Run(ctx, display)
	if err != nil {
		log.Warn("discovery failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return nil, err
	}

	log.Info("discovery resolved",
		zap.String("source", out.Source),
		zap.Bool("guessed", out.Guessed),
		zap.Int("results", len(out.Results)),
		zap.Int("tiers", len(out.Attempts)),
		zap.Duration("took", time.Since(start)))

	if out.Cacheable && d.cache != nil {
		if _, err := d.cache.Put(ctx, key, out.Results); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}
	return finish(display, out.Results)
}

func finish(display string, results []types.CandidateResult) ([]types.CandidateResult, error) {
	if len(results) == 0 {
		return nil, types.NewDiscoveryError(display, types.ErrNoResults, nil)
	}
	return types.CloneResults(results), nil
}

func poolPriority(p types.Priority) workerpool.Priority {
	if p == types.PriorityHigh {
		return workerpool.PriorityHigh
	}
	return workerpool.PriorityNormal
}
