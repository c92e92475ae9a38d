// Package metrics records terminal user decisions about discovery results.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

// Sink persists metrics
type Sink interface {
	Append(ctx context.Context, m *types.SearchMetric) error
	Summarize(ctx context.Context, since time.Time) (*types.MetricSummary, error)
}

// Config 指标记录配置
type Config struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the default recorder configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   256,
		WriteTimeout: 3 * time.Second,
	}
}

// Recorder buffers metrics and appends them to the sink from one background goroutine.
// Record never blocks the caller; a full buffer or a failing sink drops the metric.
type Recorder struct {
	sink Sink
	cfg  Config
	log  *logger.Logger
	now  func() time.Time

	ch   chan *types.SearchMetric
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts the background writer
func NewRecorder(sink Sink, cfg Config, log *logger.Logger) *Recorder {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	r := &Recorder{
		sink: sink,
		cfg:  cfg,
		log:  log.Named("metrics"),
		now:  time.Now,
		ch:   make(chan *types.SearchMetric, cfg.BufferSize),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues m, filling ID and CreatedAt when unset. It reports whether the metric was accepted.
func (r *Recorder) Record(m types.SearchMetric) bool {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn("metric dropped, recorder closed", zap.String("search_term", m.SearchTerm))
		return false
	}

	select {
	case r.ch <- &m:
		return true
	default:
		r.log.Warn("metric dropped, buffer full",
			zap.String("search_term", m.SearchTerm),
			zap.String("user_action", string(m.UserAction)))
		return false
	}
}

// Summary aggregates recorded metrics since the given time
func (r *Recorder) Summary(ctx context.Context, since time.Time) (*types.MetricSummary, error) {
	return r.sink.Summarize(ctx, since)
}

// Close stops accepting metrics and drains the buffer until ctx is done
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for m := range r.ch {
		r.write(m)
	}
}

func (r *Recorder) write(m *types.SearchMetric) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.sink.Append(ctx, m); err != nil {
		r.log.Warn("metric write failed, dropped",
			zap.String("metric_id", m.ID),
			zap.String("search_term", m.SearchTerm),
			zap.Error(err))
	}
}
