// Package housekeeping runs the periodic maintenance jobs of the discovery engine.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/quota"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

// Purger deletes cache entries that expired before a cutoff
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Flusher writes hit counts buffered in memory to durable storage
type Flusher interface {
	Flush(ctx context.Context)
}

// Config 定时任务配置，cron 表达式按 UTC 解析
type Config struct {
	Enabled         bool          `mapstructure:"enabled"`
	PurgeSpec       string        `mapstructure:"purge_spec"`
	FlushSpec       string        `mapstructure:"flush_spec"`
	QuotaReportSpec string        `mapstructure:"quota_report_spec"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
}

// DefaultConfig purges hourly and reports quota usage shortly before the UTC day rolls over
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		PurgeSpec:       "@every 1h",
		FlushSpec:       "@every 1m",
		QuotaReportSpec: "55 23 * * *",
		JobTimeout:      time.Minute,
	}
}

// Housekeeper 后台维护任务
type Housekeeper struct {
	cfg   Config
	cron  *cron.Cron
	cache Purger // nil disables purge and flush
	quota quota.Tracker
	log   *logger.Logger
	now   func() time.Time

	mu      sync.Mutex
	running bool
}

// New creates a housekeeper. Empty specs disable the matching job.
func New(cfg Config, store Purger, tracker quota.Tracker, log *logger.Logger) *Housekeeper {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig().JobTimeout
	}
	log = log.Named("housekeeping")
	cl := cronLogger{log: log}
	return &Housekeeper{
		cfg: cfg,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		cache: store,
		quota: tracker,
		log:   log,
		now:   time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (h *Housekeeper) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return errors.New("housekeeper already running")
	}

	if h.cache != nil && h.cfg.PurgeSpec != "" {
		if err := h.add("purge", h.cfg.PurgeSpec, func(ctx context.Context) {
			_, _ = h.PurgeExpired(ctx)
		}); err != nil {
			return err
		}
	}
	if f, ok := h.cache.(Flusher); ok && h.cfg.FlushSpec != "" {
		if err := h.add("flush", h.cfg.FlushSpec, f.Flush); err != nil {
			return err
		}
	}
	if h.quota != nil && h.cfg.QuotaReportSpec != "" {
		if err := h.add("quota_report", h.cfg.QuotaReportSpec, func(ctx context.Context) {
			_, _ = h.ReportQuota(ctx)
		}); err != nil {
			return err
		}
	}

	h.cron.Start()
	h.running = true
	h.log.Info("housekeeping started", zap.Int("jobs", len(h.cron.Entries())))
	return nil
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (h *Housekeeper) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	h.mu.Unlock()

	select {
	case <-h.cron.Stop().Done():
		h.log.Info("housekeeping stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PurgeExpired deletes entries more than the stale retention window past expiry
func (h *Housekeeper) PurgeExpired(ctx context.Context) (int64, error) {
	if h.cache == nil {
		return 0, nil
	}
	before := h.now().UTC().Add(-types.StaleRetention)
	n, err := h.cache.Purge(ctx, before)
	if err != nil {
		h.log.Warn("cache purge failed", zap.Error(err))
		return 0, err
	}
	h.log.Info("cache purged", zap.Int64("deleted", n), zap.Time("expired_before", before))
	return n, nil
}

// ReportQuota logs current quota usage. Counters roll over by their own day and
// month keys, so nothing is reset here.
func (h *Housekeeper) ReportQuota(ctx context.Context) (types.QuotaCounter, error) {
	snap, err := h.quota.Snapshot(ctx)
	if err != nil {
		h.log.Warn("quota snapshot failed", zap.Error(err))
		return snap, err
	}
	h.log.Info("quota usage",
		zap.String("day", quota.DayKey(h.now())),
		zap.Int64("requests_today", snap.RequestsToday),
		zap.Int64("daily_limit", snap.DailyLimit),
		zap.Int64("requests_this_month", snap.RequestsThisMonth),
		zap.Int64("monthly_limit", snap.MonthlyLimit))
	return snap, nil
}

func (h *Housekeeper) add(name, spec string, job func(ctx context.Context)) error {
	_, err := h.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.JobTimeout)
		defer cancel()
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %s job %q: %w", name, spec, err)
	}
	return nil
}

// cronLogger adapts the zap logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
