package quota

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

// MemoryTracker is a process-local tracker. Counters roll over when the UTC day or month changes.
type MemoryTracker struct {
	mu    sync.Mutex
	cfg   Config
	now   func() time.Time
	day   string
	month string
	today int64
	mtd   int64
}

// Option configures a MemoryTracker
type Option func(*MemoryTracker)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(t *MemoryTracker) {
		t.now = now
	}
}

// NewMemoryTracker creates an in-process tracker
func NewMemoryTracker(cfg Config, opts ...Option) *MemoryTracker {
	t := &MemoryTracker{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MemoryTracker) TryReserve(_ context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	if t.today >= t.cfg.DailyLimit || t.mtd >= t.cfg.MonthlyLimit {
		return false, nil
	}
	t.today++
	t.mtd++
	return true, nil
}

func (t *MemoryTracker) Snapshot(_ context.Context) (types.QuotaCounter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	return types.QuotaCounter{
		RequestsToday:     t.today,
		RequestsThisMonth: t.mtd,
		DailyLimit:        t.cfg.DailyLimit,
		MonthlyLimit:      t.cfg.MonthlyLimit,
	}, nil
}

// Reset zeroes both counters for the current period.
func (t *MemoryTracker) Reset(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.day, t.month = "", ""
	t.rollover()
	return nil
}

// must hold t.mu
func (t *MemoryTracker) rollover() {
	now := t.now()
	if day := DayKey(now); day != t.day {
		t.day = day
		t.today = 0
	}
	if month := MonthKey(now); month != t.month {
		t.month = month
		t.mtd = 0
	}
}
