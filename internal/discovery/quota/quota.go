// Package quota enforces the daily and monthly external search budgets.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

// Tracker counts provider calls against daily and monthly ceilings.
// TryReserve is an atomic check-and-increment of both counters.
type Tracker interface {
	TryReserve(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (types.QuotaCounter, error)
	Reset(ctx context.Context) error
}

// Config 配额配置
type Config struct {
	DailyLimit   int64 `mapstructure:"daily_limit"`
	MonthlyLimit int64 `mapstructure:"monthly_limit"`
}

// DefaultConfig returns the free-tier budget of the common search APIs.
func DefaultConfig() Config {
	return Config{
		DailyLimit:   100,
		MonthlyLimit: 3000,
	}
}

// Validate checks the limits
func (c Config) Validate() error {
	if c.DailyLimit <= 0 || c.MonthlyLimit <= 0 {
		return errors.New("quota limits must be positive")
	}
	if c.DailyLimit > c.MonthlyLimit {
		return fmt.Errorf("daily limit %d exceeds monthly limit %d", c.DailyLimit, c.MonthlyLimit)
	}
	return nil
}

// DayKey returns the UTC calendar day bucket for t.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MonthKey returns the UTC calendar month bucket for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
