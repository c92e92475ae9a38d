package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/quota"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/redis"
)

// 日/月计数器在同一 Lua 脚本中检查并自增；键带月份 hash tag 以便集群模式下落在同一 slot
var quotaReserveScript = redis.NewScript(`
local d = tonumber(redis.call('GET', KEYS[1]) or '0')
local m = tonumber(redis.call('GET', KEYS[2]) or '0')
if d >= tonumber(ARGV[1]) or m >= tonumber(ARGV[2]) then
	return 0
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
return 1
`)

// RedisTracker shares the provider budget across every process using the same Redis.
type RedisTracker struct {
	client *redis.Client
	cfg    quota.Config
	scope  string
	now    func() time.Time
}

// NewRedisTracker creates a Redis backed quota tracker
func NewRedisTracker(client *redis.Client, cfg quota.Config) *RedisTracker {
	return &RedisTracker{client: client, cfg: cfg, now: time.Now}
}

// Scoped returns a tracker with its own counters, used for providers with a dedicated budget
func (t *RedisTracker) Scoped(scope string, cfg quota.Config) *RedisTracker {
	return &RedisTracker{client: t.client, cfg: cfg, scope: scope, now: t.now}
}

func (t *RedisTracker) keys(now time.Time) (day, month string) {
	parts := []string{"quota"}
	if t.scope != "" {
		parts = append(parts, t.scope)
	}
	parts = append(parts, "{"+quota.MonthKey(now)+"}")
	return t.client.Key(append(parts, "day", quota.DayKey(now))...),
		t.client.Key(append(parts, "month")...)
}

func (t *RedisTracker) TryReserve(ctx context.Context) (bool, error) {
	now := t.now().UTC()
	day, month := t.keys(now)

	ok, err := t.client.RunScript(ctx, quotaReserveScript, []string{day, month},
		t.cfg.DailyLimit,
		t.cfg.MonthlyLimit,
		ttlUntil(nextDay(now), now).Milliseconds(),
		ttlUntil(nextMonth(now), now).Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrQuotaDenied, err)
	}
	return ok == 1, nil
}

func (t *RedisTracker) Snapshot(ctx context.Context) (types.QuotaCounter, error) {
	day, month := t.keys(t.now().UTC())
	counter := types.QuotaCounter{
		DailyLimit:   t.cfg.DailyLimit,
		MonthlyLimit: t.cfg.MonthlyLimit,
	}

	vals, err := t.client.Universal().MGet(ctx, day, month).Result()
	if err != nil {
		return counter, fmt.Errorf("quota snapshot: %w", err)
	}
	counter.RequestsToday = parseCount(vals[0])
	counter.RequestsThisMonth = parseCount(vals[1])
	return counter, nil
}

// Reset zeroes both counters for the current period
func (t *RedisTracker) Reset(ctx context.Context) error {
	day, month := t.keys(t.now().UTC())
	if _, err := t.client.Del(ctx, day, month); err != nil {
		return fmt.Errorf("quota reset: %w", err)
	}
	return nil
}

func parseCount(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

func nextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}

// ttlUntil keeps a counter one day past the end of its period
func ttlUntil(end, now time.Time) time.Duration {
	return end.Sub(now) + 24*time.Hour
}
