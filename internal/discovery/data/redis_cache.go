package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/cache"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/redis"
)

// 缓存条目以 hash 存储：results / created_at / expires_at (毫秒) / hit_count

var cacheGetScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if not exp or tonumber(exp) <= tonumber(ARGV[1]) then
	return false
end
redis.call('HINCRBY', KEYS[1], 'hit_count', 1)
return redis.call('HMGET', KEYS[1], 'results', 'created_at', 'expires_at', 'hit_count')
`)

var cachePutScript = redis.NewScript(`
redis.call('HINCRBY', KEYS[1], 'hit_count', 1)
redis.call('HSETNX', KEYS[1], 'created_at', ARGV[2])
redis.call('HSET', KEYS[1], 'results', ARGV[1], 'expires_at', ARGV[3])
redis.call('PEXPIREAT', KEYS[1], ARGV[4])
return redis.call('HMGET', KEYS[1], 'results', 'created_at', 'expires_at', 'hit_count')
`)

var cacheAddHitsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
return redis.call('HINCRBY', KEYS[1], 'hit_count', ARGV[1])
`)

var cachePurgeScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if exp and tonumber(exp) < tonumber(ARGV[1]) then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisCacheStore keeps search results in Redis hashes.
// Keys expire on their own one stale-retention period after ExpiresAt.
type RedisCacheStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisCacheStore creates a Redis backed cache store
func NewRedisCacheStore(client *redis.Client, ttl time.Duration) *RedisCacheStore {
	return &RedisCacheStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisCacheStore) key(term string) string {
	return s.client.Key("cache", term)
}

func (s *RedisCacheStore) Get(ctx context.Context, term string) (*types.SearchCacheEntry, error) {
	vals, err := s.client.RunScript(ctx, cacheGetScript, []string{s.key(term)}, s.now().UnixMilli()).Slice()
	if redis.IsNil(err) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, cache.Unavailable("get", err)
	}
	return decodeCacheHash(term, vals)
}

func (s *RedisCacheStore) Put(ctx context.Context, term string, results []types.CandidateResult) (*types.SearchCacheEntry, error) {
	if results == nil {
		results = []types.CandidateResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode cache results: %w", err)
	}

	now := s.now()
	expires := now.Add(s.ttl)
	vals, err := s.client.RunScript(ctx, cachePutScript, []string{s.key(term)},
		string(payload),
		now.UnixMilli(),
		expires.UnixMilli(),
		expires.Add(types.StaleRetention).UnixMilli(),
	).Slice()
	if err != nil {
		return nil, cache.Unavailable("put", err)
	}
	return decodeCacheHash(term, vals)
}

func (s *RedisCacheStore) Invalidate(ctx context.Context, term string) error {
	if _, err := s.client.Del(ctx, s.key(term)); err != nil {
		return cache.Unavailable("invalidate", err)
	}
	return nil
}

func (s *RedisCacheStore) Inspect(ctx context.Context, term string) (*types.SearchCacheEntry, error) {
	vals, err := s.client.Universal().HMGet(ctx, s.key(term), "results", "created_at", "expires_at", "hit_count").Result()
	if err != nil {
		return nil, cache.Unavailable("inspect", err)
	}
	if vals[0] == nil {
		return nil, cache.ErrMiss
	}
	return decodeCacheHash(term, vals)
}

// Purge deletes entries whose expiry is before the cutoff
func (s *RedisCacheStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := s.client.ScanKeys(ctx, s.key("*"), 200, func(keys []string) error {
		for _, k := range keys {
			n, err := s.client.RunScript(ctx, cachePurgeScript, []string{k}, before.UnixMilli()).Int64()
			if err != nil {
				return err
			}
			purged += n
		}
		return nil
	})
	if err != nil {
		return purged, cache.Unavailable("purge", err)
	}
	return purged, nil
}

// AddHits credits hits served from the local tier
func (s *RedisCacheStore) AddHits(ctx context.Context, term string, n int64) error {
	if n <= 0 {
		return nil
	}
	if err := s.client.RunScript(ctx, cacheAddHitsScript, []string{s.key(term)}, n).Err(); err != nil {
		return cache.Unavailable("add hits", err)
	}
	return nil
}

func decodeCacheHash(term string, vals []interface{}) (*types.SearchCacheEntry, error) {
	if len(vals) != 4 {
		return nil, cache.Unavailable("decode", fmt.Errorf("unexpected reply length %d", len(vals)))
	}

	fields := make([]string, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case string:
			fields[i] = x
		case nil:
			return nil, cache.Unavailable("decode", fmt.Errorf("entry %q is missing field %d", term, i))
		default:
			fields[i] = fmt.Sprint(x)
		}
	}

	var results []types.CandidateResult
	if err := json.Unmarshal([]byte(fields[0]), &results); err != nil {
		return nil, cache.Unavailable("decode", err)
	}
	created, err1 := strconv.ParseInt(fields[1], 10, 64)
	expires, err2 := strconv.ParseInt(fields[2], 10, 64)
	hits, err3 := strconv.ParseInt(fields[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, cache.Unavailable("decode", fmt.Errorf("entry %q has malformed counters", term))
	}

	return &types.SearchCacheEntry{
		SearchTerm: term,
		Results:    results,
		CreatedAt:  time.UnixMilli(created).UTC(),
		ExpiresAt:  time.UnixMilli(expires).UTC(),
		HitCount:   hits,
	}, nil
}
