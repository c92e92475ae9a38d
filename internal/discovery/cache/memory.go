package cache

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

// MemoryStore keeps entries in process memory. Used for tests and the no-backend mode.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*types.SearchCacheEntry
}

// NewMemoryStore creates a store whose entries live for ttl
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]*types.SearchCacheEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, term string) (*types.SearchCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[term]
	if !ok || !e.Fresh(s.now()) {
		return nil, ErrMiss
	}
	e.HitCount++
	return e.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, term string, results []types.CandidateResult) (*types.SearchCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[term]
	if !ok {
		e = &types.SearchCacheEntry{SearchTerm: term, CreatedAt: now}
		s.entries[term] = e
	}
	e.Results = types.CloneResults(results)
	e.ExpiresAt = now.Add(s.ttl)
	e.HitCount++
	return e.Clone(), nil
}

func (s *MemoryStore) Invalidate(_ context.Context, term string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, term)
	return nil
}

func (s *MemoryStore) Inspect(_ context.Context, term string) (*types.SearchCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[term]
	if !ok {
		return nil, ErrMiss
	}
	return e.Clone(), nil
}

func (s *MemoryStore) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for term, e := range s.entries {
		if e.ExpiresAt.Before(before) {
			delete(s.entries, term)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) AddHits(_ context.Context, term string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[term]; ok {
		e.HitCount += n
	}
	return nil
}
