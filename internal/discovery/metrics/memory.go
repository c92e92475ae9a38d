package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

// MemorySink keeps metrics in process memory when no database is configured
type MemorySink struct {
	mu      sync.Mutex
	metrics []types.SearchMetric
}

// NewMemorySink creates an empty sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, m *types.SearchMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, *m)
	return nil
}

func (s *MemorySink) Summarize(_ context.Context, since time.Time) (*types.MetricSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := &types.MetricSummary{Since: since, ByAction: make(map[types.UserAction]int64)}
	var totalMs int64
	for _, m := range s.metrics {
		if m.CreatedAt.Before(since) {
			continue
		}
		summary.Total++
		summary.ByAction[m.UserAction]++
		totalMs += m.ResponseTimeMs
	}
	if summary.Total > 0 {
		summary.AvgResponseTimeMs = float64(totalMs) / float64(summary.Total)
	}
	return summary, nil
}

// All returns a copy of the stored metrics
func (s *MemorySink) All() []types.SearchMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.SearchMetric(nil), s.metrics...)
}
