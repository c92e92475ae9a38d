package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/models"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/database"
)

// MetricsRepo 搜索指标仓储（只追加）
type MetricsRepo struct {
	db *database.DB
}

// NewMetricsRepo creates the search_metrics repository
func NewMetricsRepo(db *database.DB) *MetricsRepo {
	return &MetricsRepo{db: db}
}

// Append inserts one metric row
func (r *MetricsRepo) Append(ctx context.Context, m *types.SearchMetric) error {
	if err := r.db.WithContext(ctx).GetDB().Create(models.NewSearchMetric(m)).Error; err != nil {
		return fmt.Errorf("%w: %v", types.ErrMetricsWrite, err)
	}
	return nil
}

type actionAggregate struct {
	UserAction string
	Total      int64
	AvgMs      float64
}

// Summarize aggregates metrics created at or after since
func (r *MetricsRepo) Summarize(ctx context.Context, since time.Time) (*types.MetricSummary, error) {
	var rows []actionAggregate
	err := r.db.WithContext(ctx).GetDB().
		Model(&models.SearchMetric{}).
		Select("user_action, COUNT(*) AS total, COALESCE(AVG(response_time_ms), 0) AS avg_ms").
		Where("created_at >= ?", since.UTC()).
		Group("user_action").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarize search metrics: %w", err)
	}

	summary := &types.MetricSummary{
		Since:    since,
		ByAction: make(map[types.UserAction]int64, len(rows)),
	}
	var weighted float64
	for _, row := range rows {
		summary.ByAction[types.UserAction(row.UserAction)] = row.Total
		summary.Total += row.Total
		weighted += row.AvgMs * float64(row.Total)
	}
	if summary.Total > 0 {
		summary.AvgResponseTimeMs = weighted / float64(summary.Total)
	}
	return summary, nil
}
