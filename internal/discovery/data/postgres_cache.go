package data

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/cache"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/models"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/database"
)

// PostgresCacheStore keeps search results in the search_cache table
type PostgresCacheStore struct {
	db  *database.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgresCacheStore creates a GORM backed cache store
func NewPostgresCacheStore(db *database.DB, ttl time.Duration) *PostgresCacheStore {
	return &PostgresCacheStore{db: db, ttl: ttl, now: time.Now}
}

func (s *PostgresCacheStore) Get(ctx context.Context, term string) (*types.SearchCacheEntry, error) {
	var row models.SearchCache
	res := s.db.WithContext(ctx).GetDB().
		Model(&row).
		Clauses(clause.Returning{}).
		Where("search_term = ? AND expires_at > ?", term, s.now().UTC()).
		UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1))
	if res.Error != nil {
		return nil, cache.Unavailable("get", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, cache.ErrMiss
	}
	return row.ToEntry(), nil
}

func (s *PostgresCacheStore) Put(ctx context.Context, term string, results []types.CandidateResult) (*types.SearchCacheEntry, error) {
	now := s.now().UTC()
	row := models.SearchCache{
		ID:         uuid.NewString(),
		SearchTerm: term,
		Results:    models.CandidateList(types.CloneResults(results)),
		HitCount:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	err := s.db.WithContext(ctx).GetDB().
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "search_term"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"results":    row.Results,
					"expires_at": row.ExpiresAt,
					"updated_at": now,
					"hit_count":  gorm.Expr("search_cache.hit_count + 1"),
				}),
			},
			clause.Returning{},
		).
		Create(&row).Error
	if err != nil {
		return nil, cache.Unavailable("put", err)
	}
	return row.ToEntry(), nil
}

func (s *PostgresCacheStore) Invalidate(ctx context.Context, term string) error {
	err := s.db.WithContext(ctx).GetDB().
		Where("search_term = ?", term).
		Delete(&models.SearchCache{}).Error
	if err != nil {
		return cache.Unavailable("invalidate", err)
	}
	return nil
}

func (s *PostgresCacheStore) Inspect(ctx context.Context, term string) (*types.SearchCacheEntry, error) {
	var row models.SearchCache
	err := s.db.WithContext(ctx).GetDB().
		Where("search_term = ?", term).
		First(&row).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, cache.ErrMiss
		}
		return nil, cache.Unavailable("inspect", err)
	}
	return row.ToEntry(), nil
}

func (s *PostgresCacheStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).GetDB().
		Where("expires_at < ?", before.UTC()).
		Delete(&models.SearchCache{})
	if res.Error != nil {
		return 0, cache.Unavailable("purge", res.Error)
	}
	return res.RowsAffected, nil
}

// AddHits credits hits served from the local tier
func (s *PostgresCacheStore) AddHits(ctx context.Context, term string, n int64) error {
	if n <= 0 {
		return nil
	}
	err := s.db.WithContext(ctx).GetDB().
		Model(&models.SearchCache{}).
		Where("search_term = ?", term).
		UpdateColumn("hit_count", gorm.Expr("hit_count + ?", n)).Error
	if err != nil {
		return cache.Unavailable("add hits", err)
	}
	return nil
}
