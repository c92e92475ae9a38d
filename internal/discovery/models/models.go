package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

// SearchCache is the GORM model for the search_cache table
type SearchCache struct {
	ID         string        `gorm:"type:uuid;primaryKey"`
	SearchTerm string        `gorm:"size:255;not null;uniqueIndex:idx_search_cache_term"`
	Results    CandidateList `gorm:"type:jsonb;not null;default:'[]'"`
	HitCount   int64         `gorm:"not null;default:1"`
	CreatedAt  time.Time     `gorm:"not null"`
	UpdatedAt  time.Time     `gorm:"not null"`
	ExpiresAt  time.Time     `gorm:"not null;index:idx_search_cache_expires_at"`
}

// TableName specifies the table name
func (SearchCache) TableName() string {
	return "search_cache"
}

// ToEntry converts the row to the domain value
func (m *SearchCache) ToEntry() *types.SearchCacheEntry {
	return &types.SearchCacheEntry{
		SearchTerm: m.SearchTerm,
		Results:    types.CloneResults(m.Results),
		CreatedAt:  m.CreatedAt,
		ExpiresAt:  m.ExpiresAt,
		HitCount:   m.HitCount,
	}
}

// SearchMetric is the GORM model for the append-only search_metrics table
type SearchMetric struct {
	ID                  string    `gorm:"type:uuid;primaryKey"`
	SearchTerm          string    `gorm:"size:255;not null;index:idx_search_metrics_term"`
	SelectedURL         *string   `gorm:"size:512"`
	SelectionConfidence *float64
	UserAction          string    `gorm:"size:20;not null;index:idx_search_metrics_action"`
	ResultCount         int       `gorm:"not null;default:0"`
	ResponseTimeMs      int64     `gorm:"not null;default:0"`
	CreatedAt           time.Time `gorm:"not null;index:idx_search_metrics_created_at"`
}

// TableName specifies the table name
func (SearchMetric) TableName() string {
	return "search_metrics"
}

// NewSearchMetric builds a row from the domain value
func NewSearchMetric(m *types.SearchMetric) *SearchMetric {
	return &SearchMetric{
		ID:                  m.ID,
		SearchTerm:          m.SearchTerm,
		SelectedURL:         m.SelectedURL,
		SelectionConfidence: m.SelectionConfidence,
		UserAction:          string(m.UserAction),
		ResultCount:         m.ResultCount,
		ResponseTimeMs:      m.ResponseTimeMs,
		CreatedAt:           m.CreatedAt,
	}
}

// CandidateList stores scored candidates as a JSON array
type CandidateList []types.CandidateResult

// Scan implements sql.Scanner interface
func (l *CandidateList) Scan(value interface{}) error {
	if value == nil {
		*l = CandidateList{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("candidate list: unsupported column type %T", value)
	}
	return json.Unmarshal(raw, l)
}

// Value implements driver.Valuer interface
func (l CandidateList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
