package service

import (
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

// SearchRequest 发现请求
type SearchRequest struct {
	CompanyName string `json:"company_name" binding:"required,max=255"`
	Priority    string `json:"priority" binding:"omitempty,oneof=high normal"`
}

// SearchResponse 发现结果
// ManualEntry is set whenever the caller should fall back to typing the URL in.
type SearchResponse struct {
	SearchTerm   string                  `json:"search_term"`
	Results      []types.CandidateResult `json:"results"`
	ResultCount  int                     `json:"result_count"`
	ElapsedMs    int64                   `json:"elapsed_ms"`
	ManualEntry  bool                    `json:"manual_entry"`
	Reason       string                  `json:"reason,omitempty"`
	AutoSelected *types.CandidateResult  `json:"auto_selected,omitempty"`
}

// RecordOutcomeRequest 记录用户操作
type RecordOutcomeRequest struct {
	SearchTerm     string   `json:"search_term" binding:"required"`
	UserAction     string   `json:"user_action" binding:"required,oneof=selected manual_entry skipped"`
	SelectedURL    string   `json:"selected_url"`
	Confidence     *float64 `json:"selection_confidence" binding:"omitempty,min=0,max=1"`
	ResultCount    int      `json:"result_count" binding:"min=0"`
	ResponseTimeMs int64    `json:"response_time_ms" binding:"min=0"`
}

// MetricsSummaryRequest 统计查询
type MetricsSummaryRequest struct {
	Since  string `form:"since"`  // RFC3339
	Window string `form:"window"` // Go duration, e.g. 24h
}

// ValidateURLRequest URL 校验请求
type ValidateURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ValidateURLResponse URL 校验结果
type ValidateURLResponse struct {
	Valid        bool   `json:"valid"`
	CanonicalURL string `json:"canonical_url,omitempty"`
	VanityName   string `json:"vanity_name,omitempty"`
}

// SelectRequest 保存公司 LinkedIn 链接
// An empty URL records that no page was chosen.
type SelectRequest struct {
	URL        string  `json:"url"`
	Confidence float64 `json:"confidence" binding:"min=0,max=1"`
	Method     string  `json:"method" binding:"omitempty,oneof=auto manual none"`
}

// InvalidateCacheResponse 缓存失效结果
type InvalidateCacheResponse struct {
	SearchTerm  string `json:"search_term"`
	Invalidated bool   `json:"invalidated"`
}

const defaultSummaryWindow = 7 * 24 * time.Hour

// BatchSearchRequest 批量发现请求
type BatchSearchRequest struct {
	CompanyNames []string `json:"company_names" binding:"required,min=1,max=50,dive,required,max=255"`
	Priority     string   `json:"priority" binding:"omitempty,oneof=high normal"`
}
