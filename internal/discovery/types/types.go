package types

import (
	"strings"
	"time"
)

// Priority 发现请求优先级
type Priority string

const (
	PriorityHigh   Priority = "high"   // 交互式用户请求
	PriorityNormal Priority = "normal" // 后台/批量请求
)

// ParsePriority returns the priority named by s, defaulting to normal
func ParsePriority(s string) Priority {
	if strings.EqualFold(strings.TrimSpace(s), string(PriorityHigh)) {
		return PriorityHigh
	}
	return PriorityNormal
}

// CandidateResult is a scored LinkedIn company page candidate
type CandidateResult struct {
	URL         string  `json:"url"`
	VanityName  string  `json:"vanity_name"`
	CompanyName string  `json:"company_name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
}

// SearchCacheEntry is the cached result set for one normalized search term
type SearchCacheEntry struct {
	SearchTerm string            `json:"search_term"`
	Results    []CandidateResult `json:"results"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	HitCount   int64             `json:"hit_count"`
}

// StaleRetention is how long an expired entry stays readable before it may be purged.
const StaleRetention = 24 * time.Hour

// Fresh reports whether the entry can be served as a cache hit at now.
func (e *SearchCacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Purgeable reports whether the entry is past its stale retention window.
func (e *SearchCacheEntry) Purgeable(now time.Time) bool {
	return now.After(e.ExpiresAt.Add(StaleRetention))
}

// Clone returns a deep copy so callers cannot mutate cached state.
func (e *SearchCacheEntry) Clone() *SearchCacheEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Results = CloneResults(e.Results)
	return &c
}

// CloneResults copies a result slice.
func CloneResults(results []CandidateResult) []CandidateResult {
	if results == nil {
		return nil
	}
	out := make([]CandidateResult, len(results))
	copy(out, results)
	return out
}

// UserAction 用户对发现结果的最终操作
type UserAction string

const (
	ActionSelected    UserAction = "selected"
	ActionManualEntry UserAction = "manual_entry"
	ActionSkipped     UserAction = "skipped"
)

// Valid reports whether a is one of the known actions
func (a UserAction) Valid() bool {
	switch a {
	case ActionSelected, ActionManualEntry, ActionSkipped:
		return true
	}
	return false
}

// SearchMetric is an append-only record of a terminal user decision.
type SearchMetric struct {
	ID                  string     `json:"id"`
	SearchTerm          string     `json:"search_term"`
	SelectedURL         *string    `json:"selected_url,omitempty"`
	SelectionConfidence *float64   `json:"selection_confidence,omitempty"`
	UserAction          UserAction `json:"user_action"`
	ResultCount         int        `json:"result_count"`
	ResponseTimeMs      int64      `json:"response_time_ms"`
	CreatedAt           time.Time  `json:"created_at"`
}

// MetricSummary aggregates recorded metrics over a window.
type MetricSummary struct {
	Since             time.Time            `json:"since"`
	Total             int64                `json:"total"`
	ByAction          map[UserAction]int64 `json:"by_action"`
	AvgResponseTimeMs float64              `json:"avg_response_time_ms"`
}

// QuotaCounter is the process-wide external call budget.
type QuotaCounter struct {
	RequestsToday     int64 `json:"requests_today"`
	RequestsThisMonth int64 `json:"requests_this_month"`
	DailyLimit        int64 `json:"daily_limit"`
	MonthlyLimit      int64 `json:"monthly_limit"`
}

// Allows reports whether one more provider call fits in both budgets.
func (q QuotaCounter) Allows() bool {
	return q.RequestsToday < q.DailyLimit && q.RequestsThisMonth < q.MonthlyLimit
}

// DiscoveryMethod 公司 LinkedIn 链接的来源
type DiscoveryMethod string

const (
	MethodAuto   DiscoveryMethod = "auto"
	MethodManual DiscoveryMethod = "manual"
	MethodNone   DiscoveryMethod = "none"
)

// CompanyLinkedInRecord is handed to the company persistence layer when a selection is saved.
type CompanyLinkedInRecord struct {
	LinkedInURL     string          `json:"linkedin_url"`
	DiscoveryMethod DiscoveryMethod `json:"discovery_method"`
	Confidence      float64         `json:"confidence"`
	LastVerifiedAt  time.Time       `json:"last_verified_at"`
}

// QueueStatus is the dispatcher introspection snapshot.
type QueueStatus struct {
	QueueLength       int   `json:"queue_length"`
	InFlight          int   `json:"in_flight"`
	RequestsToday     int64 `json:"requests_today"`
	RequestsThisMonth int64 `json:"requests_this_month"`
	DailyLimit        int64 `json:"daily_limit"`
	MonthlyLimit      int64 `json:"monthly_limit"`

	// Providers holds the counters of providers with a dedicated budget
	Providers map[string]QuotaCounter `json:"providers,omitempty"`
}

// RequestState tracks a discovery request through the dispatcher.
type RequestState string

const (
	StateQueued           RequestState = "queued"
	StateInFlight         RequestState = "in_flight"
	StateCacheHit         RequestState = "cache_hit"
	StateProviderResolved RequestState = "provider_resolved"
	StateFailed           RequestState = "failed"
)

// DisplayTerm trims and collapses internal whitespace.
func DisplayTerm(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeTerm returns the cache and single-flight key for a company name.
func NormalizeTerm(s string) string {
	return strings.ToLower(DisplayTerm(s))
}
