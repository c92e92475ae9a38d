package types

import "fmt"

// SearchRequest represents a search request
type SearchRequest struct {
	Query          string   `json:"query"`
	Site           string   `json:"site,omitempty"` // e.g. linkedin.com/company
	MaxResults     int      `json:"max_results,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"` // "basic" or "advanced"
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

// ScopedQuery returns the query restricted to Site with the search operator syntax
// shared by Google, Brave and SearXNG.
func (r *SearchRequest) ScopedQuery() string {
	if r.Site == "" {
		return r.Query
	}
	return fmt.Sprintf("site:%s %q", r.Site, r.Query)
}

// Limit returns MaxResults bounded to [1, max], defaulting to def
func (r *SearchRequest) Limit(def, max int) int {
	n := r.MaxResults
	if n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}
