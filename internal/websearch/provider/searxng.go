package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// SearXNGProvider implements the SearXNG search API
type SearXNGProvider struct {
	*BaseProvider
}

// NewSearXNGProvider creates a new SearXNG provider
func NewSearXNGProvider(config *types.ProviderConfig) (Provider, error) {
	return &SearXNGProvider{BaseProvider: NewBaseProvider(config)}, nil
}

// searxngResponse represents a SearXNG API response
type searxngResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float32 `json:"score"`
	} `json:"results"`
	Query string `json:"query"`
}

// Search executes a search query using the SearXNG API
func (p *SearXNGProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if err := checkQuery(req); err != nil {
		return nil, err
	}
	startTime := time.Now()

	params := url.Values{}
	params.Set("q", req.ScopedQuery())
	params.Set("format", "json")
	params.Set("pageno", "1")

	apiURL := fmt.Sprintf("%s/search?%s", p.config.APIHost, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Basic Auth (if configured)
	if p.config.BasicAuthUsername != "" && p.config.BasicAuthPassword != "" {
		httpReq.SetBasicAuth(p.config.BasicAuthUsername, p.config.BasicAuthPassword)
	}

	body, err := p.Fetch(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var searxngResp searxngResponse
	if err := json.Unmarshal(body, &searxngResp); err != nil {
		return nil, p.decodeError(err)
	}

	// SearXNG has no result count parameter; trim locally
	limit := req.Limit(10, 50)
	results := make([]*types.SearchResult, 0, limit)
	for _, r := range searxngResp.Results {
		if len(results) == limit {
			break
		}
		results = append(results, &types.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}

	return p.respond(req, results, startTime), nil
}
