package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// TavilyProvider implements the Tavily search API
type TavilyProvider struct {
	*BaseProvider
}

// NewTavilyProvider creates a new Tavily provider
func NewTavilyProvider(config *types.ProviderConfig) (Provider, error) {
	return &TavilyProvider{BaseProvider: NewBaseProvider(config)}, nil
}

// tavilyRequest represents a Tavily API request
type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

// tavilyResponse represents a Tavily API response
type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float32 `json:"score"`
	} `json:"results"`
	Query string `json:"query"`
}

// Search executes a search query using the Tavily API
func (p *TavilyProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if err := checkQuery(req); err != nil {
		return nil, err
	}
	startTime := time.Now()

	tavilyReq := tavilyRequest{
		Query:          req.ScopedQuery(),
		SearchDepth:    req.SearchDepth,
		MaxResults:     req.Limit(10, 20),
		IncludeDomains: req.IncludeDomains,
		ExcludeDomains: req.ExcludeDomains,
	}
	if tavilyReq.SearchDepth == "" {
		tavilyReq.SearchDepth = "basic"
	}

	reqBody, err := json.Marshal(tavilyReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/search", p.config.APIHost)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.GetAPIKey()))

	body, err := p.Fetch(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var tavilyResp tavilyResponse
	if err := json.Unmarshal(body, &tavilyResp); err != nil {
		return nil, p.decodeError(err)
	}

	// Tavily returns results in relevance order
	results := make([]*types.SearchResult, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, &types.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}

	return p.respond(req, results, startTime), nil
}
