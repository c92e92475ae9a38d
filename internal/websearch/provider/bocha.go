package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// BochaProvider implements the Bocha AI search API
type BochaProvider struct {
	*BaseProvider
}

// NewBochaProvider creates a new Bocha provider
func NewBochaProvider(config *types.ProviderConfig) (Provider, error) {
	return &BochaProvider{BaseProvider: NewBaseProvider(config)}, nil
}

// bochaRequest represents a Bocha API request
type bochaRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
	SearchType string `json:"search_type,omitempty"` // "web", "news", "academic"
	Include    string `json:"include,omitempty"`     // 域名用 | 分隔
	Exclude    string `json:"exclude,omitempty"`
}

// bochaResponse represents a Bocha API response
type bochaResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Snippet string  `json:"snippet"`
		Content string  `json:"content,omitempty"`
		Score   float32 `json:"score,omitempty"`
	} `json:"results"`
	Query string `json:"query"`
}

// Search executes a search query using the Bocha API
func (p *BochaProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if err := checkQuery(req); err != nil {
		return nil, err
	}
	startTime := time.Now()

	bochaReq := bochaRequest{
		Query:      req.ScopedQuery(),
		MaxResults: req.Limit(10, 50),
		SearchType: "web",
		Include:    strings.Join(req.IncludeDomains, "|"),
		Exclude:    strings.Join(req.ExcludeDomains, "|"),
	}

	reqBody, err := json.Marshal(bochaReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/v1/search", p.config.APIHost)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.GetAPIKey()))

	body, err := p.Fetch(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var bochaResp bochaResponse
	if err := json.Unmarshal(body, &bochaResp); err != nil {
		return nil, p.decodeError(err)
	}

	results := make([]*types.SearchResult, 0, len(bochaResp.Results))
	for _, r := range bochaResp.Results {
		if r.URL == "" {
			continue
		}
		content := r.Content
		if content == "" {
			content = r.Snippet
		}
		results = append(results, &types.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: content,
			Score:   r.Score,
		})
	}

	return p.respond(req, results, startTime), nil
}
