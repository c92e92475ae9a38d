package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// BraveProvider implements the Brave Search web API
type BraveProvider struct {
	*BaseProvider
}

// NewBraveProvider creates a new Brave provider
func NewBraveProvider(config *types.ProviderConfig) (Provider, error) {
	return &BraveProvider{BaseProvider: NewBaseProvider(config)}, nil
}

// braveResponse represents a Brave web search response
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search executes a search query using the Brave API
func (p *BraveProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if err := checkQuery(req); err != nil {
		return nil, err
	}
	startTime := time.Now()

	params := url.Values{}
	params.Set("q", req.ScopedQuery())
	params.Set("count", strconv.Itoa(req.Limit(10, 20)))

	apiURL := fmt.Sprintf("%s/res/v1/web/search?%s", p.config.APIHost, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("X-Subscription-Token", p.GetAPIKey())

	body, err := p.Fetch(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var braveResp braveResponse
	if err := json.Unmarshal(body, &braveResp); err != nil {
		return nil, p.decodeError(err)
	}

	results := make([]*types.SearchResult, 0, len(braveResp.Web.Results))
	for _, r := range braveResp.Web.Results {
		results = append(results, &types.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Description,
		})
	}

	return p.respond(req, results, startTime), nil
}
