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

// ZhipuProvider implements the Zhipu GLM web search API.
// APIHost is the full endpoint URL.
type ZhipuProvider struct {
	*BaseProvider
}

// NewZhipuProvider creates a new Zhipu provider
func NewZhipuProvider(config *types.ProviderConfig) (Provider, error) {
	return &ZhipuProvider{BaseProvider: NewBaseProvider(config)}, nil
}

type zhipuRequest struct {
	Query        string `json:"query"`
	MaxResults   int    `json:"max_results,omitempty"`
	DomainFilter string `json:"search_domain_filter,omitempty"` // 只支持单个域名
}

type zhipuResponse struct {
	Data struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
			Snippet string `json:"snippet"`
		} `json:"results"`
	} `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Search executes a search query using the Zhipu API
func (p *ZhipuProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if err := checkQuery(req); err != nil {
		return nil, err
	}
	startTime := time.Now()

	zhipuReq := zhipuRequest{
		Query:      req.ScopedQuery(),
		MaxResults: req.Limit(10, 50),
	}
	if len(req.IncludeDomains) > 0 {
		zhipuReq.DomainFilter = req.IncludeDomains[0]
	}

	reqBody, err := json.Marshal(zhipuReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIHost, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.GetAPIKey()))

	body, err := p.Fetch(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var zhipuResp zhipuResponse
	if err := json.Unmarshal(body, &zhipuResp); err != nil {
		return nil, p.decodeError(err)
	}
	if !zhipuResp.Success {
		return nil, &types.ProviderError{
			Provider: p.GetID(),
			Code:     types.CodeAPIError,
			Message:  zhipuResp.Message,
		}
	}

	results := make([]*types.SearchResult, 0, len(zhipuResp.Data.Results))
	for _, r := range zhipuResp.Data.Results {
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
		})
	}

	return p.respond(req, results, startTime), nil
}
