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

// ExaProvider implements the Exa AI search API
type ExaProvider struct {
	*BaseProvider
}

// NewExaProvider creates a new Exa provider
func NewExaProvider(config *types.ProviderConfig) (Provider, error) {
	return &ExaProvider{BaseProvider: NewBaseProvider(config)}, nil
}

// exaRequest represents an Exa API request
type exaRequest struct {
	Query          string                 `json:"query"`
	NumResults     int                    `json:"numResults,omitempty"`
	IncludeDomains []string               `json:"includeDomains,omitempty"`
	ExcludeDomains []string               `json:"excludeDomains,omitempty"`
	Type           string                 `json:"type,omitempty"` // "neural", "keyword", or "auto"
	Contents       map[string]interface{} `json:"contents,omitempty"`
}

// exaResponse represents an Exa API response
type exaResponse struct {
	Results []struct {
		Title      string   `json:"title"`
		URL        string   `json:"url"`
		Text       string   `json:"text,omitempty"`
		Highlights []string `json:"highlights,omitempty"`
		Score      float32  `json:"score"`
	} `json:"results"`
}

// Search executes a search query using the Exa API
func (p *ExaProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if err := checkQuery(req); err != nil {
		return nil, err
	}
	startTime := time.Now()

	// Exa filters by domain itself, so the query stays plain keywords
	exaReq := exaRequest{
		Query:          req.Query + " company",
		NumResults:     req.Limit(10, 25),
		IncludeDomains: req.IncludeDomains,
		ExcludeDomains: req.ExcludeDomains,
		Type:           "keyword",
		Contents: map[string]interface{}{
			"text": map[string]interface{}{"maxCharacters": 500},
		},
	}

	reqBody, err := json.Marshal(exaReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/search", p.config.APIHost)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", p.GetAPIKey())

	body, err := p.Fetch(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	var exaResp exaResponse
	if err := json.Unmarshal(body, &exaResp); err != nil {
		return nil, p.decodeError(err)
	}

	results := make([]*types.SearchResult, 0, len(exaResp.Results))
	for _, r := range exaResp.Results {
		content := r.Text
		if len(r.Highlights) > 0 {
			content = strings.Join(r.Highlights, "\n")
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
