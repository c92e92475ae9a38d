package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// GoogleProvider implements the Google Programmable Search (Custom Search JSON) API
type GoogleProvider struct {
	*BaseProvider
}

// NewGoogleProvider creates a new Google provider
func NewGoogleProvider(config *types.ProviderConfig) (Provider, error) {
	return &GoogleProvider{BaseProvider: NewBaseProvider(config)}, nil
}

// Search executes a search query using the Custom Search API
func (p *GoogleProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if err := checkQuery(req); err != nil {
		return nil, err
	}
	startTime := time.Now()

	params := url.Values{}
	params.Set("key", p.GetAPIKey())
	params.Set("cx", p.config.EngineID)
	params.Set("q", req.ScopedQuery())
	// The API serves at most 10 items per page
	params.Set("num", strconv.Itoa(req.Limit(10, 10)))

	apiURL := fmt.Sprintf("%s/customsearch/v1?%s", p.config.APIHost, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := p.Fetch(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, p.decodeError(fmt.Errorf("malformed json"))
	}

	doc := gjson.ParseBytes(body)
	if apiErr := doc.Get("error"); apiErr.Exists() {
		return nil, &types.ProviderError{
			Provider: p.GetID(),
			Code:     types.CodeAPIError,
			Message:  apiErr.Get("message").String(),
		}
	}

	// A query without hits omits "items" entirely
	var results []*types.SearchResult
	doc.Get("items").ForEach(func(_, item gjson.Result) bool {
		link := item.Get("link").String()
		if link == "" {
			return true
		}
		results = append(results, &types.SearchResult{
			Title:   item.Get("title").String(),
			URL:     link,
			Content: item.Get("snippet").String(),
		})
		return true
	})

	return p.respond(req, results, startTime), nil
}
