package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	wshttp "github.com/lk2023060901/linkedin-discovery/internal/websearch/http"
	"github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// maxBodyBytes bounds how much of a provider response is read
const maxBodyBytes = 2 << 20

// Provider defines the interface for search providers
type Provider interface {
	// Search executes a single search attempt; retries belong to the caller
	Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error)

	// GetID returns the provider ID
	GetID() types.ProviderID

	// GetName returns the provider name
	GetName() string
}

// BaseProvider provides common functionality for all providers
type BaseProvider struct {
	config     *types.ProviderConfig
	httpClient *http.Client
	apiKeys    []string // Support multiple API keys for rotation
	keyIndex   atomic.Uint64
}

// NewBaseProvider creates a new base provider
func NewBaseProvider(config *types.ProviderConfig) *BaseProvider {
	// Parse multiple API keys (comma-separated)
	var apiKeys []string
	for _, k := range strings.Split(config.APIKey, ",") {
		if k = strings.TrimSpace(k); k != "" {
			apiKeys = append(apiKeys, k)
		}
	}

	return &BaseProvider{
		config:     config,
		httpClient: wshttp.NewHTTPClient(time.Duration(config.Timeout) * time.Second),
		apiKeys:    apiKeys,
	}
}

// GetID returns the provider ID
func (b *BaseProvider) GetID() types.ProviderID {
	return b.config.ID
}

// GetName returns the provider name
func (b *BaseProvider) GetName() string {
	return b.config.Name
}

// GetConfig returns the provider configuration
func (b *BaseProvider) GetConfig() *types.ProviderConfig {
	return b.config
}

// GetAPIKey returns the current API key (with rotation support)
func (b *BaseProvider) GetAPIKey() string {
	if len(b.apiKeys) == 0 {
		return ""
	}
	i := b.keyIndex.Add(1) - 1
	return b.apiKeys[i%uint64(len(b.apiKeys))]
}

// BuildDefaultHeaders builds default HTTP headers
func (b *BaseProvider) BuildDefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "LinkedIn-Discovery/1.0",
	}
}

// Fetch executes one HTTP attempt and returns the response body of a 200 reply.
// Transport failures and non-200 statuses come back as *types.ProviderError.
func (b *BaseProvider) Fetch(ctx context.Context, req *http.Request) ([]byte, error) {
	for k, v := range b.BuildDefaultHeaders() {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := b.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, &types.ProviderError{
			Provider: b.GetID(),
			Code:     types.CodeRequestFailed,
			Message:  "Failed to execute request",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &types.ProviderError{
			Provider: b.GetID(),
			Code:     types.CodeRequestFailed,
			Message:  "Failed to read response body",
			Err:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewHTTPError(b.GetID(), resp.StatusCode, truncate(string(body), 512))
	}
	return body, nil
}

func (b *BaseProvider) decodeError(err error) error {
	return &types.ProviderError{
		Provider: b.GetID(),
		Code:     types.CodeDecodeFailed,
		Message:  "Failed to decode response",
		Err:      fmt.Errorf("%w: %v", types.ErrInvalidResponse, err),
	}
}

func (b *BaseProvider) respond(req *types.SearchRequest, results []*types.SearchResult, start time.Time) *types.SearchResponse {
	for i, r := range results {
		if r.Rank == 0 {
			r.Rank = i + 1
		}
	}
	return &types.SearchResponse{
		Query:      req.Query,
		Results:    results,
		TotalCount: len(results),
		Took:       time.Since(start).Milliseconds(),
		Provider:   b.GetID(),
	}
}

func checkQuery(req *types.SearchRequest) error {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return types.ErrEmptyQuery
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
