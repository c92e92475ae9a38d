package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

func newTestProvider(t *testing.T, id types.ProviderID, handler http.HandlerFunc) Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewFactory().Create(&types.ProviderConfig{
		ID:       id,
		APIHost:  srv.URL,
		APIKey:   "secret",
		EngineID: "cx-1",
	})
	require.NoError(t, err)
	return p
}

func linkedinRequest() *types.SearchRequest {
	return &types.SearchRequest{
		Query:          "Microsoft",
		Site:           "linkedin.com/company",
		MaxResults:     10,
		IncludeDomains: []string{"linkedin.com"},
	}
}

func TestGoogleProvider_Search(t *testing.T) {
	p := newTestProvider(t, types.ProviderGoogle, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customsearch/v1", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "cx-1", r.URL.Query().Get("cx"))
		assert.Equal(t, `site:linkedin.com/company "Microsoft"`, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"items":[
			{"title":"Microsoft | LinkedIn","link":"https://www.linkedin.com/company/microsoft/","snippet":"Every company has a mission."},
			{"title":"no link"},
			{"title":"Microsoft Research | LinkedIn","link":"https://www.linkedin.com/company/microsoft-research/","snippet":"Research"}
		]}`))
	})

	resp, err := p.Search(context.Background(), linkedinRequest())
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, types.ProviderGoogle, resp.Provider)
	assert.Equal(t, "https://www.linkedin.com/company/microsoft/", resp.Results[0].URL)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 2, resp.Results[1].Rank)
}

func TestGoogleProvider_NoItems(t *testing.T) {
	p := newTestProvider(t, types.ProviderGoogle, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	})

	resp, err := p.Search(context.Background(), linkedinRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestGoogleProvider_MalformedBody(t *testing.T) {
	p := newTestProvider(t, types.ProviderGoogle, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[`))
	})

	_, err := p.Search(context.Background(), linkedinRequest())
	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.CodeDecodeFailed, perr.Code)
	assert.False(t, perr.Transient())
}

func TestBraveProvider_Search(t *testing.T) {
	p := newTestProvider(t, types.ProviderBrave, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/res/v1/web/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"Microsoft | LinkedIn","url":"https://www.linkedin.com/company/microsoft/","description":"Software"}
		]}}`))
	})

	resp, err := p.Search(context.Background(), linkedinRequest())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Software", resp.Results[0].Content)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestTavilyProvider_Search(t *testing.T) {
	p := newTestProvider(t, types.ProviderTavily, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"linkedin.com"}, body.IncludeDomains)
		assert.Equal(t, "basic", body.SearchDepth)

		_, _ = w.Write([]byte(`{"query":"x","results":[
			{"title":"A | LinkedIn","url":"https://www.linkedin.com/company/a/","content":"c","score":0.9}
		]}`))
	})

	resp, err := p.Search(context.Background(), linkedinRequest())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 0.9, resp.Results[0].Score, 1e-6)
}

func TestExaProvider_Search(t *testing.T) {
	p := newTestProvider(t, types.ProviderExa, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"A","url":"https://www.linkedin.com/company/a/","highlights":["one","two"]}
		]}`))
	})

	resp, err := p.Search(context.Background(), linkedinRequest())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "one\ntwo", resp.Results[0].Content)
}

func TestSearXNGProvider_Search(t *testing.T) {
	p := newTestProvider(t, types.ProviderSearXNG, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"1","url":"https://www.linkedin.com/company/one/"},
			{"title":"2","url":"https://www.linkedin.com/company/two/"},
			{"title":"3","url":"https://www.linkedin.com/company/three/"}
		]}`))
	})

	req := linkedinRequest()
	req.MaxResults = 2
	resp, err := p.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestBochaProvider_Search(t *testing.T) {
	p := newTestProvider(t, types.ProviderBocha, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body bochaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, `site:linkedin.com/company "Microsoft"`, body.Query)
		assert.Equal(t, "linkedin.com", body.Include)
		assert.Equal(t, "web", body.SearchType)

		_, _ = w.Write([]byte(`{"query":"x","results":[
			{"title":"Microsoft | LinkedIn","url":"https://www.linkedin.com/company/microsoft/","snippet":"Software","score":0.8},
			{"title":"no url"}
		]}`))
	})

	resp, err := p.Search(context.Background(), linkedinRequest())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, types.ProviderBocha, resp.Provider)
	assert.Equal(t, "Software", resp.Results[0].Content)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestZhipuProvider_Search(t *testing.T) {
	p := newTestProvider(t, types.ProviderZhipu, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body zhipuRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "linkedin.com", body.DomainFilter)

		_, _ = w.Write([]byte(`{"success":true,"data":{"results":[
			{"title":"A | LinkedIn","url":"https://www.linkedin.com/company/a/","content":"c"},
			{"title":"B | LinkedIn","url":"https://www.linkedin.com/company/b/","snippet":"s"}
		]}}`))
	})

	resp, err := p.Search(context.Background(), linkedinRequest())
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "s", resp.Results[1].Content)
	assert.Equal(t, 2, resp.Results[1].Rank)
}

func TestZhipuProvider_APIError(t *testing.T) {
	p := newTestProvider(t, types.ProviderZhipu, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"quota exceeded"}`))
	})

	_, err := p.Search(context.Background(), linkedinRequest())
	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.CodeAPIError, perr.Code)
	assert.Equal(t, "quota exceeded", perr.Message)
	assert.False(t, perr.Transient())
}

func TestProvider_HTTPErrors(t *testing.T) {
	tests := []struct {
		status    int
		code      string
		transient bool
	}{
		{http.StatusTooManyRequests, "HTTP_429", true},
		{http.StatusBadGateway, "HTTP_502", true},
		{http.StatusForbidden, "HTTP_403", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			p := newTestProvider(t, types.ProviderBrave, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})

			_, err := p.Search(context.Background(), linkedinRequest())
			var perr *types.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, tt.transient, perr.Transient())
		})
	}
}

func TestProvider_ContextDeadline(t *testing.T) {
	p := newTestProvider(t, types.ProviderTavily, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Search(ctx, linkedinRequest())
	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.CodeRequestFailed, perr.Code)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProvider_EmptyQuery(t *testing.T) {
	p := newTestProvider(t, types.ProviderBrave, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := p.Search(context.Background(), &types.SearchRequest{Query: "  "})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}
