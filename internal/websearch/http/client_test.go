package http

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.UserAgent())
		mu.Unlock()
	}))
	defer srv.Close()

	client := NewHTTPClient(0)
	assert.Equal(t, defaultTimeout, client.Timeout)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/2")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	mu.Lock()
	assert.Equal(t, []string{userAgent, "custom/2"}, got)
	mu.Unlock()
	assert.Equal(t, 5*time.Second, NewHTTPClient(5*time.Second).Timeout)
}
