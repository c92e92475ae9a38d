package http

import (
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "linkedin-discovery/1.0"
)

// NewHTTPClient returns the pooled client shared by a provider's calls. The
// timeout is only a ceiling; each search is bounded by its context deadline.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &uaTransport{next: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		}},
	}
}

// uaTransport 补上 User-Agent, 部分搜索 API 会拒绝空 UA
type uaTransport struct {
	next http.RoundTripper
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", userAgent)
	return t.next.RoundTrip(r)
}
