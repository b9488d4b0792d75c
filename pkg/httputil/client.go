package httputil

import (
	"net"
	"net/http"
	"time"

	"github.com/matzehuels/cfboot/pkg/observability"
)

// DefaultConnectTimeout bounds dialing and the TLS handshake.
const DefaultConnectTimeout = 10 * time.Second

// ClientOption configures [NewClient].
type ClientOption func(*http.Client)

// WithoutRedirects makes the client return 3xx responses to the caller
// instead of following them.
func WithoutRedirects() ClientOption {
	return func(c *http.Client) {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
}

// WithTimeout sets an overall request timeout. The default is none, since
// module downloads can be large.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *http.Client) { c.Timeout = d }
}

// NewClient returns a client whose connect phase is bounded by
// connectTimeout (DefaultConnectTimeout when zero).
func NewClient(connectTimeout time.Duration, opts ...ClientOption) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	base.TLSHandshakeTimeout = connectTimeout

	c := &http.Client{Transport: &hookTransport{next: base}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// hookTransport reports requests to the observability HTTP hooks.
type hookTransport struct {
	next http.RoundTripper
}

func (t *hookTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	hooks := observability.HTTP()
	ctx := req.Context()
	host, path := req.URL.Host, req.URL.Path

	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}
