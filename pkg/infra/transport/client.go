package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/m-mizutani/comicdl/pkg/domain/interfaces"
	"github.com/m-mizutani/comicdl/pkg/domain/types"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// config holds internal client configuration
type config struct {
	timeout   time.Duration
	userAgent string
	transport http.RoundTripper
}

// Option is a functional option for Client configuration
type Option func(*config)

// WithTimeout sets the per request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(c *config) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRoundTripper replaces the underlying http.RoundTripper
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *config) {
		c.transport = rt
	}
}

// Client is an HTTP GET client whose cookie jar is the login session.
// Cookies set by any response are sent with every later request.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

var _ interfaces.Transport = (*Client)(nil)

// New creates a new Client with an empty session
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		timeout:   30 * time.Second,
		userAgent: defaultUserAgent,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create cookie jar")
	}

	return &Client{
		httpClient: &http.Client{
			Jar:       jar,
			Timeout:   cfg.timeout,
			Transport: cfg.transport,
		},
		userAgent: cfg.userAgent,
	}, nil
}

// Get fetches url and returns the response body. Any failure, including
// timeouts and non-2xx status, is tagged with types.ErrTagTransport.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", url), goerr.T(types.ErrTagTransport))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request", goerr.V("url", url), goerr.T(types.ErrTagTransport))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("unexpected status code",
			goerr.V("url", url),
			goerr.V("status", resp.StatusCode),
			goerr.T(types.ErrTagTransport))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response body", goerr.V("url", url), goerr.T(types.ErrTagTransport))
	}

	return body, nil
}
