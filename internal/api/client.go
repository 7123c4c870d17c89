package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Defaults for iTick REST access.
const (
	DefaultBaseURL      = "https://api.itick.org"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
)

// Client fetches market snapshots from the iTick REST API. It is safe for
// concurrent use; the poller shares one across its workers.
type Client struct {
	baseURL    string // no trailing slash
	token      string // sent as the "token" header
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int           // extra tries after a 429 or 5xx
	retryBackoff time.Duration // base wait before jitter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient returns a client for baseURL, or DefaultBaseURL when it is
// empty. token is the iTick API key.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:      baseURL,
		token:        token,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		logger:       slog.Default(),
		maxRetries:   DefaultMaxRetries,
		retryBackoff: DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout bounds a single HTTP exchange. Retries get their own budget.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries retries rate-limited (429) and server-side (5xx) responses up
// to max times, waiting about backoff*2^n between tries. max 0 disables it.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if max < 0 {
			max = 0
		}
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger for retry records. nil keeps slog.Default.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client, e.g. for a proxy-aware
// transport. nil is ignored.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent sent with every snapshot request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// setHeaders adds the headers iTick expects on every call.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("accept", "application/json")
	if c.token != "" {
		req.Header.Set("token", c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
