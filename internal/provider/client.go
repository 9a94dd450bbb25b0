package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Client is the shared REST transport underneath every adapter: auth
// injection, timeout enforcement, token bucket acquisition, and retry
// with exponential backoff for transient failures.
type Client struct {
	provider   string
	baseURL    string
	apiKey     string
	authHeader string // Header name carrying the key, empty to skip
	authQuery  string // Query parameter carrying the key, empty to skip
	httpClient *http.Client
	limiter    *Limiter
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a REST client for one provider.
func NewClient(provider, baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		baseURL:  baseURL,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: 250 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLimiter attaches a token bucket acquired before every request.
func WithLimiter(l *Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithAuthHeader sends the API key in the named request header.
func WithAuthHeader(name string) ClientOption {
	return func(c *Client) {
		c.authHeader = name
	}
}

// WithAuthQuery sends the API key in the named query parameter.
func WithAuthQuery(name string) ClientOption {
	return func(c *Client) {
		c.authQuery = name
	}
}

// doRequest performs a single HTTP request and maps failures onto the
// provider error taxonomy.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.authQuery != "" && c.apiKey != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set(c.authQuery, c.apiKey)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.authHeader != "" && c.apiKey != "" {
		req.Header.Set(c.authHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, &Error{Provider: c.provider, Kind: KindTimeout, Message: "request timed out", Err: err}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Provider: c.provider, Kind: KindUnavailable, Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: c.provider, Kind: KindUnavailable, Message: "read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Provider: c.provider, Kind: KindRateLimited, Status: resp.StatusCode, Message: "upstream throttled"}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Provider: c.provider, Kind: KindUnauthorized, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &Error{Provider: c.provider, Kind: KindHTTP, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return body, nil
}

// doWithRetry performs a request with exponential backoff for transient
// failures, decoding each successful body into result. A root shape that
// does not parse is Malformed and counts as transient. Rate limits and auth
// failures surface immediately; exhausted retries collapse into an
// unavailable error wrapping the last failure.
func (c *Client) doWithRetry(ctx context.Context, path string, query url.Values, result any) error {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"provider", c.provider,
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, path, query)
		if err == nil {
			uerr := json.Unmarshal(body, result)
			if uerr == nil {
				return nil
			}
			err = &Error{Provider: c.provider, Kind: KindMalformed, Message: "unexpected response shape", Err: uerr}
		}

		lastErr = err
		if !retryable(err) {
			return err
		}
	}

	return &Error{Provider: c.provider, Kind: KindUnavailable, Message: "retries exhausted", Err: lastErr}
}

// get acquires a rate limit token, then performs a GET with retries.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	if c.apiKey == "" {
		return &Error{Provider: c.provider, Kind: KindAuthMissing, Message: "no API key configured"}
	}
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
	}

	return c.doWithRetry(ctx, path, query, result)
}
