// Package client provides the HTTP client shared by index implementations.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 5
	defaultUserAgent  = "reqcheck"
	maxErrorBody      = 1024
)

// Client is an HTTP client with retry logic for index APIs.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	initial    time.Duration
	auth       AuthFunc
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithAuthFunc attaches the header returned by fn to each request.
func WithAuthFunc(fn AuthFunc) Option {
	return func(c *Client) {
		c.auth = fn
	}
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initial = d
	}
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return NewClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
		initial:    250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithUserAgent returns a copy of the client that sends ua as User-Agent.
func (c *Client) WithUserAgent(ua string) *Client {
	cp := *c
	cp.userAgent = ua
	return &cp
}

// UserAgent returns the User-Agent header value sent with each request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Timeout returns the per-request timeout of the underlying HTTP client.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// MaxRetries returns how many times a failed request is retried.
func (c *Client) MaxRetries() int {
	return c.maxRetries
}

// AuthFunc returns the configured auth hook, or nil.
func (c *Client) AuthFunc() AuthFunc {
	return c.auth
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// GetBody fetches url and returns the response body.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, http.MethodGet, url, func(resp *http.Response) error {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading %s: %w", url, err)
		}
		body = b
		return nil
	})
	return body, err
}

// Head issues a HEAD request and returns the response status code.
func (c *Client) Head(ctx context.Context, url string) (int, error) {
	var status int
	err := c.do(ctx, http.MethodHead, url, func(resp *http.Response) error {
		status = resp.StatusCode
		return nil
	})
	return status, err
}

func (c *Client) do(ctx context.Context, method, url string, handle func(*http.Response) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initial
	policy.MaxElapsedTime = 0

	var b backoff.BackOff = policy
	if c.maxRetries <= 0 {
		// WithMaxRetries treats zero as unlimited.
		b = &backoff.StopBackOff{}
	} else {
		b = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}
	b = backoff.WithContext(b, ctx)

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		c.auth.apply(req)
		if method == http.MethodGet {
			req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.1")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return handle(resp)
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
			return &RateLimitError{RetryAfter: retryAfter}
		case resp.StatusCode >= 500:
			return newHTTPError(resp, url)
		default:
			return backoff.Permanent(newHTTPError(resp, url))
		}
	}

	err := backoff.Retry(op, b)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func newHTTPError(resp *http.Response, url string) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		URL:        url,
		Body:       string(body),
	}
}
