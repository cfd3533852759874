// Package fetch reads simple-index pages and checks release files with
// retry, per-host circuit breaking and artifact URL resolution.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"

	"github.com/git-pkgs/requirements/client"
)

var (
	ErrNotFound     = errors.New("not found on index")
	ErrRateLimited  = errors.New("rate limited by index")
	ErrUpstreamDown = errors.New("index unavailable")
)

const (
	defaultUserAgent  = "reqcheck"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	dnsRefresh        = 5 * time.Minute

	// acceptPage asks PEP 691 capable indexes for the HTML flavour of the
	// simple API; plain file hosts ignore it.
	acceptPage = "application/vnd.pypi.simple.v1+html, text/html;q=0.9, */*;q=0.1"
)

var (
	transportOnce sync.Once
	transport     *http.Transport
	resolver      *dnscache.Resolver
)

// sharedTransport returns the transport every Fetcher dials through. The
// DNS cache and its refresh goroutine are created once per process.
func sharedTransport() *http.Transport {
	transportOnce.Do(func() {
		resolver = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(dnsRefresh)
			defer ticker.Stop()
			for range ticker.C {
				resolver.Refresh(true)
			}
		}()

		dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				var lastErr error
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
					lastErr = err
				}
				return nil, fmt.Errorf("dialing %s: %w", host, lastErr)
			},
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	})
	return transport
}

// Artifact is a fetched index page or release file.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// FetcherInterface is what indexes and the checker need from a fetcher.
type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*Artifact, error)
	Head(ctx context.Context, url string) (size int64, contentType string, err error)
}

// Fetcher performs GET and HEAD requests against an index and its file
// hosts, retrying rate limits and server errors.
type Fetcher struct {
	client     *http.Client
	timeout    time.Duration
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	auth       client.AuthFunc
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client. The shared DNS-caching
// transport is not used when this is set.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout bounds each request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets how many times a rate-limited or failed request is
// retried. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the first retry delay.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithAuthFunc attaches the header returned by fn to each request.
func WithAuthFunc(fn client.AuthFunc) Option {
	return func(f *Fetcher) {
		f.auth = fn
	}
}

// ClientOptions carries the timeout, retry budget, user agent and auth
// hook of an index client over to a Fetcher.
func ClientOptions(c *client.Client) []Option {
	if c == nil {
		return nil
	}
	opts := []Option{
		WithUserAgent(c.UserAgent()),
		WithMaxRetries(c.MaxRetries()),
		WithAuthFunc(c.AuthFunc()),
	}
	if t := c.Timeout(); t > 0 {
		opts = append(opts, WithTimeout(t))
	}
	return opts
}

// NewFetcher creates a Fetcher. Without WithHTTPClient it shares one
// transport and DNS cache with every other Fetcher in the process.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:    defaultTimeout,
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Transport: sharedTransport(), Timeout: f.timeout}
	} else if f.timeout > 0 && f.client.Timeout == 0 {
		cp := *f.client
		cp.Timeout = f.timeout
		f.client = &cp
	}
	return f
}

// Fetch GETs url. The caller must close the returned Artifact.Body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Artifact, error) {
	resp, err := f.send(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Body:        resp.Body,
		Size:        contentLength(resp),
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
	}, nil
}

// Head checks that url exists without downloading it.
func (f *Fetcher) Head(ctx context.Context, url string) (size int64, contentType string, err error) {
	resp, err := f.send(ctx, http.MethodHead, url)
	if err != nil {
		return 0, "", err
	}
	_ = resp.Body.Close()
	return contentLength(resp), resp.Header.Get("Content-Type"), nil
}

// send issues the request, retrying 429 and 5xx responses with
// exponential backoff. On success the response body is left open.
func (f *Fetcher) send(ctx context.Context, method, url string) (*http.Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.baseDelay
	policy.MaxElapsedTime = 0

	var b backoff.BackOff = &backoff.StopBackOff{}
	if f.maxRetries > 0 {
		b = backoff.WithMaxRetries(policy, uint64(f.maxRetries))
	}
	b = backoff.WithContext(b, ctx)

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", f.userAgent)
		if method == http.MethodGet {
			req.Header.Set("Accept", acceptPage)
		}
		if f.auth != nil {
			if name, value := f.auth(url); name != "" && value != "" {
				req.Header.Set(name, value)
			}
		}

		r, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return backoff.Permanent(fmt.Errorf("%s %s: %w", method, url, err))
		}
		if err := statusError(r); err != nil {
			_ = r.Body.Close()
			if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUpstreamDown, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
}

func contentLength(resp *http.Response) int64 {
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n
		}
	}
	return -1
}

// ReadAll fetches url through f and returns at most limit bytes of the body.
func ReadAll(ctx context.Context, f FetcherInterface, url string, limit int64) ([]byte, error) {
	artifact, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(artifact.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}
