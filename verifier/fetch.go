package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrSizeExceeded indicates a response exceeds the maximum fetch size.
var ErrSizeExceeded = errors.New("response exceeds maximum fetch size")

// Fetcher retrieves bytes from a URL. Implementations must honor context
// cancellation; the verification machine aborts mid-flight through it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const (
	// defaultFetchTimeout bounds each individual fetch. Timeouts surface
	// as unreachable-manifest or missing-resource failures, never as a
	// hang.
	defaultFetchTimeout = 30 * time.Second

	// defaultMaxFetchSize bounds any single response body.
	defaultMaxFetchSize = 64 << 20 // 64 MiB
)

// HTTPFetcher fetches over HTTP with a per-request timeout, a response size
// cap, and an optional request rate limit for politeness toward mirrors.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	maxSize int64
	limiter *rate.Limiter
}

// FetcherOption is a functional option for configuring an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) { f.timeout = d }
}

// WithMaxSize sets the maximum response body size in bytes.
func WithMaxSize(n int64) FetcherOption {
	return func(f *HTTPFetcher) { f.maxSize = n }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) FetcherOption {
	return func(f *HTTPFetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  http.DefaultClient,
		timeout: defaultFetchTimeout,
		maxSize: defaultMaxFetchSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves url and returns its body, bounded by the configured size
// cap and timeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	// Read up to maxSize+1 to detect oversized responses.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, ErrSizeExceeded
	}

	return data, nil
}
