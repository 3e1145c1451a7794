// Package fetch performs the single HTTP GET behind each satellite and
// classifies how it went.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Ning0612/NuUpdater/internal/core/merge"
	"github.com/Ning0612/NuUpdater/internal/domain"
)

const (
	// DefaultTimeout bounds connect plus read of one request
	DefaultTimeout = 20 * time.Second

	// DefaultMaxBodyBytes caps a single response body
	DefaultMaxBodyBytes int64 = 50 * 1024 * 1024

	// DefaultUserAgent is sent when Options.UserAgent is empty
	DefaultUserAgent = "nuupdater"
)

// Options configures a Client
type Options struct {
	// Timeout per request. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxBodyBytes caps the body. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// HostInterval is the minimum spacing between two requests to the same
	// host. Zero disables pacing.
	HostInterval time.Duration

	// UserAgent sent with every request
	UserAgent string

	// Transport overrides the HTTP transport (tests)
	Transport http.RoundTripper
}

// Client fetches raw TLE text. It never retries; back-off is decided by the scheduler.
type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
	userAgent    string
	limiter      *HostLimiter
}

// NewClient creates a Client from opts
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		maxBodyBytes: opts.MaxBodyBytes,
		userAgent:    opts.UserAgent,
	}
	if opts.HostInterval > 0 {
		c.limiter = NewHostLimiter(opts.HostInterval)
	}
	return c
}

// Timeout returns the per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// Fetch performs an HTTP GET and returns the body of a 2xx response.
// Errors are *StatusError, or wrap domain.ErrTimeout or domain.ErrNetworkError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, url); err != nil {
			return nil, wrapTransport(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", domain.ErrNetworkError, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, wrapTransport(fmt.Errorf("reading response body: %w", err))
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: response exceeds %d byte limit", domain.ErrNetworkError, c.maxBodyBytes)
	}

	return body, nil
}

// StatusError is a non-2xx HTTP response
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d (%s) from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// IsRateLimit reports whether the status indicates rate limiting (403)
func (e *StatusError) IsRateLimit() bool {
	return e.StatusCode == http.StatusForbidden
}

// Classify turns the result of Fetch into a FetchOutcome
func Classify(body []byte, err error) domain.FetchOutcome {
	if err != nil {
		return Outcome(err)
	}
	return merge.Classify(body)
}

// Outcome maps a Fetch error onto the outcome taxonomy. A nil error is not
// classified here because empty bodies are decided by the merge policy.
func Outcome(err error) domain.FetchOutcome {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return domain.HTTPError(se.StatusCode)
	case errors.Is(err, domain.ErrTimeout):
		return domain.Timeout(err.Error())
	default:
		return domain.NetworkError(err.Error())
	}
}

func wrapTransport(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrNetworkError, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
