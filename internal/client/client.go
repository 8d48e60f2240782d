package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/http-resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/http-resilience/internal/failure"
	"github.com/angeloszaimis/http-resilience/internal/metrics"
	"github.com/angeloszaimis/http-resilience/internal/retry"
)

// UnknownHost is the breaker key used when no hostname can be derived from
// the request URL or the configured base URL. A fixed sentinel keeps
// breaker state attributable to a stable key.
const UnknownHost = "unknown"

// Client executes HTTP requests behind a per-host circuit breaker and a
// retry strategy. The breaker wraps the whole retry loop for a request, so
// a host that trips mid-session rejects the following requests, not the
// remaining attempts of the current one.
//
// Requests with a body must have GetBody set (http.NewRequest does this for
// common body types) or only the first attempt will carry the payload.
type Client struct {
	httpClient *http.Client
	strategy   *retry.Strategy
	breakers   *circuitbreaker.Registry
	baseURL    *url.URL
	logger     *slog.Logger
	collector  *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client. Attempt
// timeouts are that client's responsibility.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the fallback used for host key derivation and for
// resolving relative URLs in Get.
func WithBaseURL(base *url.URL) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCollector attaches a metrics collector receiving attempt, retry,
// rejection, and completion events.
func WithCollector(collector *metrics.Collector) Option {
	return func(c *Client) {
		c.collector = collector
	}
}

// New creates a resilient client from a retry strategy and a breaker
// registry. Both are required; the zero-value options give a 10 second
// transport timeout and a no-op logger.
func New(strategy *retry.Strategy, breakers *circuitbreaker.Registry, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		strategy:   strategy,
		breakers:   breakers,
		logger:     slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do executes the request with retries under the host's circuit breaker.
// There are exactly three terminal outcomes: a response, the last
// underlying attempt error, or a circuitbreaker.OpenError when the host is
// being protected from load.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	hostKey := c.hostKey(req.URL)
	start := time.Now()

	var resp *http.Response
	attempts := 0

	err := c.breakers.Execute(ctx, hostKey, func(ctx context.Context) error {
		r, err := retry.Do(ctx, c.strategy, req.Method, req.URL.String(), func(ctx context.Context) (*http.Response, error) {
			if attempts > 0 {
				c.emit(metrics.Event{Type: metrics.EventRetryScheduled, Timestamp: time.Now(), Host: hostKey})
				c.logger.Debug("retrying request",
					slog.String("host", hostKey),
					slog.String("url", req.URL.String()),
					slog.Int("attempt", attempts))
			}
			attempts++
			c.emit(metrics.Event{Type: metrics.EventAttempt, Timestamp: time.Now(), Host: hostKey})

			return c.attempt(ctx, req)
		})
		resp = r
		return err
	})

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			c.emit(metrics.Event{Type: metrics.EventBreakerRejected, Timestamp: time.Now(), Host: hostKey})
			c.logger.Warn("request rejected by circuit breaker",
				slog.String("host", hostKey),
				slog.String("url", req.URL.String()))
			return nil, err
		}

		c.emit(metrics.Event{
			Type:       metrics.EventCompleted,
			Timestamp:  time.Now(),
			Host:       hostKey,
			Duration:   time.Since(start),
			StatusCode: statusCodeOf(err),
		})
		c.logger.Warn("request failed",
			slog.String("host", hostKey),
			slog.String("url", req.URL.String()),
			slog.Int("attempts", attempts),
			slog.Any("err", err))
		return nil, err
	}

	c.emit(metrics.Event{
		Type:       metrics.EventCompleted,
		Timestamp:  time.Now(),
		Host:       hostKey,
		Duration:   time.Since(start),
		StatusCode: resp.StatusCode,
		Success:    true,
	})

	return resp, nil
}

// Get issues a GET request to the given URL, resolved against the base URL
// when relative.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	target := rawURL
	if c.baseURL != nil {
		if u, err := url.Parse(rawURL); err == nil {
			target = c.baseURL.ResolveReference(u).String()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	return c.Do(req)
}

// Post issues a POST request with the given content type and body, resolved
// against the base URL when relative. Bodies created by http.NewRequest's
// recognized reader types are replayed across retries.
func (c *Client) Post(ctx context.Context, rawURL, contentType string, body io.Reader) (*http.Response, error) {
	target := rawURL
	if c.baseURL != nil {
		if u, err := url.Parse(rawURL); err == nil {
			target = c.baseURL.ResolveReference(u).String()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	return c.Do(req)
}

// attempt performs a single transport round trip and classifies its
// failure at the boundary. Responses with status >= 400 become HTTP-kind
// failures carrying status and headers so retry policy can read
// Retry-After; their bodies are closed here.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, failure.Classify(err)
		}
		clone.Body = body
	}

	resp, err := c.httpClient.Do(clone)
	if err != nil {
		return nil, failure.Classify(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, failure.FromResponse(resp)
	}

	return resp, nil
}

// hostKey derives the breaker key for a request URL: the URL hostname,
// falling back to the base URL's hostname, then to the UnknownHost
// sentinel.
func (c *Client) hostKey(u *url.URL) string {
	if u != nil && u.Hostname() != "" {
		return u.Hostname()
	}

	if c.baseURL != nil && c.baseURL.Hostname() != "" {
		return c.baseURL.Hostname()
	}

	return UnknownHost
}

func (c *Client) emit(event metrics.Event) {
	if c.collector != nil {
		c.collector.Emit(event)
	}
}

func statusCodeOf(err error) int {
	var f *failure.Failure
	if errors.As(err, &f) {
		return f.StatusCode
	}
	return 0
}
