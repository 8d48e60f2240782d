// Package retry implements the retry decision engine for outbound HTTP
// requests: exponential backoff with selectable jitter, a Retry-After-aware
// delay override, status code and network-error retry rules, and a
// context-aware retry loop.
//
// Usage:
//
//	strategy := retry.New(
//	    retry.WithMaxAttempts(5),
//	    retry.WithBackoff(200*time.Millisecond, 10*time.Second),
//	)
//	resp, err := retry.Do(ctx, strategy, http.MethodGet, url, attempt)
package retry
