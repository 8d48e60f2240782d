package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angeloszaimis/http-resilience/internal/failure"
)

// Operation performs a single HTTP attempt. A non-nil error must be
// classified (or classifiable) via the failure package.
type Operation func(ctx context.Context) (*http.Response, error)

// Do runs op, retrying failed attempts according to the strategy. The delay
// between attempts comes from Strategy.Delay and the sleep respects context
// cancellation. When the strategy gives up, the last underlying error is
// returned as-is so callers keep the root cause.
func Do(ctx context.Context, s *Strategy, method, url string, op Operation) (*http.Response, error) {
	start := time.Now()

	var lastDelay time.Duration

	for attempt := 0; ; attempt++ {
		resp, err := op(ctx)
		if err == nil {
			return resp, nil
		}

		rctx := Context{
			Attempt:   attempt,
			Err:       err,
			Elapsed:   time.Since(start),
			URL:       url,
			Method:    method,
			LastDelay: lastDelay,
		}

		var f *failure.Failure
		if errors.As(err, &f) {
			rctx.StatusCode = f.StatusCode
			rctx.Headers = f.Headers
		}

		if !s.ShouldRetry(rctx) {
			return nil, err
		}

		lastDelay = s.Delay(rctx)

		if lastDelay > 0 {
			timer := time.NewTimer(lastDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
