package probe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/angeloszaimis/http-resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/http-resilience/internal/client"
)

// Target is one endpoint to probe periodically.
type Target struct {
	URL    string
	Method string

	mutex sync.Mutex
	up    bool
	known bool
}

// NewTarget creates a probe target. Method defaults to GET.
func NewTarget(url, method string) *Target {
	if method == "" {
		method = http.MethodGet
	}
	return &Target{URL: url, Method: method}
}

// Up reports the result of the most recent probe. It returns false until
// the first probe completes.
func (t *Target) Up() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.up
}

// setUp records the probe outcome. Returns true when the status changed,
// including the very first observation.
func (t *Target) setUp(up bool) (changed bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.known && t.up == up {
		return false
	}

	t.known = true
	t.up = up
	return true
}

// Run probes the target through the resilient client until the context is
// canceled, logging up/down transitions. Breaker rejections are logged at
// debug level only: they mean the host is cooling down, not that a new
// probe failed.
func Run(
	ctx context.Context,
	c *client.Client,
	target *Target,
	interval time.Duration,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Probe stopped", slog.String("target", target.URL))
			return

		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, target.Method, target.URL, nil)
			if err != nil {
				continue
			}

			res, err := c.Do(req)
			if err != nil {
				if errors.Is(err, circuitbreaker.ErrOpen) {
					logger.Debug("Probe skipped, circuit open",
						slog.String("target", target.URL))
					continue
				}

				if target.setUp(false) {
					logger.Warn("Target is down",
						slog.String("target", target.URL),
						slog.Any("err", err))
				}
				continue
			}

			io.Copy(io.Discard, res.Body)
			res.Body.Close()

			if target.setUp(true) {
				logger.Info("Target is up",
					slog.String("target", target.URL),
					slog.Int("status", res.StatusCode))
			}
		}
	}
}
