// Package client composes the retry strategy and per-host circuit breakers
// into a resilient HTTP client. Each request is executed under the breaker
// of its target host; inside the breaker the retry loop reattempts
// transient failures according to the strategy.
package client
