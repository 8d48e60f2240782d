// Package metrics collects per-host request metrics for the resilient
// client: attempts, retries, breaker rejections, outcomes, and response
// time percentiles. Events flow through a buffered channel into a single
// collector goroutine, and a JSON handler exposes the combined request and
// circuit breaker snapshot.
package metrics
