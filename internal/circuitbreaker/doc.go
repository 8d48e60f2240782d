// Package circuitbreaker implements the circuit breaker pattern for
// outbound HTTP targets. A circuit breaker prevents hammering a failing
// downstream host by rejecting requests for a cooldown period. It has
// three states:
//
//   - CLOSED: Normal operation, requests pass through
//   - OPEN: Host failing, requests rejected with ErrOpen
//   - HALF-OPEN: Testing if the host recovered
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 1, 30*time.Second)
//	err := registry.Execute(ctx, "api.example.com", func(ctx context.Context) error {
//	    return doRequest(ctx)
//	})
//	if errors.Is(err, circuitbreaker.ErrOpen) {
//	    // Rejected without attempting the request.
//	}
package circuitbreaker
