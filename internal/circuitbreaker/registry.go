package circuitbreaker

import (
	"context"
	"sync"
	"time"
)

// Registry owns one CircuitBreaker per host key. Breakers are created
// lazily with the registry's defaults and are never shared across keys.
type Registry struct {
	mutex            sync.RWMutex
	breakers         map[string]*CircuitBreaker
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

func NewRegistry(failureThreshold, successThreshold int, openTimeout time.Duration) *Registry {
	return &Registry{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
	}
}

// GetBreaker returns the breaker for the given host key, creating it in the
// closed state on first use.
func (r *Registry) GetBreaker(hostKey string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[hostKey]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[hostKey]; exists {
		return cb
	}

	cb = NewCircuitBreaker(hostKey, r.failureThreshold, r.successThreshold, r.openTimeout)
	r.breakers[hostKey] = cb
	return cb
}

// Execute runs op under the breaker owned by hostKey.
func (r *Registry) Execute(ctx context.Context, hostKey string, op func(context.Context) error) error {
	return r.GetBreaker(hostKey).Execute(ctx, op)
}

// Reset discards all breakers, returning every host to the closed state.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// Stats returns a metrics snapshot per host key.
func (r *Registry) Stats() map[string]Metrics {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]Metrics, len(r.breakers))
	for hostKey, cb := range r.breakers {
		stats[hostKey] = cb.Metrics()
	}
	return stats
}
