package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/http-resilience/internal/circuitbreaker"
)

// BreakerStats supplies per-host circuit breaker snapshots for the status
// endpoint. *circuitbreaker.Registry satisfies it.
type BreakerStats interface {
	Stats() map[string]circuitbreaker.Metrics
}

type statusResponse struct {
	Requests Snapshot                          `json:"requests"`
	Breakers map[string]circuitbreaker.Metrics `json:"breakers"`
}

// Handler serves a JSON snapshot of request metrics and breaker state.
func (c *Collector) Handler(breakers BreakerStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := statusResponse{
			Requests: c.Snapshot(),
		}
		if breakers != nil {
			status.Breakers = breakers.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
