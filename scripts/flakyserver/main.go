// flakyserver is a test HTTP server that injects failures on demand, used
// to exercise retry and circuit breaker behavior by hand.
//
// Usage:
//
//	go run ./scripts/flakyserver -port 8081 -fail-rate 0.5
//
// Endpoints:
//
//	/work        returns 200, or 503 according to -fail-rate
//	/ratelimited always returns 429 with a Retry-After header
//	/break       toggles hard-failure mode (every request 503)
//	/health      returns 200 unless hard-failure mode is on
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
)

func main() {
	var (
		port       = flag.Int("port", 8081, "port to listen on")
		failRate   = flag.Float64("fail-rate", 0.0, "probability of /work returning 503")
		retryAfter = flag.Int("retry-after", 2, "Retry-After seconds sent with 429 responses")
	)
	flag.Parse()

	var broken atomic.Bool
	var served atomic.Int64

	mux := http.NewServeMux()

	mux.HandleFunc("/work", func(w http.ResponseWriter, r *http.Request) {
		n := served.Add(1)
		log.Printf("%s /work (request %d)", r.Method, n)

		if broken.Load() || rand.Float64() < *failRate {
			http.Error(w, "injected failure", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"request": n,
			"status":  "ok",
		})
	})

	mux.HandleFunc("/ratelimited", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", fmt.Sprint(*retryAfter))
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	mux.HandleFunc("/break", func(w http.ResponseWriter, r *http.Request) {
		now := !broken.Load()
		broken.Store(now)
		log.Printf("hard-failure mode: %v", now)
		fmt.Fprintf(w, "broken=%v\n", now)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			http.Error(w, "broken", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("flaky server listening on %s (fail-rate=%.2f)", addr, *failRate)
	log.Fatal(http.ListenAndServe(addr, mux))
}
