package main

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/http-resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/http-resilience/internal/metrics"
	"github.com/angeloszaimis/http-resilience/internal/probe"
)

func setupRouter(collector *metrics.Collector, breakers *circuitbreaker.Registry, targets []*probe.Target) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", collector.Handler(breakers))
	mux.HandleFunc("/healthz", healthzHandler(targets))

	return mux
}

func healthzHandler(targets []*probe.Target) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up := make(map[string]bool, len(targets))
		for _, target := range targets {
			up[target.URL] = target.Up()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"targets": up,
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
