package probe_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/http-resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/http-resilience/internal/client"
	"github.com/angeloszaimis/http-resilience/internal/probe"
	"github.com/angeloszaimis/http-resilience/internal/retry"
)

func newTestClient() *client.Client {
	strategy := retry.New(
		retry.WithMaxAttempts(0),
	)
	return client.New(strategy, circuitbreaker.NewRegistry(100, 1, time.Minute),
		client.WithLogger(slog.New(slog.DiscardHandler)))
}

var _ = Describe("Probe", func() {
	Describe("NewTarget", func() {
		It("should default the method to GET", func() {
			target := probe.NewTarget("http://api.test/health", "")
			Expect(target.Method).To(Equal(http.MethodGet))
		})

		It("should start with the target considered down", func() {
			target := probe.NewTarget("http://api.test/health", http.MethodGet)
			Expect(target.Up()).To(BeFalse())
		})
	})

	Describe("Run", func() {
		It("should mark a healthy target up", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			target := probe.NewTarget(server.URL, http.MethodGet)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go probe.Run(ctx, newTestClient(), target, 10*time.Millisecond, slog.New(slog.DiscardHandler))

			Eventually(target.Up, time.Second, 10*time.Millisecond).Should(BeTrue())
		})

		It("should mark a failing target down", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			target := probe.NewTarget(server.URL, http.MethodGet)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go probe.Run(ctx, newTestClient(), target, 10*time.Millisecond, slog.New(slog.DiscardHandler))

			Consistently(target.Up, 200*time.Millisecond, 20*time.Millisecond).Should(BeFalse())
		})

		It("should observe recovery", func() {
			var healthy atomic.Bool
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !healthy.Load() {
					http.Error(w, "down", http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			target := probe.NewTarget(server.URL, http.MethodGet)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go probe.Run(ctx, newTestClient(), target, 10*time.Millisecond, slog.New(slog.DiscardHandler))

			Consistently(target.Up, 100*time.Millisecond, 20*time.Millisecond).Should(BeFalse())

			healthy.Store(true)
			Eventually(target.Up, time.Second, 10*time.Millisecond).Should(BeTrue())
		})

		It("should stop when the context is canceled", func() {
			var hits atomic.Int64
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			target := probe.NewTarget(server.URL, http.MethodGet)
			ctx, cancel := context.WithCancel(context.Background())

			done := make(chan struct{})
			go func() {
				defer close(done)
				probe.Run(ctx, newTestClient(), target, 10*time.Millisecond, slog.New(slog.DiscardHandler))
			}()

			Eventually(func() int64 { return hits.Load() }, time.Second, 10*time.Millisecond).Should(BeNumerically(">", 0))

			cancel()
			Eventually(done, time.Second).Should(BeClosed())

			settled := hits.Load()
			Consistently(func() int64 { return hits.Load() }, 100*time.Millisecond, 20*time.Millisecond).Should(Equal(settled))
		})
	})
})
