package main

import (
	"context"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/http-resilience/config"
	"github.com/angeloszaimis/http-resilience/internal/metrics"
)

var testLogger = slog.New(slog.DiscardHandler)

func validRetryConfig() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:          3,
		BaseDelay:            "1s",
		MaxDelay:             "30s",
		Multiplier:           2.0,
		Jitter:               config.JitterFull,
		MaxElapsedTime:       "2m",
		RetryableStatusCodes: []int{503},
		RetryOnNetworkError:  true,
	}
}

var _ = Describe("Main", func() {
	Describe("buildStrategy", func() {
		It("should build a strategy from valid config", func() {
			strategy, err := buildStrategy(validRetryConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(strategy.MaxAttempts()).To(Equal(3))
			Expect(strategy.MaxElapsedTime()).To(Equal(2 * time.Minute))
		})

		It("should allow an empty elapsed time budget", func() {
			rc := validRetryConfig()
			rc.MaxElapsedTime = ""

			strategy, err := buildStrategy(rc)
			Expect(err).NotTo(HaveOccurred())
			Expect(strategy.MaxElapsedTime()).To(BeZero())
		})

		It("should reject a malformed base delay", func() {
			rc := validRetryConfig()
			rc.BaseDelay = "soon"

			_, err := buildStrategy(rc)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a malformed max delay", func() {
			rc := validRetryConfig()
			rc.MaxDelay = "later"

			_, err := buildStrategy(rc)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("buildRegistry", func() {
		It("should build a registry from valid config", func() {
			breakers, err := buildRegistry(config.CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				OpenTimeout:      "30s",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(breakers).NotTo(BeNil())
		})

		It("should reject a malformed open timeout", func() {
			_, err := buildRegistry(config.CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				OpenTimeout:      "whenever",
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("buildClient", func() {
		It("should build a client from valid config", func() {
			strategy, err := buildStrategy(validRetryConfig())
			Expect(err).NotTo(HaveOccurred())

			breakers, err := buildRegistry(config.CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				OpenTimeout:      "30s",
			})
			Expect(err).NotTo(HaveOccurred())

			collector := metrics.NewCollector(16, testLogger)

			c, err := buildClient(config.ClientConfig{
				BaseURL: "http://api.internal",
				Timeout: "10s",
			}, strategy, breakers, collector, testLogger)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).NotTo(BeNil())
		})

		It("should reject a malformed timeout", func() {
			strategy, err := buildStrategy(validRetryConfig())
			Expect(err).NotTo(HaveOccurred())

			breakers, err := buildRegistry(config.CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				OpenTimeout:      "30s",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = buildClient(config.ClientConfig{Timeout: "fast"}, strategy, breakers, nil, testLogger)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a malformed base URL", func() {
			strategy, err := buildStrategy(validRetryConfig())
			Expect(err).NotTo(HaveOccurred())

			breakers, err := buildRegistry(config.CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				OpenTimeout:      "30s",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = buildClient(config.ClientConfig{
				BaseURL: "://missing-scheme",
				Timeout: "10s",
			}, strategy, breakers, nil, testLogger)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("startProbes", func() {
		It("should create one target per configured endpoint", func() {
			cfg := &config.Config{
				Probe:   config.ProbeConfig{Interval: "1h"},
				Targets: []config.TargetConfig{{URL: "http://api.internal/health"}, {URL: "http://db.internal/ping", Method: "HEAD"}},
			}

			strategy, err := buildStrategy(validRetryConfig())
			Expect(err).NotTo(HaveOccurred())

			breakers, err := buildRegistry(config.CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				OpenTimeout:      "30s",
			})
			Expect(err).NotTo(HaveOccurred())

			c, err := buildClient(config.ClientConfig{Timeout: "1s"}, strategy, breakers, nil, testLogger)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			targets, err := startProbes(ctx, cfg, c, testLogger)
			Expect(err).NotTo(HaveOccurred())
			Expect(targets).To(HaveLen(2))
			Expect(targets[1].Method).To(Equal("HEAD"))
		})

		It("should reject a malformed interval", func() {
			cfg := &config.Config{Probe: config.ProbeConfig{Interval: "often"}}

			_, err := startProbes(context.Background(), cfg, nil, testLogger)
			Expect(err).To(HaveOccurred())
		})
	})
})
