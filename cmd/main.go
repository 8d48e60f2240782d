package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/http-resilience/config"
	"github.com/angeloszaimis/http-resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/http-resilience/internal/client"
	"github.com/angeloszaimis/http-resilience/internal/metrics"
	"github.com/angeloszaimis/http-resilience/internal/probe"
	"github.com/angeloszaimis/http-resilience/internal/retry"
	"github.com/angeloszaimis/http-resilience/pkg/logger"

	"github.com/angeloszaimis/http-resilience/internal/httpserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	strategy, err := buildStrategy(cfg.Retry)
	if err != nil {
		log.Error("Failed to build retry strategy", slog.Any("err", err))
		os.Exit(1)
	}

	breakers, err := buildRegistry(cfg.CircuitBreaker)
	if err != nil {
		log.Error("Failed to build circuit breaker registry", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(1024, log)
	collector.Start(ctx)

	resilientClient, err := buildClient(cfg.Client, strategy, breakers, collector, log)
	if err != nil {
		log.Error("Failed to build client", slog.Any("err", err))
		os.Exit(1)
	}

	targets, err := startProbes(ctx, cfg, resilientClient, log)
	if err != nil {
		log.Error("Failed to start probes", slog.Any("err", err))
		os.Exit(1)
	}

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(collector, breakers, targets))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Status server listening", slog.String("address", cfg.Server.Address))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting status server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildStrategy(rc config.RetryConfig) (*retry.Strategy, error) {
	baseDelay, err := time.ParseDuration(rc.BaseDelay)
	if err != nil {
		return nil, err
	}

	maxDelay, err := time.ParseDuration(rc.MaxDelay)
	if err != nil {
		return nil, err
	}

	var maxElapsed time.Duration
	if rc.MaxElapsedTime != "" {
		maxElapsed, err = time.ParseDuration(rc.MaxElapsedTime)
		if err != nil {
			return nil, err
		}
	}

	opts := []retry.Option{
		retry.WithMaxAttempts(rc.MaxAttempts),
		retry.WithBackoff(baseDelay, maxDelay),
		retry.WithMultiplier(rc.Multiplier),
		retry.WithJitter(retry.Jitter(rc.Jitter)),
		retry.WithMaxElapsedTime(maxElapsed),
		retry.WithRetryOnNetworkError(rc.RetryOnNetworkError),
	}

	if len(rc.RetryableStatusCodes) > 0 {
		opts = append(opts, retry.WithRetryableStatusCodes(rc.RetryableStatusCodes...))
	}

	return retry.New(opts...), nil
}

func buildRegistry(cc config.CircuitBreakerConfig) (*circuitbreaker.Registry, error) {
	openTimeout, err := time.ParseDuration(cc.OpenTimeout)
	if err != nil {
		return nil, err
	}

	return circuitbreaker.NewRegistry(cc.FailureThreshold, cc.SuccessThreshold, openTimeout), nil
}

func buildClient(
	cc config.ClientConfig,
	strategy *retry.Strategy,
	breakers *circuitbreaker.Registry,
	collector *metrics.Collector,
	log *slog.Logger,
) (*client.Client, error) {
	timeout, err := time.ParseDuration(cc.Timeout)
	if err != nil {
		return nil, err
	}

	opts := []client.Option{
		client.WithHTTPClient(&http.Client{Timeout: timeout}),
		client.WithLogger(log),
		client.WithCollector(collector),
	}

	if cc.BaseURL != "" {
		base, err := url.Parse(cc.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithBaseURL(base))
	}

	return client.New(strategy, breakers, opts...), nil
}

func startProbes(
	ctx context.Context,
	cfg *config.Config,
	c *client.Client,
	log *slog.Logger,
) ([]*probe.Target, error) {
	interval, err := time.ParseDuration(cfg.Probe.Interval)
	if err != nil {
		return nil, err
	}

	var targets []*probe.Target

	for _, tc := range cfg.Targets {
		target := probe.NewTarget(tc.URL, tc.Method)
		targets = append(targets, target)
		go probe.Run(ctx, c, target, interval, log)
	}

	return targets, nil
}
