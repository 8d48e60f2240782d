// resiliencetest drives the resilient client against a flakyserver instance
// and reports how retries and the circuit breaker behave.
//
// Usage:
//
//	go run ./scripts/flakyserver -port 8081 &
//	go run ./scripts/resiliencetest -target http://localhost:8081
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/http-resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/http-resilience/internal/client"
	"github.com/angeloszaimis/http-resilience/internal/retry"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

func main() {
	var (
		target   = flag.String("target", "http://localhost:8081", "flakyserver base URL")
		requests = flag.Int("requests", 10, "requests per phase")
	)
	flag.Parse()

	strategy := retry.New(
		retry.WithMaxAttempts(3),
		retry.WithBackoff(100*time.Millisecond, 2*time.Second),
		retry.WithJitter(retry.JitterNone),
	)
	breakers := circuitbreaker.NewRegistry(5, 1, 3*time.Second)
	c := client.New(strategy, breakers, client.WithLogger(slog.Default()))

	ctx := context.Background()

	fmt.Println(colorBlue + "━━━ PHASE 1: Healthy target ━━━" + colorReset)
	runPhase(ctx, c, *target+"/work", *requests)

	fmt.Println(colorBlue + "━━━ PHASE 2: Breaking target ━━━" + colorReset)
	if _, err := http.Get(*target + "/break"); err != nil {
		fmt.Printf(colorRed+"could not toggle failure mode: %v\n"+colorReset, err)
		return
	}
	runPhase(ctx, c, *target+"/work", *requests)

	fmt.Println(colorBlue + "━━━ PHASE 3: Recovery ━━━" + colorReset)
	if _, err := http.Get(*target + "/break"); err != nil {
		fmt.Printf(colorRed+"could not toggle failure mode: %v\n"+colorReset, err)
		return
	}
	fmt.Println("waiting for the open timeout to elapse...")
	time.Sleep(3500 * time.Millisecond)
	runPhase(ctx, c, *target+"/work", *requests)

	fmt.Println(colorBlue + "━━━ Breaker metrics ━━━" + colorReset)
	for host, m := range breakers.Stats() {
		fmt.Printf("  %s: state=%s failures=%d successes=%d total=%d\n",
			host, m.State, m.Failures, m.Successes, m.TotalRequests)
	}
}

func runPhase(ctx context.Context, c *client.Client, url string, requests int) {
	var ok, failed, rejected int

	for i := 0; i < requests; i++ {
		resp, err := c.Get(ctx, url)
		switch {
		case errors.Is(err, circuitbreaker.ErrOpen):
			rejected++
			fmt.Printf(colorYellow+"  request %d: rejected (circuit open)\n"+colorReset, i+1)
		case err != nil:
			failed++
			fmt.Printf(colorRed+"  request %d: %v\n"+colorReset, i+1, err)
		default:
			ok++
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	fmt.Printf(colorGreen+"  %d ok"+colorReset+", %d failed, %d rejected\n\n", ok, failed, rejected)
}
