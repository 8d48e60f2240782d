package retry_test

import (
	"context"
	"net/http"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/http-resilience/internal/failure"
	"github.com/angeloszaimis/http-resilience/internal/retry"
)

var _ = Describe("Do", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("should return the first successful response without retrying", func() {
		s := retry.New(retry.WithMaxAttempts(3))

		calls := 0
		resp, err := retry.Do(ctx, s, http.MethodGet, "http://api.test/things", func(context.Context) (*http.Response, error) {
			calls++
			return &http.Response{StatusCode: http.StatusOK}, nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(calls).To(Equal(1))
	})

	It("should retry 503 failures with exponential delays and then succeed", func() {
		s := retry.New(
			retry.WithMaxAttempts(3),
			retry.WithBackoff(100*time.Millisecond, time.Minute),
			retry.WithMultiplier(2),
			retry.WithJitter(retry.JitterNone),
		)

		calls := 0
		var callTimes []time.Time

		resp, err := retry.Do(ctx, s, http.MethodGet, "http://api.test/things", func(context.Context) (*http.Response, error) {
			callTimes = append(callTimes, time.Now())
			calls++
			if calls <= 3 {
				return nil, &failure.Failure{Kind: failure.KindHTTP, StatusCode: 503}
			}
			return &http.Response{StatusCode: http.StatusOK}, nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(calls).To(Equal(4))

		// Delays between the 4 invocations: 100ms, 200ms, 400ms.
		expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
		for i, want := range expected {
			gap := callTimes[i+1].Sub(callTimes[i])
			Expect(gap).To(BeNumerically(">=", want))
			Expect(gap).To(BeNumerically("<", want+80*time.Millisecond))
		}
	})

	It("should invoke the operation exactly once with zero max attempts and rethrow the original error", func() {
		s := retry.New(retry.WithMaxAttempts(0))

		calls := 0
		boom := &failure.Failure{Kind: failure.KindHTTP, StatusCode: 503}

		start := time.Now()
		resp, err := retry.Do(ctx, s, http.MethodGet, "http://api.test/things", func(context.Context) (*http.Response, error) {
			calls++
			return nil, boom
		})

		Expect(resp).To(BeNil())
		Expect(err).To(BeIdenticalTo(boom))
		Expect(calls).To(Equal(1))
		Expect(time.Since(start)).To(BeNumerically("<", 50*time.Millisecond))
	})

	It("should return the last underlying error after exhausting attempts", func() {
		s := retry.New(
			retry.WithMaxAttempts(2),
			retry.WithBackoff(time.Millisecond, time.Millisecond),
			retry.WithJitter(retry.JitterNone),
		)

		calls := 0
		last := &failure.Failure{Kind: failure.KindHTTP, StatusCode: 502}

		resp, err := retry.Do(ctx, s, http.MethodGet, "http://api.test/things", func(context.Context) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, &failure.Failure{Kind: failure.KindHTTP, StatusCode: 503}
			}
			return nil, last
		})

		Expect(resp).To(BeNil())
		Expect(err).To(BeIdenticalTo(last))
		Expect(calls).To(Equal(3))
	})

	It("should stop immediately on a non-retryable status", func() {
		s := retry.New(retry.WithMaxAttempts(5))

		calls := 0
		resp, err := retry.Do(ctx, s, http.MethodGet, "http://api.test/things", func(context.Context) (*http.Response, error) {
			calls++
			return nil, &failure.Failure{Kind: failure.KindHTTP, StatusCode: 404}
		})

		Expect(resp).To(BeNil())
		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("should honor Retry-After from the failed response", func() {
		s := retry.New(
			retry.WithMaxAttempts(1),
			retry.WithBackoff(time.Millisecond, time.Minute),
			retry.WithJitter(retry.JitterFull),
		)

		headers := http.Header{}
		headers.Set("Retry-After", "1")

		calls := 0
		var callTimes []time.Time

		resp, err := retry.Do(ctx, s, http.MethodGet, "http://api.test/things", func(context.Context) (*http.Response, error) {
			callTimes = append(callTimes, time.Now())
			calls++
			if calls == 1 {
				return nil, &failure.Failure{Kind: failure.KindHTTP, StatusCode: 429, Headers: headers}
			}
			return &http.Response{StatusCode: http.StatusOK}, nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(resp).NotTo(BeNil())
		Expect(callTimes[1].Sub(callTimes[0])).To(BeNumerically(">=", time.Second))
	})

	It("should abort the delay when the context is canceled", func() {
		s := retry.New(
			retry.WithMaxAttempts(3),
			retry.WithBackoff(10*time.Second, 10*time.Second),
			retry.WithJitter(retry.JitterNone),
		)

		cancelCtx, cancel := context.WithCancel(ctx)

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		_, err := retry.Do(cancelCtx, s, http.MethodGet, "http://api.test/things", func(context.Context) (*http.Response, error) {
			return nil, syscall.ECONNREFUSED
		})

		Expect(err).To(MatchError(context.Canceled))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))
	})

	It("should retry network errors from the raw transport", func() {
		s := retry.New(
			retry.WithMaxAttempts(2),
			retry.WithBackoff(time.Millisecond, time.Millisecond),
			retry.WithJitter(retry.JitterNone),
		)

		calls := 0
		resp, err := retry.Do(ctx, s, http.MethodGet, "http://api.test/things", func(context.Context) (*http.Response, error) {
			calls++
			if calls == 1 {
				return nil, syscall.ECONNRESET
			}
			return &http.Response{StatusCode: http.StatusOK}, nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(resp).NotTo(BeNil())
		Expect(calls).To(Equal(2))
	})
})
