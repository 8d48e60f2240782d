package retry

import (
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/angeloszaimis/http-resilience/internal/failure"
)

// Jitter selects how a computed backoff delay is randomized.
type Jitter string

const (
	// JitterNone returns the exponential delay unchanged.
	JitterNone Jitter = "none"

	// JitterFull returns a uniform value in [0, delay]. This is the default.
	JitterFull Jitter = "full"

	// JitterEqual returns delay/2 plus a uniform value in [0, delay/2].
	JitterEqual Jitter = "equal"

	// JitterDecorrelated returns a uniform value in
	// [baseDelay, min(maxDelay, lastDelay*3)], where lastDelay is the delay
	// of the previous attempt in the same session (carried in Context).
	JitterDecorrelated Jitter = "decorrelated"
)

// Context describes one failed attempt. A fresh Context is built per attempt;
// the only field carried across attempts is LastDelay, which the retry
// session owns so that a Strategy stays stateless and shareable even with
// decorrelated jitter.
type Context struct {
	// Attempt is the zero-based count of attempts already made.
	Attempt int

	// Err is the failure from the last attempt, if any.
	Err error

	// StatusCode is the HTTP status of the failed attempt, 0 if no
	// response was received.
	StatusCode int

	// Headers are the response headers of the failed attempt, consulted
	// for Retry-After.
	Headers http.Header

	// Elapsed is the wall-clock time since the first attempt.
	Elapsed time.Duration

	URL    string
	Method string

	// LastDelay is the delay returned for the previous attempt of this
	// session. Only decorrelated jitter reads it.
	LastDelay time.Duration
}

// Strategy decides whether a failed attempt should be retried and how long
// to wait before the next one. A Strategy is immutable after construction
// and safe to share across concurrent retry sessions.
type Strategy struct {
	maxAttempts          int
	baseDelay            time.Duration
	maxDelay             time.Duration
	multiplier           float64
	jitter               Jitter
	maxElapsedTime       time.Duration
	retryableStatusCodes map[int]bool
	retryOnNetworkError  bool
	predicate            func(Context) bool
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithMaxAttempts sets the maximum number of retries after the initial
// attempt. 0 means try once, never retry.
func WithMaxAttempts(n int) Option {
	return func(s *Strategy) {
		s.maxAttempts = n
	}
}

// WithBackoff sets the base and maximum backoff delay.
func WithBackoff(base, max time.Duration) Option {
	return func(s *Strategy) {
		s.baseDelay = base
		s.maxDelay = max
	}
}

// WithMultiplier sets the exponential growth factor.
func WithMultiplier(m float64) Option {
	return func(s *Strategy) {
		s.multiplier = m
	}
}

// WithJitter selects the jitter mode.
func WithJitter(j Jitter) Option {
	return func(s *Strategy) {
		s.jitter = j
	}
}

// WithMaxElapsedTime sets the total retry budget. 0 means unlimited within
// the attempt limit.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(s *Strategy) {
		s.maxElapsedTime = d
	}
}

// WithRetryableStatusCodes replaces the set of HTTP statuses eligible for
// retry.
func WithRetryableStatusCodes(codes ...int) Option {
	return func(s *Strategy) {
		s.retryableStatusCodes = make(map[int]bool, len(codes))
		for _, code := range codes {
			s.retryableStatusCodes[code] = true
		}
	}
}

// WithRetryOnNetworkError controls whether connection-level failures
// without a status code are retried.
func WithRetryOnNetworkError(retry bool) Option {
	return func(s *Strategy) {
		s.retryOnNetworkError = retry
	}
}

// WithPredicate installs a custom retry decision that overrides the
// built-in status and network rules. Attempt and elapsed-time limits still
// apply first.
func WithPredicate(fn func(Context) bool) Option {
	return func(s *Strategy) {
		s.predicate = fn
	}
}

// New creates a Strategy with the given options applied over defaults:
// 3 attempts, 1s base delay, 30s max delay, multiplier 2, full jitter,
// 2m retry budget, statuses {408, 429, 500, 502, 503, 504}, network
// errors retried.
func New(opts ...Option) *Strategy {
	s := &Strategy{
		maxAttempts:    3,
		baseDelay:      time.Second,
		maxDelay:       30 * time.Second,
		multiplier:     2,
		jitter:         JitterFull,
		maxElapsedTime: 2 * time.Minute,
		retryableStatusCodes: map[int]bool{
			http.StatusRequestTimeout:      true,
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
		retryOnNetworkError: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// MaxAttempts returns the retry attempt limit.
func (s *Strategy) MaxAttempts() int {
	return s.maxAttempts
}

// MaxElapsedTime returns the total retry budget, 0 meaning unlimited.
func (s *Strategy) MaxElapsedTime() time.Duration {
	return s.maxElapsedTime
}

// ShouldRetry reports whether the attempt described by ctx should be
// retried. Rules are evaluated in order, first match wins: attempt limit,
// elapsed-time budget, custom predicate, network-error policy, status code
// membership, then the network-error policy as the conservative default.
func (s *Strategy) ShouldRetry(ctx Context) bool {
	if ctx.Attempt >= s.maxAttempts {
		return false
	}

	if s.maxElapsedTime > 0 && ctx.Elapsed >= s.maxElapsedTime {
		return false
	}

	if s.predicate != nil {
		return s.predicate(ctx)
	}

	if ctx.Err != nil && failure.Classify(ctx.Err).IsNetwork() {
		return s.retryOnNetworkError
	}

	if ctx.StatusCode != 0 {
		return s.retryableStatusCodes[ctx.StatusCode]
	}

	return s.retryOnNetworkError
}

// Delay returns how long to wait before the next attempt. A server-supplied
// Retry-After header always wins over client-side backoff; otherwise the
// exponential delay is computed, clamped, and jittered.
func (s *Strategy) Delay(ctx Context) time.Duration {
	if d, ok := s.retryAfter(ctx.Headers); ok {
		return d
	}

	// Compare as float64 before converting: multiplier^attempt overflows
	// time.Duration long before it overflows a float.
	delay := float64(s.baseDelay) * math.Pow(s.multiplier, float64(ctx.Attempt))
	capped := s.maxDelay
	if delay < float64(s.maxDelay) {
		capped = time.Duration(delay)
	}

	switch s.jitter {
	case JitterFull:
		return randomBetween(0, capped)
	case JitterEqual:
		return capped/2 + randomBetween(0, capped/2)
	case JitterDecorrelated:
		last := ctx.LastDelay
		if last <= 0 {
			last = s.baseDelay
		}
		upper := last * 3
		if upper > s.maxDelay {
			upper = s.maxDelay
		}
		if upper <= s.baseDelay {
			return s.baseDelay
		}
		return randomBetween(s.baseDelay, upper)
	default:
		return capped
	}
}

// retryAfter parses the Retry-After header of the failed response, either
// as a non-negative integer number of seconds or as an HTTP date. Any other
// value is treated as absent.
func (s *Strategy) retryAfter(headers http.Header) (time.Duration, bool) {
	if headers == nil {
		return 0, false
	}

	value := headers.Get("Retry-After")
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return clamp(time.Duration(seconds)*time.Second, s.maxDelay), true
	}

	if at, err := http.ParseTime(value); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return clamp(d, s.maxDelay), true
	}

	return 0, false
}

func clamp(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

func randomBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
