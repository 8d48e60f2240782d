package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests
	StateHalfOpen              // Testing with probe requests
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is the sentinel returned when a request is rejected because the
// circuit is open. Check it with errors.Is to tell a fast-fail apart from a
// genuine downstream failure.
var ErrOpen = errors.New("circuit breaker is open")

// OpenError is the concrete rejection error, carrying the breaker key and
// how long remains of the cooldown window.
type OpenError struct {
	Key     string
	RetryIn time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %q, retry in %s", e.Key, e.RetryIn)
}

func (e *OpenError) Unwrap() error {
	return ErrOpen
}

// Metrics is a read-only snapshot of a breaker's counters and timestamps.
type Metrics struct {
	State           State      `json:"state"`
	Failures        int        `json:"failures"`
	Successes       int        `json:"successes"`
	TotalRequests   int64      `json:"total_requests"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
	LastSuccessTime *time.Time `json:"last_success_time,omitempty"`
	StateChangedAt  time.Time  `json:"state_changed_at"`
	CircuitOpenedAt *time.Time `json:"circuit_opened_at,omitempty"`
}

// MarshalJSON renders the state as its string form.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// CircuitBreaker guards one downstream target. Failure counting in CLOSED
// is consecutive: any success clears the streak. The OPEN to HALF-OPEN
// transition is lazy, taken on the next Execute after the open timeout has
// elapsed; a breaker that receives no traffic stays OPEN past the nominal
// timeout until someone calls it again.
type CircuitBreaker struct {
	mutex sync.Mutex
	key   string
	state State

	failures      int
	successes     int
	totalRequests int64

	lastFailure     time.Time
	lastSuccess     time.Time
	stateChangedAt  time.Time
	circuitOpenedAt time.Time

	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

// NewCircuitBreaker creates a breaker in the closed state. failureThreshold
// consecutive failures open it, successThreshold half-open probe successes
// close it again, and openTimeout is how long it blocks before probing.
func NewCircuitBreaker(key string, failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		key:              key,
		state:            StateClosed,
		stateChangedAt:   time.Now(),
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
	}
}

// Execute runs op under the breaker. When the circuit is open and the
// cooldown has not elapsed, op is never invoked and an OpenError is
// returned. Otherwise op's outcome is recorded and its error, if any,
// returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := op(ctx)
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalRequests++

	switch cb.state {
	case StateOpen:
		elapsed := time.Since(cb.circuitOpenedAt)
		if elapsed < cb.openTimeout {
			return &OpenError{Key: cb.key, RetryIn: cb.openTimeout - elapsed}
		}
		cb.transition(StateHalfOpen)
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()

	if success {
		cb.successes++
		cb.lastSuccess = now

		switch cb.state {
		case StateClosed:
			// A single success clears the fault streak.
			cb.failures = 0
		case StateHalfOpen:
			if cb.successes >= cb.successThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.failures++
	cb.lastFailure = now

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// transition must be called with the mutex held. Counters restart on every
// transition; opening stamps the cooldown window, closing clears it.
func (cb *CircuitBreaker) transition(to State) {
	cb.state = to
	cb.stateChangedAt = time.Now()
	cb.failures = 0
	cb.successes = 0

	switch to {
	case StateOpen:
		cb.circuitOpenedAt = cb.stateChangedAt
	case StateClosed:
		cb.circuitOpenedAt = time.Time{}
	}
}

// State returns the current state without triggering the lazy OPEN to
// HALF-OPEN transition.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Metrics returns a snapshot of the breaker for observability. Mutating the
// snapshot has no effect on the breaker.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	m := Metrics{
		State:          cb.state,
		Failures:       cb.failures,
		Successes:      cb.successes,
		TotalRequests:  cb.totalRequests,
		StateChangedAt: cb.stateChangedAt,
	}

	if !cb.lastFailure.IsZero() {
		t := cb.lastFailure
		m.LastFailureTime = &t
	}
	if !cb.lastSuccess.IsZero() {
		t := cb.lastSuccess
		m.LastSuccessTime = &t
	}
	if !cb.circuitOpenedAt.IsZero() {
		t := cb.circuitOpenedAt
		m.CircuitOpenedAt = &t
	}

	return m
}
