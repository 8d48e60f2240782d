package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
)

// Kind is a closed classification of why an HTTP attempt failed.
// Classification happens once, at the transport boundary, so that retry
// policy can match on a tag instead of probing loosely-typed error values.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindConnectionRefused
	KindConnectionReset
	KindDNSFailure
	KindUnreachable
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionRefused:
		return "connection_refused"
	case KindConnectionReset:
		return "connection_reset"
	case KindDNSFailure:
		return "dns_failure"
	case KindUnreachable:
		return "unreachable"
	case KindHTTP:
		return "http"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Failure is a classified attempt failure. For KindHTTP it carries the
// response status and headers (so retry policy can honor Retry-After);
// for network kinds it wraps the transport error.
type Failure struct {
	Kind       Kind
	StatusCode int
	Headers    http.Header
	Cause      error
}

func (f *Failure) Error() string {
	if f.Kind == KindHTTP {
		return fmt.Sprintf("http request failed: status %d", f.StatusCode)
	}
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	}
	return f.Kind.String()
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// IsNetwork reports whether the failure happened below the HTTP layer,
// i.e. no status code was ever received.
func (f *Failure) IsNetwork() bool {
	switch f.Kind {
	case KindTimeout, KindConnectionRefused, KindConnectionReset, KindDNSFailure, KindUnreachable:
		return true
	default:
		return false
	}
}

// FromResponse builds a Failure for a non-success HTTP response.
func FromResponse(resp *http.Response) *Failure {
	return &Failure{
		Kind:       KindHTTP,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}
}

// Classify maps a transport error to a Failure. Already-classified errors
// pass through unchanged. Context cancellation is deliberately left as
// KindOther so retry policy never reattempts a canceled request.
func Classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	return &Failure{Kind: classifyKind(err), Cause: err}
}

func classifyKind(err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return KindConnectionReset
	}

	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return KindUnreachable
	}

	// net.Error covers http.Client deadline errors and dial timeouts.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if os.IsTimeout(err) {
		return KindTimeout
	}

	return KindOther
}
