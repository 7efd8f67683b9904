package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Classification says whether a failure is worth retrying.
type Classification int

const (
	// Permanent failures recur on every retry: bad credentials, missing
	// vaults/items/fields, malformed references, caller cancellation.
	Permanent Classification = iota
	// Transient failures may succeed on a later attempt.
	Transient
)

func (c Classification) String() string {
	if c == Transient {
		return "transient"
	}
	return "permanent"
}

// ClassifyStatus maps an HTTP status code onto a classification.
func ClassifyStatus(code int) Classification {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return Transient
	case code >= 500:
		return Transient
	default:
		return Permanent
	}
}

// Classify is the single source of truth for retry decisions. No other
// component re-derives transience from an error.
//
// context.DeadlineExceeded is transient here because the pipeline's own
// attempt timeout surfaces as a deadline; caller-initiated cancellation is
// context.Canceled and is never retried.
func Classify(err error) Classification {
	if err == nil {
		return Permanent
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		return Transient
	}

	var authErr *AuthError
	var notFound *NotFoundError
	if errors.As(err, &authErr) || errors.As(err, &notFound) {
		return Permanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	if errors.Is(err, context.Canceled) {
		return Permanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	// Connection-level failures (refused, reset, DNS) arrive as *net.OpError
	// wrapped in *url.Error; both satisfy net.Error above. Anything else is
	// unknown and treated as permanent so retries never mask real bugs.
	return Permanent
}
