// Package errors defines the error taxonomy shared by the resolution
// pipeline and the user-facing surfaces. Import it as vferrors.
package errors

import (
	"fmt"
	"strings"
	"time"

	"github.com/systmms/vaultfetch/internal/refs"
)

// NotFoundKind says which level of the reference was missing.
type NotFoundKind string

const (
	KindVault NotFoundKind = "vault"
	KindItem  NotFoundKind = "item"
	KindField NotFoundKind = "field"
)

// NotFoundError indicates the vault, item, or field a reference points at
// does not exist. Permanent: retrying cannot make it appear.
type NotFoundError struct {
	Kind  NotFoundKind
	Vault string
	Item  string
	Field string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindVault:
		return fmt.Sprintf("vault %q not found", e.Vault)
	case KindField:
		return fmt.Sprintf("field %q not found in item %q (vault %q)", e.Field, e.Item, e.Vault)
	default:
		return fmt.Sprintf("item %q not found in vault %q", e.Item, e.Vault)
	}
}

// AuthError indicates the access token was rejected. The message must never
// contain credential material.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("vault authentication failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("vault authentication failed (status %d)", e.Status)
}

// TransientError wraps a failure worth retrying: server-side errors, rate
// limits, request timeouts, and connection-level faults.
type TransientError struct {
	Status int // 0 for connection-level failures
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transient vault error (status %d)", e.Status)
	}
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RetryExhaustedError is surfaced when a transient failure survived the
// whole retry budget.
type RetryExhaustedError struct {
	Destination string
	Attempts    int
	Err         error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up on %s after %d attempts: %v", e.Destination, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// CircuitOpenError is returned without any network attempt while a
// destination's breaker is open. Unattempted lists the references the
// resolver skipped because of it, so callers can act on what did succeed.
type CircuitOpenError struct {
	Destination string
	RetryAfter  time.Duration
	Unattempted []refs.Reference
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s, retry in %s", e.Destination, e.RetryAfter.Round(time.Millisecond))
}

// UserError carries helpful context for CLI-facing failures.
type UserError struct {
	Message    string
	Details    string
	Suggestion string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error { return e.Err }

// ConfigError represents a configuration problem with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}
