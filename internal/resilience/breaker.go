package resilience

import (
	"sync"
	"time"

	vferrors "github.com/systmms/vaultfetch/internal/errors"
)

// State is the circuit breaker state for one destination.
type State int

const (
	// Closed lets calls through and counts consecutive failures.
	Closed State = iota
	// Open rejects calls without a network attempt until the break
	// duration elapses.
	Open
	// HalfOpen lets a single probe call through; its outcome decides
	// between Closed and Open.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// breaker tracks consecutive failures for one destination. It is shared by
// every concurrent caller of that destination, so all state changes happen
// under the mutex.
type breaker struct {
	destination string
	threshold   int
	breakFor    time.Duration
	now         func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probing             bool
}

func newBreaker(destination string, opts Options, now func() time.Time) *breaker {
	return &breaker{
		destination: destination,
		threshold:   opts.FailureThreshold,
		breakFor:    opts.BreakDuration,
		now:         now,
	}
}

// allow decides whether a logical call may proceed. While open it fails
// immediately with a CircuitOpenError; after the break duration it admits
// exactly one half-open probe.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.breakFor {
			return &vferrors.CircuitOpenError{
				Destination: b.destination,
				RetryAfter:  b.breakFor - elapsed,
			}
		}
		b.state = HalfOpen
		b.probing = true
		return nil
	default: // HalfOpen
		if b.probing {
			return &vferrors.CircuitOpenError{Destination: b.destination}
		}
		b.probing = true
		return nil
	}
}

// success records a successful logical call: the counter resets and a
// half-open probe closes the breaker.
func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.consecutiveFailures = 0
	b.probing = false
}

// failure records a transient logical-call failure. A failed half-open
// probe reopens the breaker; in closed state the counter advances toward
// the threshold.
func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = b.now()
		b.probing = false
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.threshold {
		b.state = Open
		b.openedAt = b.now()
	}
}

// release frees the half-open probe slot without deciding the breaker's
// fate. Used when a probe ends in a permanent error: that says nothing
// about service health, so the next caller probes again.
func (b *breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
	}
}

// current returns the state for metrics and diagnostics.
func (b *breaker) current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
