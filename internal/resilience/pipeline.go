// Package resilience wraps logical remote calls with a timeout, retries
// with exponential backoff and jitter, and a per-destination circuit
// breaker. Failure classification is delegated entirely to the errors
// package; nothing here inspects error strings.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	vferrors "github.com/systmms/vaultfetch/internal/errors"
	"github.com/systmms/vaultfetch/internal/logging"
)

// Pipeline executes logical calls against remote destinations. Safe for
// concurrent use; retries for one destination never block calls to another.
type Pipeline struct {
	opts   Options
	logger *logging.Logger

	mu       sync.Mutex
	breakers map[string]*breaker

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a pipeline with the given options. The breaker registry is
// owned by the pipeline instance; there is no process-global state.
func New(opts Options, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.New(false, true)
	}
	return &Pipeline{
		opts:     opts.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*breaker),
		now:      time.Now,
		sleep:    sleepContext,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) breakerFor(destination string) *breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	br, ok := p.breakers[destination]
	if !ok {
		br = newBreaker(destination, p.opts, p.now)
		p.breakers[destination] = br
	}
	return br
}

// BreakerState reports the current breaker state for a destination.
func (p *Pipeline) BreakerState(destination string) State {
	return p.breakerFor(destination).current()
}

// Execute runs one logical call against a destination. Each attempt is
// bounded by the request timeout; transient failures are retried with
// exponential backoff until the budget runs out, at which point a
// RetryExhaustedError counts toward the destination's breaker. Permanent
// failures surface immediately and leave the breaker untouched.
func (p *Pipeline) Execute(ctx context.Context, destination string, call func(context.Context) error) error {
	br := p.breakerFor(destination)
	if err := br.allow(); err != nil {
		recordAttempt(destination, "circuit_open")
		return err
	}

	started := p.now()
	defer func() {
		recordDuration(destination, p.now().Sub(started).Seconds())
		recordBreakerState(destination, br.current())
	}()

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := p.attempt(ctx, call)
		if err == nil {
			br.success()
			recordAttempt(destination, "success")
			return nil
		}
		lastErr = err

		// Caller-initiated cancellation aborts without retry and without
		// breaker accounting: it says nothing about service health.
		if ctx.Err() != nil {
			br.release()
			recordAttempt(destination, "canceled")
			return err
		}

		if vferrors.Classify(err) == vferrors.Permanent {
			br.release()
			recordAttempt(destination, "permanent")
			return err
		}

		recordAttempt(destination, "transient")
		if attempt > p.opts.MaxRetries {
			br.failure()
			return &vferrors.RetryExhaustedError{
				Destination: destination,
				Attempts:    attempt,
				Err:         lastErr,
			}
		}

		delay := p.backoff(attempt)
		p.logger.Debug("retrying %s in %s (attempt %d/%d): %v",
			destination, delay.Round(time.Millisecond), attempt+1, p.opts.MaxRetries+1, err)
		recordRetry(destination)
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			// Cancellation during backoff surfaces like cancellation
			// mid-attempt, not like the transient error being retried.
			br.release()
			recordAttempt(destination, "canceled")
			return sleepErr
		}
	}
}

// attempt runs the call under the per-attempt timeout. Expiry of that
// timeout is converted to a transient error; the caller's own deadline or
// cancellation passes through untouched.
func (p *Pipeline) attempt(ctx context.Context, call func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	err := call(attemptCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &vferrors.TransientError{Err: context.DeadlineExceeded}
	}
	return err
}

// backoff returns the delay before retry n (n>=1): BaseDelay * 2^(n-1),
// optionally jittered uniformly within ±50%.
func (p *Pipeline) backoff(n int) time.Duration {
	delay := p.opts.BaseDelay * time.Duration(1<<(n-1))
	if !p.opts.Jitter {
		return delay
	}
	p.rngMu.Lock()
	factor := 0.5 + p.rng.Float64()
	p.rngMu.Unlock()
	return time.Duration(float64(delay) * factor)
}
