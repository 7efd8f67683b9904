package resilience

import "time"

// Options tunes the per-destination fault-tolerance pipeline.
type Options struct {
	// MaxRetries is the number of additional attempts after the first
	// failure. Only transient failures consume retry budget.
	MaxRetries int

	// BaseDelay seeds the exponential backoff: the delay before retry n
	// is BaseDelay * 2^(n-1).
	BaseDelay time.Duration

	// Jitter perturbs each backoff delay uniformly within ±50% so
	// concurrent callers do not retry in lockstep.
	Jitter bool

	// RequestTimeout bounds one attempt's wall-clock duration. Expiry is
	// treated as a transient failure, unlike caller cancellation.
	RequestTimeout time.Duration

	// FailureThreshold is the consecutive-failure count at which a
	// destination's breaker opens.
	FailureThreshold int

	// BreakDuration is how long an open breaker rejects calls before
	// letting a half-open probe through.
	BreakDuration time.Duration
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:       3,
		BaseDelay:        1 * time.Second,
		Jitter:           true,
		RequestTimeout:   10 * time.Second,
		FailureThreshold: 5,
		BreakDuration:    30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = d.FailureThreshold
	}
	if o.BreakDuration <= 0 {
		o.BreakDuration = d.BreakDuration
	}
	return o
}
