package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal *prometheus.CounterVec
	retriesTotal       *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	fetchDuration      *prometheus.HistogramVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers the pipeline's Prometheus metrics. Call once at
// startup if metrics are wanted; without it all recording is a no-op.
func InitMetrics() {
	metricsOnce.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultfetch_fetch_attempts_total",
				Help: "Total remote fetch attempts, including retries",
			},
			[]string{"destination", "outcome"},
		)

		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultfetch_retries_total",
				Help: "Total backoff retries issued",
			},
			[]string{"destination"},
		)

		breakerState = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vaultfetch_breaker_state",
				Help: "Circuit breaker state per destination (0=closed, 1=open, 2=half-open)",
			},
			[]string{"destination"},
		)

		fetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vaultfetch_fetch_duration_seconds",
				Help:    "Duration of logical fetches including retries",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"destination"},
		)

		metricsRegistered = true
	})
}

func recordAttempt(destination, outcome string) {
	if !metricsRegistered || fetchAttemptsTotal == nil {
		return
	}
	fetchAttemptsTotal.WithLabelValues(destination, outcome).Inc()
}

func recordRetry(destination string) {
	if !metricsRegistered || retriesTotal == nil {
		return
	}
	retriesTotal.WithLabelValues(destination).Inc()
}

func recordBreakerState(destination string, s State) {
	if !metricsRegistered || breakerState == nil {
		return
	}
	breakerState.WithLabelValues(destination).Set(float64(s))
}

func recordDuration(destination string, seconds float64) {
	if !metricsRegistered || fetchDuration == nil {
		return
	}
	fetchDuration.WithLabelValues(destination).Observe(seconds)
}
