package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/rulekeeper/pkg/config"
)

// Pass statuses.
const (
	PassOK       = "ok"
	PassFailures = "failures"
	PassAborted  = "aborted"
)

// PassMetrics tracks whole passes over a state.
//
// Metrics:
//   - rulekeeper_engine_passes_total: Passes by status (ok, failures, aborted)
//   - rulekeeper_engine_pass_duration_seconds: Pass duration
//   - rulekeeper_engine_pass_results: Results recorded by the last pass
//   - rulekeeper_engine_passes_in_flight: Passes currently running
//   - rulekeeper_engine_rules_loaded: Rules in the current engine
type PassMetrics struct {
	passesTotal *prometheus.CounterVec
	duration    prometheus.Histogram
	results     prometheus.Gauge
	inFlight    prometheus.Gauge
	rulesLoaded prometheus.Gauge
}

// NewPassMetrics creates and registers pass metrics with the provided registry.
func NewPassMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PassMetrics {
	pm := &PassMetrics{
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "passes_total",
				Help:      "Total number of engine passes by status",
			},
			[]string{"status"},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pass_duration_seconds",
				Help:      "Duration of engine passes in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
			},
		),

		results: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pass_results",
				Help:      "Number of results recorded by the most recent pass",
			},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "passes_in_flight",
				Help:      "Number of passes currently running",
			},
		),

		rulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_loaded",
				Help:      "Number of rules loaded by the current engine",
			},
		),
	}

	registry.MustRegister(
		pm.passesTotal,
		pm.duration,
		pm.results,
		pm.inFlight,
		pm.rulesLoaded,
	)

	return pm
}

// Started marks a pass as running.
func (pm *PassMetrics) Started() {
	pm.inFlight.Inc()
}

// Completed records a finished pass.
func (pm *PassMetrics) Completed(status string, results int, duration time.Duration) {
	pm.inFlight.Dec()
	pm.passesTotal.WithLabelValues(status).Inc()
	pm.duration.Observe(duration.Seconds())
	pm.results.Set(float64(results))
}

// SetRulesLoaded records the size of the current rule set.
func (pm *PassMetrics) SetRulesLoaded(n int) {
	pm.rulesLoaded.Set(float64(n))
}
