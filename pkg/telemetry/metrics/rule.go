package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/rulekeeper/pkg/config"
)

// RuleMetrics tracks per-rule outcomes.
//
// Metrics:
//   - rulekeeper_engine_rule_executions_total: Rule runs by rule and status
//   - rulekeeper_engine_rule_duration_seconds: Rule logic duration
//   - rulekeeper_engine_rule_skips_total: Skipped rules by rule and reason
type RuleMetrics struct {
	executionsTotal *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	skipsTotal      *prometheus.CounterVec
}

// NewRuleMetrics creates and registers rule metrics with the provided registry.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_executions_total",
				Help:      "Total number of rule executions",
			},
			[]string{"rule", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_duration_seconds",
				Help:      "Duration of rule logic in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"rule"},
		),

		skipsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_skips_total",
				Help:      "Total number of rules skipped by requirements or guard",
			},
			[]string{"rule", "reason"},
		),
	}

	registry.MustRegister(
		rm.executionsTotal,
		rm.duration,
		rm.skipsTotal,
	)

	return rm
}

// RecordExecution records one rule run. status is "success" or "error".
func (rm *RuleMetrics) RecordExecution(rule, status string, duration time.Duration) {
	rm.executionsTotal.WithLabelValues(rule, status).Inc()
	rm.duration.WithLabelValues(rule).Observe(duration.Seconds())
}

// RecordSkip records a rule that did not run.
func (rm *RuleMetrics) RecordSkip(rule, reason string) {
	rm.skipsTotal.WithLabelValues(rule, reason).Inc()
}
