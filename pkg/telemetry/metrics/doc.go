// Package metrics exposes engine activity as Prometheus metrics.
//
// # Overview
//
// Collector implements engine.Observer. Installed on an engine it counts
// rule executions and skips, times rule logic and whole passes, and tracks
// how many rules the current engine loaded.
//
// # Metrics
//
//   - <ns>_<sub>_rule_executions_total{rule,status}
//   - <ns>_<sub>_rule_duration_seconds{rule}
//   - <ns>_<sub>_rule_skips_total{rule,reason}
//   - <ns>_<sub>_passes_total{status}
//   - <ns>_<sub>_pass_duration_seconds
//   - <ns>_<sub>_pass_results
//   - <ns>_<sub>_passes_in_flight
//   - <ns>_<sub>_rules_loaded
//
// Rule names past the cardinality limit are reported as "_other".
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Metrics, nil)
//	eng, err := engine.New(&engine.Config{Observer: collector}, source, logger)
//	...
//	mux.Handle("/metrics", collector.Handler())
package metrics
