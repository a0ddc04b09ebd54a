// Package health provides liveness and readiness endpoints for long-running
// rulekeeper commands (watch and schedule).
//
// # Endpoints
//
//   - /health: liveness, always 200 while the process runs
//   - /ready: readiness, 503 when any registered check fails
//   - /version: build information
//
// # Usage
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("rules", health.RulesLoadedCheck(current))
//
//	tracker := health.NewPassTracker()
//	checker.RegisterCheck("last_pass", tracker.Check(10*time.Minute))
//
//	mux := http.NewServeMux()
//	health.Register(mux, checker, version, commit, buildTime)
//
// PassTracker is an engine.Observer; install it next to the metrics
// collector with engine.Observers.
package health
