// Package telemetry groups rulekeeper's observability packages.
//
// # Components
//
//   - logging: builds the injected *slog.Logger from configuration
//   - metrics: Prometheus collector installed as an engine.Observer
//   - tracing: OpenTelemetry spans per pass and per executed rule
//   - health: liveness and readiness endpoints for long-running commands
//
// The metrics, tracing and health observers are combined with
// engine.Observers and passed through engine.Config.Observer.
package telemetry
