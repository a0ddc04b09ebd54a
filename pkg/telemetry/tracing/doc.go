// Package tracing exports engine passes as OpenTelemetry traces.
//
// A Tracer owns the OTLP gRPC exporter and sampler. Observer plugs into the
// engine as an engine.Observer and emits:
//
//   - an "engine.pass" span per ProcessState call, ended with the number of
//     results and whether any rule failed
//   - a "rule <name>" child span per executed rule, timed from the result
//     and marked as an error when the rule logic failed
//   - a "rule.skipped" event on the pass span per skipped rule, carrying the
//     skip reason
//
// A pass aborted by a guard failure ends its span with an error status.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	eng, err := engine.New(&engine.Config{
//	    Observer: engine.Observers(collector, tracing.NewObserver(tracer)),
//	}, source, logger)
package tracing
