// Package server provides the admin HTTP server exposing metrics and
// health probes for long-running rulekeeper commands.
//
// The server wraps a caller-supplied handler in a middleware chain:
//
//	RecoveryMiddleware -> RequestIDMiddleware -> LoggingMiddleware -> handler
//
// # Basic Usage
//
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", collector.Handler())
//	health.Register(mux, checker, version, commit, buildTime)
//
//	srv, err := server.NewServer(&server.Config{ListenAddress: ":9090"}, mux, logger)
//	if err != nil {
//	    return err
//	}
//	go srv.Start(ctx) // returns after ctx is cancelled and shutdown completes
//
// # Request IDs
//
// Every response carries an X-Request-ID header. A client-supplied value is
// kept; otherwise a UUID is generated. Handlers read it with GetRequestID.
package server
