// Package middleware provides composable middleware for print deliveries.
//
// A [Middleware] is a function that wraps the call into a print sink.
// Middleware are composed into a chain using [Chain] and applied around
// each delivery the worker pool makes. They are applied right-to-left:
// the first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → timeout → sink
//	chain := middleware.Chain(
//	    middleware.Logging(logger),
//	    middleware.Recover(logger),
//	    middleware.Timeout(30*time.Second, logger),
//	)
//
// # Built-in Middleware
//
//   - [Logging] logs job, printer, duration and outcome of each delivery
//   - [Recover] catches sink panics and turns them into permanent errors
//   - [Timeout] bounds the sink call; an expired deadline is a transient failure
//   - [Tracing] wraps each delivery in an OpenTelemetry span
//   - [Metrics] records delivery duration and outcome counters
//   - [RateLimit] holds deliveries until the printer's throughput limits allow them
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
