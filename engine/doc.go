// Package engine wires the spool subsystems together and owns the print
// job lifecycle: submission, processing, completion, failure, retry and
// cancellation.
//
// This package exists to break the import cycle: the root spool package
// defines Entity and the error taxonomy (imported by job, printer, etc.)
// and so cannot import those packages back. The engine package sits above
// all subsystem packages and below the application layer.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithStore(pgStore),
//	    engine.WithConfig(cfg),
//	    engine.WithSink(sink.NewRouter().
//	        Handle(socket.New(), "socket").
//	        Handle(ipp.New(), "ipp", "ipps", "http", "https")),
//	    engine.WithRenderer(templates),
//	    engine.WithExtension(notify.NewExtension(mailSink, cfg)),
//	)
//
// Without a sink the engine runs in agent mode: Process moves jobs to
// printing and waits for a print agent to call MarkCompleted or
// MarkFailed.
//
// # Lifecycle
//
//	j, err := eng.Submit(ctx, &job.Job{PrinterID: p.ID, Format: job.FormatZPL, Copies: 1, Data: zpl})
//	j, err = eng.Process(ctx, j.ID)       // queued → printing, delivered by the pool
//	j, err = eng.MarkCompleted(ctx, j.ID) // printing → completed
//
// MarkFailed routes transient failures through the retry policy and
// finalizes permanent ones. Retry can also be called explicitly on a
// failed job.
//
// # Queue processing
//
// The [Processor] drains each active printer's queue in FIFO order,
// merging label jobs into batches on label printers. It runs on
// Config.ProcessSchedule and whenever a printer is activated, draining
// only that printer.
//
// # Options
//
//   - [WithStore]: persistence backend (required)
//   - [WithConfig]: retry, notification and scheduling settings
//   - [WithSink]: print sink used by the delivery pool
//   - [WithRenderer]: template renderer for template-only jobs
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the delivery chain
//   - [WithQueueConfig]: per-printer concurrency and rate limits
//   - [WithBackoff]: replace the retry backoff strategy
//   - [WithTracerProvider], [WithMeterProvider]: OpenTelemetry providers
package engine
