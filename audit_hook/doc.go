// Package audithook is a spool extension that bridges print lifecycle
// events to an audit trail backend.
//
// Every job, printer and queue hook emits a structured audit event through
// the [Recorder] interface. Severity follows the outcome: info for normal
// operations, warning for retries and cancellations, critical for
// exhausted jobs. The submitting user becomes the event's actor.
//
// # Logging to slog
//
//	audithook.New(audithook.LogRecorder(logger))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobExhausted,
//	        audithook.ActionPrinterStatusChanged,
//	    ),
//	)
package audithook
