// Package ext defines the extension system for spool.
//
// Extensions are notified of print lifecycle events and can react to
// them: recording metrics, writing audit logs, alerting administrators.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s printed in %s", j.Name, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobSubmitted]: job was queued (possibly for an offline printer)
//   - [JobPrinting]: job was claimed and handed to the print sink
//   - [JobCompleted]: the sink reported a successful print
//   - [JobFailed]: job failed permanently
//   - [JobRetrying]: job failed transiently and was re-queued
//   - [JobExhausted]: job failed after using every retry
//   - [JobCancelled]: job was cancelled or merged into a batch
//   - [JobBatched]: label jobs were merged into a batch job
//
// # Other Hooks
//
//   - [PrinterStatusChanged]: a printer went online or offline
//   - [QueueProcessed]: a queue processing pass finished
//   - [Shutdown]: the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
