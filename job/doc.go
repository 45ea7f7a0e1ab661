// Package job defines the print job entity, its state machine, naming and
// the store interface.
//
// # State Machine
//
//	draft → queued → printing → completed
//	                 printing → failed → queued (retry)
//	        queued → failed            (printer inactive or format unsupported)
//	{draft, queued, failed} → cancelled
//
// Completed and cancelled are terminal. A failed job becomes terminal once
// CompletedAt is set: after a permanent error or when the retry budget is
// exhausted. Every state change goes through [Job.Transition], which
// rejects edges not in the table with spool.ErrInvalidState.
//
// # Naming
//
// Job names are built by [Name] from the document type, the printer name
// and a sequence number issued by [Store.NextJobSequence]. They are unique,
// immutable and never derived from the job's ID.
//
// # Queue Order
//
// [CompareFIFO] defines the per-printer queue order: oldest submission
// first, priority as a tiebreak only among equal timestamps.
package job
