package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobSubmitted         = "job.submitted"
	ActionJobPrinting          = "job.printing"
	ActionJobCompleted         = "job.completed"
	ActionJobFailed            = "job.failed"
	ActionJobRetrying          = "job.retrying"
	ActionJobExhausted         = "job.exhausted"
	ActionJobCancelled         = "job.cancelled"
	ActionJobBatched           = "job.batched"
	ActionPrinterStatusChanged = "printer.status_changed"
	ActionQueueProcessed       = "queue.processed"
)

// Audit event categories group related actions.
const (
	CategoryJob     = "spool.job"
	CategoryPrinter = "spool.printer"
	CategoryQueue   = "spool.queue"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob     = "print_job"
	ResourcePrinter = "printer"
	ResourceQueue   = "queue"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobSubmitted,
		ActionJobPrinting,
		ActionJobCompleted,
		ActionJobFailed,
		ActionJobRetrying,
		ActionJobExhausted,
		ActionJobCancelled,
		ActionJobBatched,
		ActionPrinterStatusChanged,
		ActionQueueProcessed,
	}
}
