package redis

// Redis key naming conventions for spool data.
// All keys are prefixed with "spool:" to avoid collisions.

const keyPrefix = "spool:"

// ── Job keys ──

// jobKey returns the Hash key for a job entity: spool:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is a Sorted Set of all job IDs, every member scored 0 so the
// set orders lexicographically, which for TypeIDs is creation order.
const jobIDsKey = keyPrefix + "job_ids"

// jobNamesKey maps job names to IDs for uniqueness.
const jobNamesKey = keyPrefix + "job_names"

// jobSeqKey is the counter behind NextJobSequence.
const jobSeqKey = keyPrefix + "job_seq"

// queuedKey returns the Set of a printer's queued job IDs: spool:queued:{printerID}
func queuedKey(printerID string) string { return keyPrefix + "queued:" + printerID }

// printerJobsKey returns the Set of every job ID on a printer.
func printerJobsKey(printerID string) string { return keyPrefix + "printer_jobs:" + printerID }

// ── Printer keys ──

// printerKey returns the Hash key for a printer entity: spool:printer:{id}
func printerKey(id string) string { return keyPrefix + "printer:" + id }

// printerIDsKey is the Set tracking all printer IDs for enumeration.
const printerIDsKey = keyPrefix + "printer_ids"

// printerNamesKey maps printer names to IDs for uniqueness and lookup.
const printerNamesKey = keyPrefix + "printer_names"
