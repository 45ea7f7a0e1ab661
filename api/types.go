package api

import (
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// SyncPrintersRequest carries the system printer names seen by discovery.
type SyncPrintersRequest struct {
	SystemNames []string `json:"system_names"`
}

// SyncPrintersResponse reports what a discovery sync changed.
type SyncPrintersResponse struct {
	Created     []*printer.Printer `json:"created"`
	Reactivated []*printer.Printer `json:"reactivated"`
	Unchanged   int                `json:"unchanged"`
}

// FailJobRequest is the body of POST /v1/jobs/{jobId}/fail.
type FailJobRequest struct {
	Error string `json:"error"`
}

// BatchRequest lists the label jobs to merge.
type BatchRequest struct {
	JobIDs []string `json:"job_ids"`
}

// PreviewRequest renders a template without printing it.
type PreviewRequest struct {
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// JobCountsResponse holds job counts per state.
type JobCountsResponse map[job.State]int64

// PrinterCounts summarizes the registry.
type PrinterCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Jobs        JobCountsResponse `json:"jobs"`
	Printers    PrinterCounts     `json:"printers"`
	ActiveTasks int               `json:"active_tasks"`
}
