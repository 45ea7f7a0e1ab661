package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/wire"
)

// submitJob accepts the same payload as the websocket job.submit method.
func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	var req wire.JobSubmitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	j, err := wire.Submit(r.Context(), a.svc, req, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	opts, err := jobListOpts(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobs, err := a.eng.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func jobListOpts(r *http.Request) (job.ListOpts, error) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		return job.ListOpts{}, err
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		return job.ListOpts{}, err
	}
	opts := job.ListOpts{
		State:  job.State(r.URL.Query().Get("state")),
		Limit:  defaultLimit(limit),
		Offset: offset,
	}
	if v := r.URL.Query().Get("printer_id"); v != "" {
		pid, err := id.ParsePrinterID(v)
		if err != nil {
			return job.ListOpts{}, fmt.Errorf("%w: invalid printer ID: %v", errBadRequest, err)
		}
		opts.PrinterID = pid
	}
	return opts, nil
}

func (a *API) jobCounts(w http.ResponseWriter, r *http.Request) {
	var printerID id.PrinterID
	if v := r.URL.Query().Get("printer_id"); v != "" {
		pid, err := id.ParsePrinterID(v)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid printer ID: %v", errBadRequest, err))
			return
		}
		printerID = pid
	}
	counts, err := a.countJobs(r.Context(), printerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

var countedStates = []job.State{
	job.StateDraft, job.StateQueued, job.StatePrinting,
	job.StateCompleted, job.StateFailed, job.StateCancelled,
}

func (a *API) countJobs(ctx context.Context, printerID id.PrinterID) (JobCountsResponse, error) {
	counts := make(JobCountsResponse, len(countedStates))
	for _, state := range countedStates {
		n, err := a.eng.Store().CountJobs(ctx, job.CountOpts{State: state, PrinterID: printerID})
		if err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, nil
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	j, err := a.eng.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// processJob claims and delivers a single queued job.
func (a *API) processJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	j, err := a.eng.Process(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// completeJob is the acknowledgement path for externally driven printers.
func (a *API) completeJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	j, err := a.eng.MarkCompleted(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (a *API) failJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req FailJobRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	j, err := a.eng.MarkFailed(r.Context(), jobID, req.Error)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (a *API) retryJob(w http.ResponseWriter, r *http.Request) {
	a.jobAction(w, r, a.eng.Retry)
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	a.jobAction(w, r, a.eng.Cancel)
}

// jobAction runs a boolean lifecycle action and reports the job's
// resulting state.
func (a *API) jobAction(w http.ResponseWriter, r *http.Request, action func(context.Context, id.JobID) (bool, error)) {
	jobID, err := jobIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ok, err := action(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	j, err := a.eng.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.JobActionResponse{JobID: jobID.String(), OK: ok, State: string(j.State)})
}
