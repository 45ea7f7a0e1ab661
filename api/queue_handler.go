package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/printer"
)

// processQueue runs one pass over every active printer's queue.
func (a *API) processQueue(w http.ResponseWriter, r *http.Request) {
	sum, err := a.eng.Processor().ProcessQueue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) batchJobs(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.JobIDs) == 0 {
		writeError(w, spool.NewValidationError("job_ids", "at least one job is required"))
		return
	}

	ids := make([]id.JobID, 0, len(req.JobIDs))
	for _, s := range req.JobIDs {
		jobID, err := id.ParseJobID(s)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid job ID %q: %v", errBadRequest, s, err))
			return
		}
		ids = append(ids, jobID)
	}

	merged, err := a.eng.Batch(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, merged)
}

func (a *API) preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Template == "" {
		writeError(w, spool.NewValidationError("template", "template is required"))
		return
	}
	p, err := a.svc.Preview(r.Context(), req.Template, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.countJobs(r.Context(), id.PrinterID{})
	if err != nil {
		writeError(w, err)
		return
	}

	printers, err := a.eng.Printers().List(r.Context(), printer.ListOpts{})
	if err != nil {
		writeError(w, err)
		return
	}
	pc := PrinterCounts{Total: len(printers)}
	for _, p := range printers {
		if p.Active {
			pc.Active++
		}
	}

	resp := StatsResponse{Jobs: counts, Printers: pc}
	if pool := a.eng.Pool(); pool != nil {
		resp.ActiveTasks = pool.Active()
	}
	writeJSON(w, http.StatusOK, resp)
}
