package api

import (
	"net/http"

	"github.com/xraph/spool/printer"
)

func (a *API) listPrinters(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	printers, err := a.eng.Printers().List(r.Context(), printer.ListOpts{
		Type:       printer.Type(q.Get("type")),
		ActiveOnly: q.Get("active") == "true",
		Limit:      defaultLimit(limit),
		Offset:     offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if printers == nil {
		printers = []*printer.Printer{}
	}
	writeJSON(w, http.StatusOK, printers)
}

// createPrinter decodes the body over printer.New defaults, so omitted
// capability fields keep their standard values.
func (a *API) createPrinter(w http.ResponseWriter, r *http.Request) {
	p := printer.New("", "")
	if err := decodeBody(r, p); err != nil {
		writeError(w, err)
		return
	}

	created, err := a.eng.Printers().Register(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getPrinter(w http.ResponseWriter, r *http.Request) {
	pid, err := printerIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := a.eng.Printers().Get(r.Context(), pid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updatePrinter(w http.ResponseWriter, r *http.Request) {
	pid, err := printerIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := a.eng.Printers().Get(r.Context(), pid)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := decodeBody(r, p); err != nil {
		writeError(w, err)
		return
	}
	p.ID = pid

	updated, err := a.eng.Printers().Update(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deletePrinter(w http.ResponseWriter, r *http.Request) {
	pid, err := printerIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.eng.Printers().Delete(r.Context(), pid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) activatePrinter(w http.ResponseWriter, r *http.Request) {
	a.setActive(w, r, true)
}

func (a *API) deactivatePrinter(w http.ResponseWriter, r *http.Request) {
	a.setActive(w, r, false)
}

func (a *API) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	pid, err := printerIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, _, err := a.eng.Printers().SetActive(r.Context(), pid, active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) drainPrinter(w http.ResponseWriter, r *http.Request) {
	pid, err := printerIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sum, err := a.eng.Processor().DrainPrinter(r.Context(), pid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) syncPrinters(w http.ResponseWriter, r *http.Request) {
	var req SyncPrintersRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.eng.Printers().Sync(r.Context(), req.SystemNames)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncPrintersResponse{
		Created:     nonNil(res.Created),
		Reactivated: nonNil(res.Reactivated),
		Unchanged:   len(res.Unchanged),
	})
}

// selectPrinter resolves the printer a job would be routed to. An explicit
// printer query parameter wins over document type, location and department.
func (a *API) selectPrinter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		p   *printer.Printer
		err error
	)
	if ref := q.Get("printer"); ref != "" {
		p, err = a.eng.Printers().SelectExplicit(r.Context(), ref)
	} else {
		p, err = a.svc.PrinterFor(r.Context(), q.Get("document_type"), q.Get("location"), q.Get("department"))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func nonNil(ps []*printer.Printer) []*printer.Printer {
	if ps == nil {
		return []*printer.Printer{}
	}
	return ps
}
