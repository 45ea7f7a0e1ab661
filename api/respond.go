package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/spool/id"
	"github.com/xraph/spool/wire"
)

// errBadRequest marks malformed requests (bad JSON, bad IDs).
var errBadRequest = errors.New("bad request")

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status: 400 malformed, 422 validation, 404 not
// found, 409 state conflicts, 500 otherwise.
func writeError(w http.ResponseWriter, err error) {
	status := wire.ErrorCode(err)
	if errors.Is(err, errBadRequest) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, apiError{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}

func jobIDParam(r *http.Request) (id.JobID, error) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobId"))
	if err != nil {
		return id.JobID{}, fmt.Errorf("%w: invalid job ID: %v", errBadRequest, err)
	}
	return jobID, nil
}

func printerIDParam(r *http.Request) (id.PrinterID, error) {
	pid, err := id.ParsePrinterID(chi.URLParam(r, "printerId"))
	if err != nil {
		return id.PrinterID{}, fmt.Errorf("%w: invalid printer ID: %v", errBadRequest, err)
	}
	return pid, nil
}

// intQuery parses an optional non-negative integer query parameter.
func intQuery(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}
	return n, nil
}

// defaultLimit caps unpaginated list calls.
func defaultLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
