package ipp_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goipp "github.com/OpenPrinting/goipp"

	"github.com/xraph/spool/job"
	"github.com/xraph/spool/sink"
	"github.com/xraph/spool/sink/ipp"
)

type received struct {
	msg  goipp.Message
	body []byte
}

// printerServer answers every Print-Job with status.
func printerServer(t *testing.T, status goipp.Status) (*httptest.Server, <-chan received) {
	t.Helper()

	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req goipp.Message
		if err := req.Decode(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		got <- received{msg: req, body: body}

		w.Header().Set("Content-Type", goipp.ContentType)
		resp := goipp.NewResponse(goipp.DefaultVersion, status, req.RequestID)
		_ = resp.Encode(w)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func attr(attrs goipp.Attributes, name string) string {
	for _, a := range attrs {
		if a.Name == name && len(a.Values) > 0 {
			return a.Values[0].V.String()
		}
	}
	return ""
}

func TestSendPrintJob(t *testing.T) {
	t.Parallel()

	srv, got := printerServer(t, goipp.StatusOk)

	err := ipp.New().Send(context.Background(), &sink.Request{
		JobName: "invoice-laser-00007",
		Printer: "laser",
		Address: srv.URL + "/ipp/print",
		Format:  job.FormatPDF,
		Copies:  2,
		User:    "alice",
		Data:    []byte("%PDF-1.7"),
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	r := <-got
	if op := goipp.Op(r.msg.Code); op != goipp.OpPrintJob {
		t.Errorf("operation = %v, want Print-Job", op)
	}
	if v := attr(r.msg.Operation, "job-name"); v != "invoice-laser-00007" {
		t.Errorf("job-name = %q", v)
	}
	if v := attr(r.msg.Operation, "requesting-user-name"); v != "alice" {
		t.Errorf("requesting-user-name = %q", v)
	}
	if v := attr(r.msg.Operation, "document-format"); v != "application/pdf" {
		t.Errorf("document-format = %q", v)
	}
	if v := attr(r.msg.Operation, "printer-uri"); !strings.HasPrefix(v, "ipp://") {
		t.Errorf("printer-uri = %q, want ipp:// scheme", v)
	}
	if v := attr(r.msg.Job, "copies"); v != "2" {
		t.Errorf("copies = %q", v)
	}
	if string(r.body) != "%PDF-1.7" {
		t.Errorf("document = %q", r.body)
	}
}

func TestSendStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    goipp.Status
		transient bool
	}{
		{"busy", goipp.StatusErrorBusy, true},
		{"not accepting", goipp.StatusErrorNotAcceptingJobs, true},
		{"bad request", goipp.StatusErrorBadRequest, false},
		{"forbidden", goipp.StatusErrorForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := printerServer(t, tt.status)
			err := ipp.New().Send(context.Background(), &sink.Request{
				Printer: "laser",
				Address: srv.URL,
				Format:  job.FormatPDF,
				Data:    []byte("%PDF"),
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := sink.IsTransient(err); got != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, got, tt.transient)
			}
		})
	}
}

func TestSendUnreachableIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	err := ipp.New().Send(context.Background(), &sink.Request{Printer: "laser", Address: addr, Data: []byte("x")})
	if !sink.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address  string
		uri      string
		endpoint string
		wantErr  bool
	}{
		{"ipp://printer.local/ipp/print", "ipp://printer.local:631/ipp/print", "http://printer.local:631/ipp/print", false},
		{"ipps://printer.local:443/ipp", "ipps://printer.local:443/ipp", "https://printer.local:443/ipp", false},
		{"http://10.0.0.9:8631", "ipp://10.0.0.9:8631/ipp/print", "http://10.0.0.9:8631/ipp/print", false},
		{"ftp://printer.local", "", "", true},
		{"printer.local", "", "", true},
	}

	for _, tt := range tests {
		uri, endpoint, err := ipp.Endpoint(tt.address)
		if (err != nil) != tt.wantErr {
			t.Errorf("Endpoint(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			continue
		}
		if uri != tt.uri || endpoint != tt.endpoint {
			t.Errorf("Endpoint(%q) = (%q, %q), want (%q, %q)", tt.address, uri, endpoint, tt.uri, tt.endpoint)
		}
	}
}

func TestMimeType(t *testing.T) {
	t.Parallel()

	if got := ipp.MimeType(job.FormatZPL); got != "application/octet-stream" {
		t.Errorf("zpl mime = %q", got)
	}
	if got := ipp.MimeType(job.FormatHTML); got != "text/html" {
		t.Errorf("html mime = %q", got)
	}
}

func stateServer(t *testing.T, state int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req goipp.Message
		if err := req.Decode(r.Body); err != nil || goipp.Op(req.Code) != goipp.OpGetPrinterAttributes {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", goipp.ContentType)
		resp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, req.RequestID)
		resp.Printer.Add(goipp.MakeAttribute("printer-state", goipp.TagEnum, goipp.Integer(state)))
		_ = resp.Encode(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		state   int
		wantErr bool
	}{
		{"idle", 3, false},
		{"processing", 4, false},
		{"stopped", 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := stateServer(t, tt.state)
			err := ipp.New().Probe(context.Background(), srv.URL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Probe error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProbeUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	if err := ipp.New().Probe(context.Background(), addr); err == nil {
		t.Fatal("expected probe of a closed server to fail")
	}
}
