package sink_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xraph/spool/sink"
	"github.com/xraph/spool/sink/memory"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"transient kind", sink.NewTransient("dial", "zebra", errors.New("refused")), true},
		{"permanent kind", sink.NewPermanent("print-job", "zebra", errors.New("bad request")), false},
		{"wrapped transient", fmt.Errorf("deliver: %w", sink.NewTransient("dial", "zebra", nil)), true},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), true},
		{"cancelled", context.Canceled, true},
		{"keyword busy", errors.New("device busy"), true},
		{"keyword network", errors.New("Network is unreachable"), true},
		{"plain", errors.New("paper jam"), false},
		// Kind wins over the message keywords.
		{"permanent with keyword", sink.NewPermanent("post", "zebra", errors.New("connection reset")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := sink.IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v", got, tt.transient)
			}
			if tt.err != nil {
				if got := sink.IsPermanent(tt.err); got == tt.transient {
					t.Errorf("IsPermanent = %v, want %v", got, !tt.transient)
				}
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	transient := sink.NewTransient("dial", "zebra", errors.New("refused"))
	if got, want := transient.Error(), "printer zebra unavailable: dial: refused"; got != want {
		t.Errorf("transient message = %q, want %q", got, want)
	}

	permanent := sink.NewPermanent("print-job", "laser", errors.New("ipp status bad"))
	if got, want := permanent.Error(), "printer laser rejected job: print-job: ipp status bad"; got != want {
		t.Errorf("permanent message = %q, want %q", got, want)
	}

	var se *sink.Error
	if !errors.As(permanent, &se) || se.Kind != sink.Permanent {
		t.Errorf("errors.As did not yield a permanent *sink.Error")
	}
}

func TestScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    string
	}{
		{"", ""},
		{"  ", ""},
		{"10.0.0.5", "socket"},
		{"10.0.0.5:9100", "socket"},
		{"socket://10.0.0.5", "socket"},
		{"ipp://printer.local/ipp/print", "ipp"},
		{"IPPS://printer.local", "ipps"},
		{"http://printer.local:631/ipp", "http"},
		{"file:///var/spool/labels", "file"},
	}

	for _, tt := range tests {
		if got := sink.Scheme(tt.address); got != tt.want {
			t.Errorf("Scheme(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestRouter(t *testing.T) {
	t.Parallel()

	raw := memory.New()
	ipp := memory.New()
	agent := memory.New()

	r := sink.NewRouter().
		Handle(raw, "socket").
		Handle(ipp, "ipp", "ipps").
		Fallback(agent)

	ctx := context.Background()
	for _, addr := range []string{"10.0.0.5:9100", "ipp://p/ipp/print", "", "ftp://nowhere"} {
		if err := r.Send(ctx, &sink.Request{Printer: "p", Address: addr}); err != nil {
			t.Fatalf("Send(%q): %v", addr, err)
		}
	}

	if raw.Count() != 1 {
		t.Errorf("socket sink got %d requests, want 1", raw.Count())
	}
	if ipp.Count() != 1 {
		t.Errorf("ipp sink got %d requests, want 1", ipp.Count())
	}
	if agent.Count() != 2 {
		t.Errorf("fallback sink got %d requests, want 2", agent.Count())
	}
}

func TestRouterNoSink(t *testing.T) {
	t.Parallel()

	err := sink.NewRouter().Send(context.Background(), &sink.Request{Printer: "p", Address: "ipp://p"})
	if !sink.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no sink") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestFunc(t *testing.T) {
	t.Parallel()

	var got string
	s := sink.Func(func(_ context.Context, req *sink.Request) error {
		got = req.JobName
		return nil
	})
	if err := s.Send(context.Background(), &sink.Request{JobName: "label-zebra-00001"}); err != nil {
		t.Fatal(err)
	}
	if got != "label-zebra-00001" {
		t.Errorf("got %q", got)
	}
}
