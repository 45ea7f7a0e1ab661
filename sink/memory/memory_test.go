package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/spool/sink"
	"github.com/xraph/spool/sink/memory"
)

func TestRecordsAndFails(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailNext(boom)
	s.FailPrinter("zebra", sink.NewTransient("dial", "zebra", nil))

	if err := s.Send(ctx, &sink.Request{Printer: "laser", Data: []byte("a")}); !errors.Is(err, boom) {
		t.Fatalf("first send: got %v, want boom", err)
	}
	if err := s.Send(ctx, &sink.Request{Printer: "laser", Data: []byte("b")}); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if err := s.Send(ctx, &sink.Request{Printer: "zebra"}); !sink.IsTransient(err) {
		t.Fatalf("zebra send: got %v, want transient", err)
	}

	reqs := s.Requests()
	if len(reqs) != 3 {
		t.Fatalf("recorded %d requests, want 3", len(reqs))
	}
	if string(reqs[1].Data) != "b" {
		t.Errorf("second payload = %q", reqs[1].Data)
	}

	s.FailPrinter("zebra", nil)
	if err := s.Send(ctx, &sink.Request{Printer: "zebra"}); err != nil {
		t.Errorf("cleared failure still returned %v", err)
	}

	s.Reset()
	if s.Count() != 0 {
		t.Errorf("Count after Reset = %d", s.Count())
	}
}
