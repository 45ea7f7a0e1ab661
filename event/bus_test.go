package event_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/spool/event"
	"github.com/xraph/spool/id"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := event.NewBus(nil)
	ctx := context.Background()

	var got []*event.Event
	bus.Subscribe(event.KindPrinterActivated, "recorder", func(_ context.Context, evt *event.Event) error {
		got = append(got, evt)
		return nil
	})

	evt := event.New(event.KindPrinterActivated)
	evt.PrinterID = id.NewPrinterID()
	bus.Publish(ctx, evt)

	// Other kinds are not delivered.
	bus.Publish(ctx, event.New(event.KindPrinterDeactivated))

	if len(got) != 1 {
		t.Fatalf("handler called %d times, want 1", len(got))
	}
	if got[0].PrinterID != evt.PrinterID {
		t.Errorf("PrinterID = %s, want %s", got[0].PrinterID, evt.PrinterID)
	}
}

func TestBus_HandlerOrderAndErrors(t *testing.T) {
	bus := event.NewBus(nil)

	var calls []string
	bus.Subscribe(event.KindPrinterActivated, "first", func(context.Context, *event.Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	bus.Subscribe(event.KindPrinterActivated, "second", func(context.Context, *event.Event) error {
		calls = append(calls, "second")
		return nil
	})

	bus.Publish(context.Background(), event.New(event.KindPrinterActivated))

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls = %v, want [first second]", calls)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := event.NewBus(nil)

	count := 0
	unsub := bus.Subscribe(event.KindPrinterActivated, "counter", func(context.Context, *event.Event) error {
		count++
		return nil
	})

	bus.Publish(context.Background(), event.New(event.KindPrinterActivated))
	unsub()
	bus.Publish(context.Background(), event.New(event.KindPrinterActivated))

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
