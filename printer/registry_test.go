package printer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/spool"
	"github.com/xraph/spool/event"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recordingPublisher) Publish(_ context.Context, evt *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingPublisher) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func newPrinter(name string, t printer.Type, priority int) *printer.Printer {
	p := printer.New(name, t)
	p.ID = id.NewPrinterID()
	p.Priority = priority
	return p
}

func TestBestPrefersHigherPriority(t *testing.T) {
	low := newPrinter("low", printer.TypeReceipt, 5)
	high := newPrinter("high", printer.TypeReceipt, 20)

	for _, order := range [][]*printer.Printer{{low, high}, {high, low}} {
		got := printer.Best(order, printer.Criteria{Type: printer.TypeReceipt})
		if got != high {
			t.Fatalf("Best = %v, want %q", got.Name, high.Name)
		}
	}
}

func TestBestDefaultBeatsPriority(t *testing.T) {
	busy := newPrinter("busy", printer.TypeDocument, 9000)
	def := newPrinter("default", printer.TypeDocument, 0)
	def.IsDefault = true

	got := printer.Best([]*printer.Printer{busy, def}, printer.Criteria{Type: printer.TypeDocument})
	if got != def {
		t.Fatalf("Best = %q, want %q", got.Name, def.Name)
	}
}

func TestBestLocationAndDepartment(t *testing.T) {
	front := newPrinter("front", printer.TypeReceipt, 10)
	front.Location = "front"
	back := newPrinter("back", printer.TypeReceipt, 50)
	back.Location = "back"
	roaming := newPrinter("roaming", printer.TypeReceipt, 10)
	sales := newPrinter("sales", printer.TypeReceipt, 10)
	sales.Location = "front"
	sales.Department = "sales"

	tests := []struct {
		name string
		c    printer.Criteria
		want *printer.Printer
	}{
		{"location match beats priority", printer.Criteria{Location: "front"}, front},
		{"department match", printer.Criteria{Location: "front", Department: "sales"}, sales},
		{"unassigned serves unknown location", printer.Criteria{Location: "warehouse"}, roaming},
	}
	all := []*printer.Printer{front, back, roaming, sales}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := printer.Best(all, tt.c)
			if got != tt.want {
				t.Fatalf("Best = %q, want %q", got.Name, tt.want.Name)
			}
		})
	}
}

func TestBestTieGoesToLowestID(t *testing.T) {
	a := newPrinter("a", printer.TypeLabel, 10)
	b := newPrinter("b", printer.TypeLabel, 10)
	want := a
	if b.ID.Compare(a.ID) < 0 {
		want = b
	}

	for _, order := range [][]*printer.Printer{{a, b}, {b, a}} {
		if got := printer.Best(order, printer.Criteria{Type: printer.TypeLabel}); got != want {
			t.Fatalf("Best = %q, want %q", got.Name, want.Name)
		}
	}
}

func TestBestFallsBackToAnyActive(t *testing.T) {
	doc := newPrinter("doc", printer.TypeDocument, 3)
	other := newPrinter("other", printer.TypeOther, 7)
	off := newPrinter("off", printer.TypeOther, 100)
	off.Active = false

	got := printer.Best([]*printer.Printer{doc, other, off}, printer.Criteria{Type: printer.TypeLabel})
	if got != other {
		t.Fatalf("Best = %v, want %q", got, other.Name)
	}

	if got := printer.Best([]*printer.Printer{off}, printer.Criteria{}); got != nil {
		t.Fatalf("Best = %q, want nil", got.Name)
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name string
		want printer.Type
	}{
		{"EPSON_TM-T88V", printer.TypeReceipt},
		{"front-pos-1", printer.TypeReceipt},
		{"Thermal Printer", printer.TypeReceipt},
		{"Zebra_ZT410", printer.TypeLabel},
		{"barcode-2", printer.TypeLabel},
		{"HP_LaserJet", printer.TypeDocument},
		{"Office Inkjet", printer.TypeDocument},
		{"plotter", printer.TypeOther},
	}
	for _, tt := range tests {
		if got := printer.InferType(tt.name); got != tt.want {
			t.Errorf("InferType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDiscoveredCapabilities(t *testing.T) {
	label := printer.Discovered("zebra-1")
	if !label.SupportsZPL || label.SupportsESCPOS {
		t.Fatalf("label printer: zpl=%v escpos=%v", label.SupportsZPL, label.SupportsESCPOS)
	}
	receipt := printer.Discovered("receipt-1")
	if !receipt.SupportsESCPOS || receipt.SupportsZPL {
		t.Fatalf("receipt printer: zpl=%v escpos=%v", receipt.SupportsZPL, receipt.SupportsESCPOS)
	}
	if receipt.SystemName != "receipt-1" {
		t.Fatalf("SystemName = %q", receipt.SystemName)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	reg := printer.NewRegistry(memory.New())

	tests := []struct {
		name string
		p    *printer.Printer
	}{
		{"empty name", printer.New("  ", printer.TypeOther)},
		{"negative priority", func() *printer.Printer {
			p := printer.New("p", printer.TypeOther)
			p.Priority = -1
			return p
		}()},
		{"unknown type", printer.New("p", printer.Type("fax"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Register(ctx, tt.p); !spool.IsValidation(err) {
				t.Fatalf("Register error = %v, want validation error", err)
			}
		})
	}

	if _, err := reg.Register(ctx, printer.New("dup", printer.TypeOther)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Register(ctx, printer.New("dup", printer.TypeOther)); !errors.Is(err, spool.ErrPrinterExists) {
		t.Fatalf("duplicate Register error = %v, want ErrPrinterExists", err)
	}
}

func TestSetActivePublishesOnFlip(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	reg := printer.NewRegistry(memory.New(), printer.WithPublisher(pub))

	p, err := reg.Register(ctx, printer.New("flip", printer.TypeReceipt))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Already active: no event.
	if _, evt, err := reg.SetActive(ctx, p.ID, true); err != nil || evt != nil {
		t.Fatalf("no-op SetActive = (%v, %v)", evt, err)
	}

	_, evt, err := reg.SetActive(ctx, p.ID, false)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if evt == nil || evt.Kind != event.KindPrinterDeactivated {
		t.Fatalf("deactivate event = %v", evt)
	}

	got, evt, err := reg.SetActive(ctx, p.ID, true)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !got.Active {
		t.Fatal("printer not active after SetActive(true)")
	}
	if evt == nil || evt.Kind != event.KindPrinterActivated || evt.PrinterID != p.ID {
		t.Fatalf("activate event = %+v", evt)
	}

	kinds := pub.kinds()
	if len(kinds) != 2 || kinds[0] != event.KindPrinterDeactivated || kinds[1] != event.KindPrinterActivated {
		t.Fatalf("published kinds = %v", kinds)
	}
}

func TestSelectExplicit(t *testing.T) {
	ctx := context.Background()
	reg := printer.NewRegistry(memory.New())

	p, err := reg.Register(ctx, printer.New("desk", printer.TypeDocument))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, ref := range []string{p.ID.String(), "desk"} {
		got, selErr := reg.SelectExplicit(ctx, ref)
		if selErr != nil || got.ID != p.ID {
			t.Fatalf("SelectExplicit(%q) = (%v, %v)", ref, got, selErr)
		}
	}

	if _, err := reg.SelectExplicit(ctx, "missing"); !errors.Is(err, spool.ErrPrinterNotFound) {
		t.Fatalf("missing printer error = %v", err)
	}

	if _, _, err := reg.SetActive(ctx, p.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := reg.SelectExplicit(ctx, "desk"); !errors.Is(err, spool.ErrPrinterInactive) {
		t.Fatalf("inactive printer error = %v", err)
	}
	if _, err := reg.Select(ctx, printer.Criteria{}); !errors.Is(err, spool.ErrNoPrinterAvailable) {
		t.Fatalf("Select with no active printers error = %v", err)
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	reg := printer.NewRegistry(memory.New(), printer.WithPublisher(pub))

	res, err := reg.Sync(ctx, []string{"Zebra_GK420", "HP_LaserJet", "Zebra_GK420", " "})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Created) != 2 || len(res.Reactivated) != 0 || len(res.Unchanged) != 0 {
		t.Fatalf("first sync = %d created, %d reactivated, %d unchanged",
			len(res.Created), len(res.Reactivated), len(res.Unchanged))
	}

	zebra, err := reg.GetByName(ctx, "Zebra_GK420")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if zebra.Type != printer.TypeLabel {
		t.Fatalf("zebra type = %q", zebra.Type)
	}
	if _, _, err := reg.SetActive(ctx, zebra.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	res, err = reg.Sync(ctx, []string{"Zebra_GK420", "HP_LaserJet", "EPSON_TM-T20"})
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if len(res.Created) != 1 || len(res.Reactivated) != 1 || len(res.Unchanged) != 1 {
		t.Fatalf("second sync = %d created, %d reactivated, %d unchanged",
			len(res.Created), len(res.Reactivated), len(res.Unchanged))
	}
	if res.Reactivated[0].ID != zebra.ID {
		t.Fatalf("reactivated %q, want %q", res.Reactivated[0].Name, zebra.Name)
	}

	kinds := pub.kinds()
	if len(kinds) == 0 || kinds[len(kinds)-1] != event.KindPrinterActivated {
		t.Fatalf("published kinds = %v, want trailing activation", kinds)
	}
}
