package render_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/render"
)

func TestRegistryRender(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := render.NewRegistry()

	if err := r.Register("greeting", job.FormatHTML, `<p>Hello {{.name}}</p>`); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("raw", job.FormatZPL, "^XA^FD{{.name}}^FS^XZ"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		ref  string
		data map[string]any
		want string
	}{
		{"greeting", map[string]any{"name": "<Ada>"}, "<p>Hello &lt;Ada&gt;</p>"},
		{"raw", map[string]any{"name": "<Ada>"}, "^XA^FD<Ada>^FS^XZ"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()
			got, err := r.Render(ctx, tt.ref, tt.data)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryUnknownTemplate(t *testing.T) {
	t.Parallel()
	r := render.NewRegistry()

	_, err := r.Render(context.Background(), "missing", nil)
	if !errors.Is(err, spool.ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
	if _, err := r.Format("missing"); !errors.Is(err, spool.ErrTemplateNotFound) {
		t.Fatalf("Format err = %v, want ErrTemplateNotFound", err)
	}
}

func TestRegistryRejectsBadTemplates(t *testing.T) {
	t.Parallel()
	r := render.NewRegistry()

	tests := []struct {
		name   string
		ref    string
		format job.Format
		body   string
	}{
		{"empty ref", " ", job.FormatHTML, "x"},
		{"bad format", "x", "docx", "x"},
		{"parse error", "x", job.FormatHTML, "{{.broken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := r.Register(tt.ref, tt.format, tt.body); !spool.IsValidation(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestBuiltinsRegistered(t *testing.T) {
	t.Parallel()
	r := render.NewRegistry()

	want := map[string]job.Format{
		render.RefReceipt:        job.FormatHTML,
		render.RefLabelHTML:      job.FormatHTML,
		render.RefLabelBatchHTML: job.FormatHTML,
		render.RefLabelZPL:       job.FormatZPL,
		render.RefLabelESCPOS:    job.FormatESCPOS,
	}
	for ref, format := range want {
		got, err := r.Format(ref)
		if err != nil {
			t.Fatalf("Format(%s): %v", ref, err)
		}
		if got != format {
			t.Errorf("Format(%s) = %s, want %s", ref, got, format)
		}
	}
	if len(r.Refs()) != len(want) {
		t.Errorf("Refs = %v", r.Refs())
	}
}

func TestDetectLabelFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		zpl, escpos, html, pdf bool
		want                   job.Format
	}{
		{"zpl wins", true, true, true, true, job.FormatZPL},
		{"escpos", false, true, true, true, job.FormatESCPOS},
		{"html", false, false, true, true, job.FormatHTML},
		{"pdf", false, false, false, true, job.FormatPDF},
		{"nothing", false, false, false, false, job.FormatHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &printer.Printer{SupportsZPL: tt.zpl, SupportsESCPOS: tt.escpos, SupportsHTML: tt.html, SupportsPDF: tt.pdf}
			if got := render.DetectLabelFormat(p); got != tt.want {
				t.Errorf("DetectLabelFormat = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestZPLLabel(t *testing.T) {
	t.Parallel()

	got := string(render.ZPLLabel(render.Label{Name: "Widget", Code: "W-1", Price: 9.5, Barcode: "12345"}))
	for _, want := range []string{"^XA", "^PW812", "^LL1218", "^FDWidget^FS", "^FDCode: W-1^FS", "^FDPrice: $9.50^FS", "^BC,100,Y,N,N", "^FD12345^FS"} {
		if !strings.Contains(got, want) {
			t.Errorf("ZPL label missing %q:\n%s", want, got)
		}
	}
	if !strings.HasPrefix(got, "^XA\n") || !strings.HasSuffix(got, "\n^XZ") {
		t.Errorf("ZPL label not framed by ^XA/^XZ:\n%s", got)
	}

	barcodeOnly := string(render.ZPLLabel(render.Label{Barcode: "999"}))
	if !strings.Contains(barcodeOnly, "^FO50,100\n^BY3") {
		t.Errorf("barcode-only label = %q", barcodeOnly)
	}
}

func TestESCPOSLabel(t *testing.T) {
	t.Parallel()

	got := render.ESCPOSLabel(render.Label{Name: "Widget", Barcode: "12345"})
	if !bytes.HasPrefix(got, []byte("\x1b@\x1ba\x01")) {
		t.Errorf("label does not start with init and centre: %q", got)
	}
	if !bytes.HasSuffix(got, []byte("\n\n\n\x1dV\x00")) {
		t.Errorf("label does not end with feed and cut: %q", got)
	}
	if !bytes.Contains(got, []byte("\x1dk\x49\x0512345")) {
		t.Errorf("label missing CODE128 barcode: %q", got)
	}
}

func TestGeneratorsRenderFromMap(t *testing.T) {
	t.Parallel()
	r := render.NewRegistry()
	l := render.Label{Name: "Widget", Price: 2}

	got, err := r.Render(context.Background(), render.RefLabelZPL, l.Map())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(got, render.ZPLLabel(l)) {
		t.Errorf("generator output differs from ZPLLabel")
	}
}

func TestFormatLabel(t *testing.T) {
	t.Parallel()

	zebra := printer.New("Zebra", printer.TypeLabel)
	zebra.SupportsZPL = true
	doc, err := render.FormatLabel(render.Label{Name: "Widget"}, zebra)
	if err != nil {
		t.Fatalf("FormatLabel: %v", err)
	}
	if doc.Format != job.FormatZPL || doc.Template != render.RefLabelZPL || doc.DocumentType != job.DocTypeLabel {
		t.Errorf("doc = %+v", doc)
	}

	office := printer.New("Office", printer.TypeDocument)
	doc, err = render.FormatLabel(render.Label{Name: "Widget"}, office)
	if err != nil {
		t.Fatalf("FormatLabel: %v", err)
	}
	if doc.Format != job.FormatHTML || doc.Template != render.RefLabelHTML {
		t.Errorf("doc = %+v", doc)
	}

	if _, err := render.FormatLabel(render.Label{}, zebra); !spool.IsValidation(err) {
		t.Errorf("empty label err = %v, want validation error", err)
	}
}

func TestFormatReceipt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, err := render.FormatReceipt(render.Receipt{}, render.ReceiptOptions{}); !spool.IsValidation(err) {
		t.Fatalf("empty receipt err = %v, want validation error", err)
	}

	doc, err := render.FormatReceipt(render.Receipt{
		Reference: "POS/0001",
		Date:      time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Lines: []render.ReceiptLine{
			{Name: "Coffee", Quantity: 2, UnitPrice: 3, Subtotal: 6},
			{Name: "Cake", UnitPrice: 4.5, Subtotal: 4.5},
		},
		Untaxed:  10.5,
		Tax:      1.05,
		Total:    11.55,
		Payments: []render.Payment{{Method: "Cash", Amount: 20}},
		Customer: &render.Customer{Name: "Ada"},
	}, render.ReceiptOptions{})
	if err != nil {
		t.Fatalf("FormatReceipt: %v", err)
	}
	if doc.Template != render.RefReceipt || doc.Format != job.FormatHTML || doc.DocumentType != job.DocTypeReceipt {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Data["receipt_width"] != render.DefaultReceiptWidth {
		t.Errorf("width = %v, want %d", doc.Data["receipt_width"], render.DefaultReceiptWidth)
	}

	out, err := render.NewRegistry().Render(ctx, doc.Template, doc.Data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := string(out)
	for _, want := range []string{"POS/0001", "2026-03-01 10:30", "Coffee", "1 x 4.50", "11.55", "Cash", "Ada", "width: 80mm"} {
		if !strings.Contains(html, want) {
			t.Errorf("receipt missing %q", want)
		}
	}
}
