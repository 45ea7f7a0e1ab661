package render

import (
	"fmt"
	"strings"

	"github.com/xraph/spool/job"
)

// Built-in template references.
const (
	RefReceipt        = "spool.receipt"
	RefLabelZPL       = "spool.label_zpl"
	RefLabelESCPOS    = "spool.label_escpos"
	RefLabelHTML      = "spool.label_html"
	RefLabelBatchHTML = "spool.label_batch_html"
)

// DefaultReceiptTemplate lays out a receipt at the requested paper width.
const DefaultReceiptTemplate = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { width: {{.receipt_width}}mm; font-family: monospace; font-size: {{if eq .font_size "small"}}10px{{else if eq .font_size "large"}}14px{{else}}12px{{end}}; }
table { width: 100%; border-collapse: collapse; }
td.num { text-align: right; }
.total { font-weight: bold; border-top: 1px dashed #000; }
</style></head><body>
{{with .reference}}<h3>{{.}}</h3>{{end}}
<p>{{.date.Format "2006-01-02 15:04"}}</p>
{{with .customer}}<p>{{.Name}}{{with .Phone}} · {{.}}{{end}}</p>{{end}}
<table>
{{range .formatted_lines}}<tr><td>{{.Name}}</td><td class="num">{{qty .Quantity}} x {{money .UnitPrice}}</td><td class="num">{{money .Subtotal}}</td></tr>
{{end}}</table>
<table>
<tr><td>Subtotal</td><td class="num">{{money .totals.subtotal}}</td></tr>
{{if .totals.discount}}<tr><td>Discount</td><td class="num">-{{money .totals.discount}}</td></tr>{{end}}
<tr><td>Tax</td><td class="num">{{money .totals.tax}}</td></tr>
<tr class="total"><td>Total</td><td class="num">{{money .totals.total}}</td></tr>
{{range .payments}}<tr><td>{{.Method}}</td><td class="num">{{money .Amount}}</td></tr>
{{end}}</table>
</body></html>
`

// DefaultLabelHTMLTemplate renders one label for printers without a raw
// label language.
const DefaultLabelHTMLTemplate = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
.label { width: {{.width}}in; height: {{.height}}in; font-family: sans-serif; }
</style></head><body>
{{template "label" .}}
</body></html>
{{define "label"}}<div class="label">
{{with .name}}<h2>{{.}}</h2>{{end}}
{{with .default_code}}<p>Code: {{.}}</p>{{end}}
{{if .list_price}}<p>Price: ${{money .list_price}}</p>{{end}}
{{with .barcode}}<p class="barcode">{{.}}</p>{{end}}
</div>{{end}}
`

// DefaultLabelBatchHTMLTemplate renders every entry of .labels on its own
// page.
const DefaultLabelBatchHTMLTemplate = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
.label { page-break-after: always; font-family: sans-serif; }
</style></head><body>
{{range .labels}}<div class="label">
{{with .name}}<h2>{{.}}</h2>{{end}}
{{with .default_code}}<p>Code: {{.}}</p>{{end}}
{{if .list_price}}<p>Price: ${{money .list_price}}</p>{{end}}
{{with .barcode}}<p class="barcode">{{.}}</p>{{end}}
</div>
{{end}}</body></html>
`

func (r *Registry) registerBuiltins() {
	for _, t := range []struct {
		ref  string
		body string
	}{
		{RefReceipt, DefaultReceiptTemplate},
		{RefLabelHTML, DefaultLabelHTMLTemplate},
		{RefLabelBatchHTML, DefaultLabelBatchHTMLTemplate},
	} {
		if err := r.Register(t.ref, job.FormatHTML, t.body); err != nil {
			panic(fmt.Sprintf("spool/render: built-in template %s: %v", t.ref, err))
		}
	}
	r.RegisterFunc(RefLabelZPL, job.FormatZPL, zplGenerator)
	r.RegisterFunc(RefLabelESCPOS, job.FormatESCPOS, escposGenerator)
}

func defaultFuncs() map[string]any {
	return map[string]any{
		"money": func(v any) string { return fmt.Sprintf("%.2f", num(v)) },
		"qty": func(v any) string {
			f := num(v)
			if f == float64(int64(f)) {
				return fmt.Sprintf("%d", int64(f))
			}
			return fmt.Sprintf("%.3g", f)
		},
		"upper":  strings.ToUpper,
		"repeat": strings.Repeat,
	}
}
