package render

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xraph/spool"
	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Label defaults: a 4x6 inch label at 203 dpi.
const (
	DefaultLabelWidth  = 4.0
	DefaultLabelHeight = 6.0
	DefaultLabelDPI    = 203
)

// Label is the data printed on a product label.
type Label struct {
	Name    string  `json:"name,omitempty"`
	Code    string  `json:"default_code,omitempty"`
	Price   float64 `json:"list_price,omitempty"`
	Barcode string  `json:"barcode,omitempty"`
	// BarcodeType is informational; the generators always emit Code 128.
	BarcodeType string `json:"barcode_type,omitempty"`

	// Width and Height are in inches.
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	DPI    int     `json:"dpi,omitempty"`
}

// IsZero reports whether l carries nothing printable.
func (l Label) IsZero() bool {
	return l.Name == "" && l.Code == "" && l.Price == 0 && l.Barcode == ""
}

func (l Label) withDefaults() Label {
	if l.Width <= 0 {
		l.Width = DefaultLabelWidth
	}
	if l.Height <= 0 {
		l.Height = DefaultLabelHeight
	}
	if l.DPI <= 0 {
		l.DPI = DefaultLabelDPI
	}
	if l.BarcodeType == "" {
		l.BarcodeType = "Code128"
	}
	return l
}

// Map returns l as template data.
func (l Label) Map() map[string]any {
	l = l.withDefaults()
	return map[string]any{
		"name":         l.Name,
		"default_code": l.Code,
		"list_price":   l.Price,
		"barcode":      l.Barcode,
		"barcode_type": l.BarcodeType,
		"width":        l.Width,
		"height":       l.Height,
		"dpi":          l.DPI,
	}
}

// LabelFromMap reads a Label from template data using the keys of Map.
func LabelFromMap(data map[string]any) Label {
	return Label{
		Name:        str(data["name"]),
		Code:        str(data["default_code"]),
		Price:       num(data["list_price"]),
		Barcode:     str(data["barcode"]),
		BarcodeType: str(data["barcode_type"]),
		Width:       num(data["width"]),
		Height:      num(data["height"]),
		DPI:         int(num(data["dpi"])),
	}
}

// DetectLabelFormat picks the payload format for labels sent to p, in
// order of preference: ZPL, ESC/POS, HTML, PDF. A printer with no
// capability flags gets HTML.
func DetectLabelFormat(p *printer.Printer) job.Format {
	switch {
	case p.SupportsZPL:
		return job.FormatZPL
	case p.SupportsESCPOS:
		return job.FormatESCPOS
	case p.SupportsHTML:
		return job.FormatHTML
	case p.SupportsPDF:
		return job.FormatPDF
	}
	return job.FormatHTML
}

// ZPLLabel generates a ZPL label for l: product name, code, price and a
// Code 128 barcode, each on its own field.
func ZPLLabel(l Label) []byte {
	l = l.withDefaults()
	lines := []string{
		"^XA",
		fmt.Sprintf("^PW%d", int(l.Width*float64(l.DPI))),
		fmt.Sprintf("^LL%d", int(l.Height*float64(l.DPI))),
	}

	if l.Name != "" || l.Code != "" || l.Price != 0 {
		if l.Name != "" {
			lines = append(lines, "^FO50,50", "^A0N,40,40", "^FD"+l.Name+"^FS")
		}
		if l.Code != "" {
			lines = append(lines, "^FO50,100", "^A0N,30,30", "^FDCode: "+l.Code+"^FS")
		}
		if l.Price != 0 {
			lines = append(lines, "^FO50,150", "^A0N,35,35", fmt.Sprintf("^FDPrice: $%.2f^FS", l.Price))
		}
		if l.Barcode != "" {
			lines = append(lines, "^FO50,200", "^BY3", "^BC,100,Y,N,N", "^FD"+l.Barcode+"^FS")
		}
	} else if l.Barcode != "" {
		lines = append(lines, "^FO50,100", "^BY3", "^BC,100,Y,N,N", "^FD"+l.Barcode+"^FS")
	}

	lines = append(lines, "^XZ")
	return []byte(strings.Join(lines, "\n"))
}

// ESC/POS control bytes.
const (
	esc = "\x1b"
	gs  = "\x1d"
)

// ESCPOSLabel generates an ESC/POS label for l, centred, ending with a
// feed and a full cut.
func ESCPOSLabel(l Label) []byte {
	var b strings.Builder
	b.WriteString(esc + "@")
	b.WriteString(esc + "a\x01")

	barcode := func(v string) {
		b.WriteString(gs + "k\x49")
		b.WriteByte(byte(len(v)))
		b.WriteString(v)
	}

	if l.Name != "" || l.Code != "" || l.Price != 0 {
		if l.Name != "" {
			b.WriteString(esc + "!\x30")
			b.WriteString(l.Name)
			b.WriteString("\n")
			b.WriteString(esc + "!\x00")
		}
		if l.Code != "" {
			b.WriteString("Code: " + l.Code + "\n")
		}
		if l.Price != 0 {
			b.WriteString(esc + "!\x20")
			fmt.Fprintf(&b, "Price: $%.2f\n", l.Price)
			b.WriteString(esc + "!\x00")
		}
		if l.Barcode != "" {
			b.WriteString("\n")
			barcode(l.Barcode)
		}
	} else if l.Barcode != "" {
		barcode(l.Barcode)
	}

	b.WriteString("\n\n\n")
	b.WriteString(gs + "V\x00")
	return []byte(b.String())
}

// FormatLabel prepares l for printer p: it detects the printer's label
// format and picks the matching built-in template.
func FormatLabel(l Label, p *printer.Printer) (*Document, error) {
	if l.IsZero() {
		return nil, spool.NewValidationError("label", "label data cannot be empty")
	}
	format := DetectLabelFormat(p)
	var ref string
	switch format {
	case job.FormatZPL:
		ref = RefLabelZPL
	case job.FormatESCPOS:
		ref = RefLabelESCPOS
	default:
		ref = RefLabelHTML
		format = job.FormatHTML
	}
	return &Document{
		Template:     ref,
		Data:         l.Map(),
		DocumentType: job.DocTypeLabel,
		Format:       format,
	}, nil
}

func zplGenerator(_ context.Context, data map[string]any) ([]byte, error) {
	return ZPLLabel(LabelFromMap(data)), nil
}

func escposGenerator(_ context.Context, data map[string]any) ([]byte, error) {
	return ESCPOSLabel(LabelFromMap(data)), nil
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
