package render

import (
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/job"
)

// DefaultReceiptWidth is the paper width of a receipt in millimetres.
const DefaultReceiptWidth = 80

// ReceiptLine is one sold item.
type ReceiptLine struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"price_unit"`
	Subtotal  float64 `json:"price_subtotal"`
	Discount  float64 `json:"discount,omitempty"`
}

// Payment is one tender used to settle a receipt.
type Payment struct {
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
}

// Customer identifies the buyer on a receipt.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Receipt is the data printed on a point-of-sale receipt.
type Receipt struct {
	Reference string        `json:"reference,omitempty"`
	Date      time.Time     `json:"date,omitzero"`
	Lines     []ReceiptLine `json:"lines,omitempty"`
	Untaxed   float64       `json:"amount_untaxed"`
	Tax       float64       `json:"amount_tax"`
	Total     float64       `json:"amount_total"`
	Discount  float64       `json:"amount_discount,omitempty"`
	Payments  []Payment     `json:"payments,omitempty"`
	Customer  *Customer     `json:"customer,omitempty"`
}

// IsZero reports whether r carries nothing printable.
func (r Receipt) IsZero() bool {
	return r.Reference == "" && len(r.Lines) == 0 && r.Total == 0 && len(r.Payments) == 0
}

// ReceiptOptions tune receipt layout.
type ReceiptOptions struct {
	// Template overrides RefReceipt.
	Template string
	// Width is the paper width in millimetres. Defaults to 80.
	Width       int
	FontSize    string
	ShowLogo    bool
	ShowBarcode bool
}

// Document is formatted data ready to be rendered by a template.
type Document struct {
	Template     string
	Data         map[string]any
	DocumentType string
	Format       job.Format
}

// FormatReceipt prepares r for printing with the receipt template. Line
// items keep their order; quantities default to 1.
func FormatReceipt(r Receipt, opts ReceiptOptions) (*Document, error) {
	if r.IsZero() {
		return nil, spool.NewValidationError("receipt", "receipt data cannot be empty")
	}
	if opts.Template == "" {
		opts.Template = RefReceipt
	}
	if opts.Width <= 0 {
		opts.Width = DefaultReceiptWidth
	}
	if opts.FontSize == "" {
		opts.FontSize = "normal"
	}
	date := r.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	lines := make([]ReceiptLine, len(r.Lines))
	for i, l := range r.Lines {
		if l.Quantity == 0 {
			l.Quantity = 1
		}
		lines[i] = l
	}

	data := map[string]any{
		"receipt":         r,
		"reference":       r.Reference,
		"date":            date,
		"formatted_lines": lines,
		"totals": map[string]float64{
			"subtotal": r.Untaxed,
			"tax":      r.Tax,
			"total":    r.Total,
			"discount": r.Discount,
		},
		"payments":      r.Payments,
		"receipt_width": opts.Width,
		"font_size":     opts.FontSize,
		"show_logo":     opts.ShowLogo,
		"show_barcode":  opts.ShowBarcode,
	}
	if r.Customer != nil {
		data["customer"] = *r.Customer
	}

	return &Document{
		Template:     opts.Template,
		Data:         data,
		DocumentType: job.DocTypeReceipt,
		Format:       job.FormatHTML,
	}, nil
}
