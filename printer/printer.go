package printer

import (
	"slices"
	"strings"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
)

// Type classifies a printer by the documents it is meant for.
type Type string

const (
	TypeReceipt  Type = "receipt"
	TypeLabel    Type = "label"
	TypeDocument Type = "document"
	TypeOther    Type = "other"
)

// Valid reports whether t is a known printer type.
func (t Type) Valid() bool {
	switch t {
	case TypeReceipt, TypeLabel, TypeDocument, TypeOther:
		return true
	}
	return false
}

// TypeForDocument maps a job document type to the printer type that
// normally serves it. Unknown document types map to "" (any type).
func TypeForDocument(documentType string) Type {
	switch {
	case documentType == job.DocTypeReceipt:
		return TypeReceipt
	case job.IsLabelCategory(documentType), documentType == job.DocTypeLabelBatch:
		return TypeLabel
	case documentType == "document", documentType == "invoice", documentType == "report":
		return TypeDocument
	}
	return ""
}

// PaperSize is the media loaded in a printer.
type PaperSize string

const (
	PaperA4     PaperSize = "a4"
	PaperLetter PaperSize = "letter"
	Paper80mm   PaperSize = "80mm"
	Paper58mm   PaperSize = "58mm"
	Paper4x6    PaperSize = "4x6"
	PaperCustom PaperSize = "custom"
)

// Orientation is the default page orientation.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Quality is the default print quality.
type Quality string

const (
	QualityDraft  Quality = "draft"
	QualityNormal Quality = "normal"
	QualityHigh   Quality = "high"
)

// DefaultPriority is the priority given to printers that don't set one.
const DefaultPriority = 10

// Printer is a configured print destination.
type Printer struct {
	spool.Entity

	ID          id.PrinterID `json:"id"`
	Name        string       `json:"name"`
	SystemName  string       `json:"system_name,omitempty"`
	Description string       `json:"description,omitempty"`
	Type        Type         `json:"type"`

	SupportsPDF    bool `json:"supports_pdf"`
	SupportsHTML   bool `json:"supports_html"`
	SupportsESCPOS bool `json:"supports_escpos"`
	SupportsZPL    bool `json:"supports_zpl"`

	Location   string `json:"location,omitempty"`
	Department string `json:"department,omitempty"`
	IsDefault  bool   `json:"is_default"`
	Priority   int    `json:"priority"`
	Active     bool   `json:"active"`

	PaperSize   PaperSize   `json:"paper_size,omitempty"`
	Orientation Orientation `json:"orientation,omitempty"`
	Quality     Quality     `json:"quality,omitempty"`

	// Address is where sinks and the connectivity monitor reach the
	// device: "host:port" for raw sockets, an ipp:// or http:// URI for
	// IPP, or file:// for a spool directory. Empty means the printer is
	// driven by an external agent.
	Address string `json:"address,omitempty"`
}

// New returns an active printer with the standard capability defaults:
// PDF and HTML on, ESC/POS and ZPL off.
func New(name string, t Type) *Printer {
	return &Printer{
		Name:         name,
		Type:         t,
		SupportsPDF:  true,
		SupportsHTML: true,
		Priority:     DefaultPriority,
		Active:       true,
		PaperSize:    PaperA4,
		Orientation:  Portrait,
		Quality:      QualityNormal,
	}
}

// Supports reports whether the printer accepts payloads in format f.
func (p *Printer) Supports(f job.Format) bool {
	switch f {
	case job.FormatPDF:
		return p.SupportsPDF
	case job.FormatHTML:
		return p.SupportsHTML
	case job.FormatESCPOS:
		return p.SupportsESCPOS
	case job.FormatZPL:
		return p.SupportsZPL
	}
	return false
}

// Formats returns the formats the printer accepts.
func (p *Printer) Formats() []job.Format {
	var out []job.Format
	for _, f := range job.Formats {
		if p.Supports(f) {
			out = append(out, f)
		}
	}
	return out
}

// DeviceName is the name the print sink addresses: SystemName when set,
// otherwise Name.
func (p *Printer) DeviceName() string {
	if p.SystemName != "" {
		return p.SystemName
	}
	return p.Name
}

// Clone returns a copy of p.
func (p *Printer) Clone() *Printer {
	cp := *p
	return &cp
}

// Validate checks the printer's invariants.
func (p *Printer) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return spool.NewValidationError("name", "printer name cannot be empty")
	}
	if p.Priority < 0 {
		return spool.NewValidationError("priority", "priority cannot be negative")
	}
	if !p.Type.Valid() {
		return spool.NewValidationError("type", "invalid printer type %q", p.Type)
	}
	if p.PaperSize != "" && !slices.Contains(
		[]PaperSize{PaperA4, PaperLetter, Paper80mm, Paper58mm, Paper4x6, PaperCustom}, p.PaperSize) {
		return spool.NewValidationError("paper_size", "invalid paper size %q", p.PaperSize)
	}
	if p.Orientation != "" && p.Orientation != Portrait && p.Orientation != Landscape {
		return spool.NewValidationError("orientation", "invalid orientation %q", p.Orientation)
	}
	if p.Quality != "" && p.Quality != QualityDraft && p.Quality != QualityNormal && p.Quality != QualityHigh {
		return spool.NewValidationError("quality", "invalid print quality %q", p.Quality)
	}
	return nil
}
