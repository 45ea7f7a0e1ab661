package printer

import (
	"context"

	"github.com/xraph/spool/id"
)

// ListOpts controls filtering for printer list queries.
type ListOpts struct {
	// Type filters by printer type. Empty means all types.
	Type Type
	// ActiveOnly restricts the result to active printers.
	ActiveOnly bool
	// Limit is the maximum number of printers to return. Zero means no limit.
	Limit int
	// Offset is the number of printers to skip.
	Offset int
}

// Store defines the persistence contract for printers.
type Store interface {
	// CreatePrinter persists a new printer. It returns
	// spool.ErrPrinterExists when the name is taken.
	CreatePrinter(ctx context.Context, p *Printer) error

	// GetPrinter retrieves a printer by ID.
	GetPrinter(ctx context.Context, printerID id.PrinterID) (*Printer, error)

	// GetPrinterByName retrieves a printer by its unique name.
	GetPrinterByName(ctx context.Context, name string) (*Printer, error)

	// UpdatePrinter persists changes to an existing printer. It returns
	// spool.ErrPrinterExists when a rename collides.
	UpdatePrinter(ctx context.Context, p *Printer) error

	// DeletePrinter removes a printer. Backends with referential
	// integrity return spool.ErrPrinterInUse while jobs reference it.
	DeletePrinter(ctx context.Context, printerID id.PrinterID) error

	// ListPrinters returns printers ordered by priority descending, then
	// ID ascending.
	ListPrinters(ctx context.Context, opts ListOpts) ([]*Printer, error)
}
