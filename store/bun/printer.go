package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/printer"
)

// CreatePrinter persists a new printer.
func (s *Store) CreatePrinter(ctx context.Context, p *printer.Printer) error {
	_, err := s.db.NewInsert().Model(toPrinterModel(p)).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrPrinterExists
		}
		return fmt.Errorf("spool/bun: create printer: %w", err)
	}
	return nil
}

// GetPrinter retrieves a printer by ID.
func (s *Store) GetPrinter(ctx context.Context, printerID id.PrinterID) (*printer.Printer, error) {
	return s.getPrinter(ctx, "id = ?", printerID.String())
}

// GetPrinterByName retrieves a printer by its unique name.
func (s *Store) GetPrinterByName(ctx context.Context, name string) (*printer.Printer, error) {
	return s.getPrinter(ctx, "name = ?", name)
}

func (s *Store) getPrinter(ctx context.Context, where string, arg any) (*printer.Printer, error) {
	m := new(printerModel)
	err := s.db.NewSelect().Model(m).Where(where, arg).Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, spool.ErrPrinterNotFound
		}
		return nil, fmt.Errorf("spool/bun: get printer: %w", err)
	}
	return fromPrinterModel(m)
}

// UpdatePrinter persists changes to an existing printer.
func (s *Store) UpdatePrinter(ctx context.Context, p *printer.Printer) error {
	m := toPrinterModel(p)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrPrinterExists
		}
		return fmt.Errorf("spool/bun: update printer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("spool/bun: update printer rows affected: %w", err)
	}
	if n == 0 {
		return spool.ErrPrinterNotFound
	}
	return nil
}

// DeletePrinter removes a printer. The jobs foreign key rejects the delete
// while any job references the printer.
func (s *Store) DeletePrinter(ctx context.Context, printerID id.PrinterID) error {
	res, err := s.db.NewDelete().Model((*printerModel)(nil)).
		Where("id = ?", printerID.String()).
		Exec(ctx)
	if err != nil {
		if isForeignKeyViolation(err) {
			return spool.ErrPrinterInUse
		}
		return fmt.Errorf("spool/bun: delete printer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("spool/bun: delete printer rows affected: %w", err)
	}
	if n == 0 {
		return spool.ErrPrinterNotFound
	}
	return nil
}

// ListPrinters returns printers ordered by priority descending, then ID.
func (s *Store) ListPrinters(ctx context.Context, opts printer.ListOpts) ([]*printer.Printer, error) {
	var models []printerModel
	q := s.db.NewSelect().Model(&models)

	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}

	q = q.Order("priority DESC", "id ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("spool/bun: list printers: %w", err)
	}

	printers := make([]*printer.Printer, 0, len(models))
	for i := range models {
		p, err := fromPrinterModel(&models[i])
		if err != nil {
			return nil, err
		}
		printers = append(printers, p)
	}
	return printers, nil
}
