package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/printer"
)

const printerColumns = `
	id, name, system_name, description, type,
	supports_pdf, supports_html, supports_escpos, supports_zpl,
	location, department, is_default, priority, active,
	paper_size, orientation, quality, address, created_at, updated_at`

// CreatePrinter persists a new printer.
func (s *Store) CreatePrinter(ctx context.Context, p *printer.Printer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO spool_printers (`+printerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		p.ID.String(), p.Name, p.SystemName, p.Description, string(p.Type),
		p.SupportsPDF, p.SupportsHTML, p.SupportsESCPOS, p.SupportsZPL,
		p.Location, p.Department, p.IsDefault, p.Priority, p.Active,
		string(p.PaperSize), string(p.Orientation), string(p.Quality), p.Address,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrPrinterExists
		}
		return fmt.Errorf("spool/postgres: create printer: %w", err)
	}
	return nil
}

// GetPrinter retrieves a printer by ID.
func (s *Store) GetPrinter(ctx context.Context, printerID id.PrinterID) (*printer.Printer, error) {
	return s.getPrinter(ctx, `id = $1`, printerID.String())
}

// GetPrinterByName retrieves a printer by its unique name.
func (s *Store) GetPrinterByName(ctx context.Context, name string) (*printer.Printer, error) {
	return s.getPrinter(ctx, `name = $1`, name)
}

func (s *Store) getPrinter(ctx context.Context, where string, arg any) (*printer.Printer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+printerColumns+` FROM spool_printers WHERE `+where, arg)

	p, err := scanPrinter(row)
	if err != nil {
		if isNoRows(err) {
			return nil, spool.ErrPrinterNotFound
		}
		return nil, fmt.Errorf("spool/postgres: get printer: %w", err)
	}
	return p, nil
}

// UpdatePrinter persists changes to an existing printer.
func (s *Store) UpdatePrinter(ctx context.Context, p *printer.Printer) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE spool_printers SET
			name = $2, system_name = $3, description = $4, type = $5,
			supports_pdf = $6, supports_html = $7, supports_escpos = $8, supports_zpl = $9,
			location = $10, department = $11, is_default = $12, priority = $13, active = $14,
			paper_size = $15, orientation = $16, quality = $17, address = $18,
			updated_at = NOW()
		WHERE id = $1`,
		p.ID.String(), p.Name, p.SystemName, p.Description, string(p.Type),
		p.SupportsPDF, p.SupportsHTML, p.SupportsESCPOS, p.SupportsZPL,
		p.Location, p.Department, p.IsDefault, p.Priority, p.Active,
		string(p.PaperSize), string(p.Orientation), string(p.Quality), p.Address,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrPrinterExists
		}
		return fmt.Errorf("spool/postgres: update printer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return spool.ErrPrinterNotFound
	}
	return nil
}

// DeletePrinter removes a printer. The jobs foreign key rejects the delete
// while any job references the printer.
func (s *Store) DeletePrinter(ctx context.Context, printerID id.PrinterID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM spool_printers WHERE id = $1`, printerID.String())
	if err != nil {
		if isForeignKeyViolation(err) {
			return spool.ErrPrinterInUse
		}
		return fmt.Errorf("spool/postgres: delete printer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return spool.ErrPrinterNotFound
	}
	return nil
}

// ListPrinters returns printers ordered by priority descending, then ID.
func (s *Store) ListPrinters(ctx context.Context, opts printer.ListOpts) ([]*printer.Printer, error) {
	query := `SELECT ` + printerColumns + ` FROM spool_printers WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, string(opts.Type))
		argIdx++
	}
	if opts.ActiveOnly {
		query += " AND active"
	}

	query += " ORDER BY priority DESC, id ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("spool/postgres: list printers: %w", err)
	}
	defer rows.Close()

	var printers []*printer.Printer
	for rows.Next() {
		p, scanErr := scanPrinter(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("spool/postgres: scan printer row: %w", scanErr)
		}
		printers = append(printers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("spool/postgres: iterate printer rows: %w", err)
	}
	return printers, nil
}

func scanPrinter(row pgx.Row) (*printer.Printer, error) {
	var (
		p                           printer.Printer
		idStr, typ                  string
		paper, orientation, quality string
	)
	err := row.Scan(
		&idStr, &p.Name, &p.SystemName, &p.Description, &typ,
		&p.SupportsPDF, &p.SupportsHTML, &p.SupportsESCPOS, &p.SupportsZPL,
		&p.Location, &p.Department, &p.IsDefault, &p.Priority, &p.Active,
		&paper, &orientation, &quality, &p.Address, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = printer.Type(typ)
	p.PaperSize = printer.PaperSize(paper)
	p.Orientation = printer.Orientation(orientation)
	p.Quality = printer.Quality(quality)

	if p.ID, err = id.ParsePrinterID(idStr); err != nil {
		return nil, fmt.Errorf("spool/postgres: parse printer id %q: %w", idStr, err)
	}
	return &p, nil
}
