package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/printer"
)

// CreatePrinter stores the printer as a Hash. The name is reserved first
// with HSETNX so concurrent creates cannot share it.
func (s *Store) CreatePrinter(ctx context.Context, p *printer.Printer) error {
	pID := p.ID.String()
	key := printerKey(pID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("spool/redis: create printer check exists: %w", err)
	}
	if exists > 0 {
		return spool.ErrPrinterExists
	}

	reserved, err := s.client.HSetNX(ctx, printerNamesKey, p.Name, pID).Result()
	if err != nil {
		return fmt.Errorf("spool/redis: reserve printer name: %w", err)
	}
	if !reserved {
		return spool.ErrPrinterExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, printerToMap(p))
	pipe.SAdd(ctx, printerIDsKey, pID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("spool/redis: create printer: %w", err)
	}
	return nil
}

// GetPrinter retrieves a printer by ID.
func (s *Store) GetPrinter(ctx context.Context, printerID id.PrinterID) (*printer.Printer, error) {
	return s.getPrinterByKey(ctx, printerKey(printerID.String()))
}

// GetPrinterByName resolves the name index, then loads the printer.
func (s *Store) GetPrinterByName(ctx context.Context, name string) (*printer.Printer, error) {
	pID, err := s.client.HGet(ctx, printerNamesKey, name).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, spool.ErrPrinterNotFound
		}
		return nil, fmt.Errorf("spool/redis: get printer by name: %w", err)
	}
	return s.getPrinterByKey(ctx, printerKey(pID))
}

// UpdatePrinter persists changes to an existing printer, moving its name
// reservation on rename.
func (s *Store) UpdatePrinter(ctx context.Context, p *printer.Printer) error {
	pID := p.ID.String()
	key := printerKey(pID)

	oldName, err := s.client.HGet(ctx, key, "name").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return spool.ErrPrinterNotFound
		}
		return fmt.Errorf("spool/redis: update printer: %w", err)
	}

	if oldName != p.Name {
		reserved, err := s.client.HSetNX(ctx, printerNamesKey, p.Name, pID).Result()
		if err != nil {
			return fmt.Errorf("spool/redis: reserve printer name: %w", err)
		}
		if !reserved {
			return spool.ErrPrinterExists
		}
	}

	fields := printerToMap(p)
	fields["updated_at"] = formatTime(time.Now().UTC())

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if oldName != p.Name {
		pipe.HDel(ctx, printerNamesKey, oldName)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("spool/redis: update printer: %w", err)
	}
	return nil
}

// DeletePrinter removes a printer that no job references.
func (s *Store) DeletePrinter(ctx context.Context, printerID id.PrinterID) error {
	pID := printerID.String()
	key := printerKey(pID)

	name, err := s.client.HGet(ctx, key, "name").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return spool.ErrPrinterNotFound
		}
		return fmt.Errorf("spool/redis: delete printer: %w", err)
	}

	inUse, err := s.client.SCard(ctx, printerJobsKey(pID)).Result()
	if err != nil {
		return fmt.Errorf("spool/redis: delete printer count jobs: %w", err)
	}
	if inUse > 0 {
		return spool.ErrPrinterInUse
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, printerIDsKey, pID)
	pipe.HDel(ctx, printerNamesKey, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("spool/redis: delete printer: %w", err)
	}
	return nil
}

// ListPrinters returns printers ordered by priority descending, then ID.
func (s *Store) ListPrinters(ctx context.Context, opts printer.ListOpts) ([]*printer.Printer, error) {
	ids, err := s.client.SMembers(ctx, printerIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("spool/redis: list printers smembers: %w", err)
	}

	printers := make([]*printer.Printer, 0, len(ids))
	for _, pID := range ids {
		p, getErr := s.getPrinterByKey(ctx, printerKey(pID))
		if getErr != nil {
			continue // skip missing
		}
		if opts.Type != "" && p.Type != opts.Type {
			continue
		}
		if opts.ActiveOnly && !p.Active {
			continue
		}
		printers = append(printers, p)
	}

	slices.SortFunc(printers, func(a, b *printer.Printer) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})

	if opts.Offset >= len(printers) {
		return nil, nil
	}
	printers = printers[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(printers) {
		printers = printers[:opts.Limit]
	}
	return printers, nil
}

// ── helpers ──

func (s *Store) getPrinterByKey(ctx context.Context, key string) (*printer.Printer, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("spool/redis: get printer: %w", err)
	}
	if len(vals) == 0 {
		return nil, spool.ErrPrinterNotFound
	}
	return mapToPrinter(vals)
}

func printerToMap(p *printer.Printer) map[string]any {
	return map[string]any{
		"id":              p.ID.String(),
		"name":            p.Name,
		"system_name":     p.SystemName,
		"description":     p.Description,
		"type":            string(p.Type),
		"supports_pdf":    formatBool(p.SupportsPDF),
		"supports_html":   formatBool(p.SupportsHTML),
		"supports_escpos": formatBool(p.SupportsESCPOS),
		"supports_zpl":    formatBool(p.SupportsZPL),
		"location":        p.Location,
		"department":      p.Department,
		"is_default":      formatBool(p.IsDefault),
		"priority":        strconv.Itoa(p.Priority),
		"active":          formatBool(p.Active),
		"paper_size":      string(p.PaperSize),
		"orientation":     string(p.Orientation),
		"quality":         string(p.Quality),
		"address":         p.Address,
		"created_at":      formatTime(p.CreatedAt),
		"updated_at":      formatTime(p.UpdatedAt),
	}
}

func mapToPrinter(m map[string]string) (*printer.Printer, error) {
	pID, err := id.ParsePrinterID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("spool/redis: parse printer id: %w", err)
	}
	priority, _ := strconv.Atoi(m["priority"]) //nolint:errcheck // best-effort parse from trusted Redis data

	return &printer.Printer{
		Entity: spool.Entity{
			CreatedAt: parseTime(m["created_at"]),
			UpdatedAt: parseTime(m["updated_at"]),
		},
		ID:             pID,
		Name:           m["name"],
		SystemName:     m["system_name"],
		Description:    m["description"],
		Type:           printer.Type(m["type"]),
		SupportsPDF:    m["supports_pdf"] == "1",
		SupportsHTML:   m["supports_html"] == "1",
		SupportsESCPOS: m["supports_escpos"] == "1",
		SupportsZPL:    m["supports_zpl"] == "1",
		Location:       m["location"],
		Department:     m["department"],
		IsDefault:      m["is_default"] == "1",
		Priority:       priority,
		Active:         m["active"] == "1",
		PaperSize:      printer.PaperSize(m["paper_size"]),
		Orientation:    printer.Orientation(m["orientation"]),
		Quality:        printer.Quality(m["quality"]),
		Address:        m["address"],
	}, nil
}
