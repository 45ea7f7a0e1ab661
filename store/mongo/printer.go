package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/spool"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/printer"
)

// CreatePrinter persists a new printer. The unique name index rejects
// duplicates.
func (s *Store) CreatePrinter(ctx context.Context, p *printer.Printer) error {
	_, err := s.db.Collection(colPrinters).InsertOne(ctx, toPrinterModel(p))
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrPrinterExists
		}
		return fmt.Errorf("spool/mongo: create printer: %w", err)
	}
	return nil
}

// GetPrinter retrieves a printer by ID.
func (s *Store) GetPrinter(ctx context.Context, printerID id.PrinterID) (*printer.Printer, error) {
	return s.findPrinter(ctx, bson.M{"_id": printerID.String()})
}

// GetPrinterByName retrieves a printer by its unique name.
func (s *Store) GetPrinterByName(ctx context.Context, name string) (*printer.Printer, error) {
	return s.findPrinter(ctx, bson.M{"name": name})
}

func (s *Store) findPrinter(ctx context.Context, filter bson.M) (*printer.Printer, error) {
	var m printerModel
	err := s.db.Collection(colPrinters).FindOne(ctx, filter).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, spool.ErrPrinterNotFound
		}
		return nil, fmt.Errorf("spool/mongo: get printer: %w", err)
	}
	return fromPrinterModel(&m)
}

// UpdatePrinter persists changes to an existing printer.
func (s *Store) UpdatePrinter(ctx context.Context, p *printer.Printer) error {
	m := toPrinterModel(p)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colPrinters).UpdateOne(ctx,
		bson.M{"_id": m.ID},
		bson.M{"$set": bson.M{
			"name":            m.Name,
			"system_name":     m.SystemName,
			"description":     m.Description,
			"type":            m.Type,
			"supports_pdf":    m.SupportsPDF,
			"supports_html":   m.SupportsHTML,
			"supports_escpos": m.SupportsESCPOS,
			"supports_zpl":    m.SupportsZPL,
			"location":        m.Location,
			"department":      m.Department,
			"is_default":      m.IsDefault,
			"priority":        m.Priority,
			"active":          m.Active,
			"paper_size":      m.PaperSize,
			"orientation":     m.Orientation,
			"quality":         m.Quality,
			"address":         m.Address,
			"updated_at":      m.UpdatedAt,
		}},
	)
	if err != nil {
		if isDuplicateKey(err) {
			return spool.ErrPrinterExists
		}
		return fmt.Errorf("spool/mongo: update printer: %w", err)
	}
	if res.MatchedCount == 0 {
		return spool.ErrPrinterNotFound
	}
	return nil
}

// DeletePrinter removes a printer that no job references. MongoDB has no
// foreign keys, so the reference check is a count.
func (s *Store) DeletePrinter(ctx context.Context, printerID id.PrinterID) error {
	pID := printerID.String()

	inUse, err := s.db.Collection(colJobs).CountDocuments(ctx, bson.M{"printer_id": pID},
		options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("spool/mongo: delete printer count jobs: %w", err)
	}
	if inUse > 0 {
		return spool.ErrPrinterInUse
	}

	res, err := s.db.Collection(colPrinters).DeleteOne(ctx, bson.M{"_id": pID})
	if err != nil {
		return fmt.Errorf("spool/mongo: delete printer: %w", err)
	}
	if res.DeletedCount == 0 {
		return spool.ErrPrinterNotFound
	}
	return nil
}

// ListPrinters returns printers ordered by priority descending, then ID.
func (s *Store) ListPrinters(ctx context.Context, opts printer.ListOpts) ([]*printer.Printer, error) {
	filter := bson.M{}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	findOpts := options.Find().SetSort(bson.D{
		{Key: "priority", Value: -1},
		{Key: "_id", Value: 1},
	})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colPrinters).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("spool/mongo: list printers: %w", err)
	}

	var models []printerModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("spool/mongo: decode printers: %w", err)
	}

	printers := make([]*printer.Printer, 0, len(models))
	for i := range models {
		p, convErr := fromPrinterModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		printers = append(printers, p)
	}
	return printers, nil
}
