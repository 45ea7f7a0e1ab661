package bunstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/spool"
	"github.com/xraph/spool/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a Bun ORM implementation of store.Store. It works with the
// PostgreSQL and SQLite dialects; the schema is built from the models.
// The caller owns the *bun.DB lifecycle; Store never closes it.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Bun store. The caller owns the db lifecycle; the Store
// will not close it on Close().
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.db
}

type migration struct {
	name string
	up   func(ctx context.Context, db bun.IDB) error
}

// migrations run in order; each is recorded once applied.
var migrations = []migration{
	{name: "001_create_printers", up: createPrinters},
	{name: "002_create_jobs", up: createJobs},
	{name: "003_create_sequences", up: createSequences},
}

// Migrate creates the schema. Applied steps are tracked in
// spool_migrations and skipped on later runs.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*migrationModel)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("spool/bun: create migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := s.db.NewSelect().Model((*migrationModel)(nil)).
			Where("name = ?", m.name).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("spool/bun: check migration %s: %w", m.name, err)
		}
		if applied {
			continue
		}

		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := m.up(ctx, tx); err != nil {
				return fmt.Errorf("%w: %s: %w", spool.ErrMigrationFailed, m.name, err)
			}
			_, err := tx.NewInsert().Model(&migrationModel{Name: m.name, AppliedAt: time.Now().UTC()}).Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("spool/bun: apply migration %s: %w", m.name, err)
		}

		s.logger.Info("applied migration", "name", m.name)
	}

	return nil
}

func createPrinters(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*printerModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewCreateIndex().Model((*printerModel)(nil)).
		Unique().
		IfNotExists().
		Index("idx_spool_printers_name").
		Column("name").
		Exec(ctx)
	return err
}

func createJobs(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().Model((*jobModel)(nil)).
		IfNotExists().
		ForeignKey(`("printer_id") REFERENCES "spool_printers" ("id") ON DELETE RESTRICT`).
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*jobModel)(nil)).
		Unique().
		IfNotExists().
		Index("idx_spool_jobs_name").
		Column("name").
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*jobModel)(nil)).
		IfNotExists().
		Index("idx_spool_jobs_queue").
		Column("printer_id", "submitted_at", "priority", "id").
		Where("state = 'queued'").
		Exec(ctx)
	return err
}

func createSequences(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().Model((*sequenceModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op because the caller owns the *bun.DB lifecycle.
func (s *Store) Close() error {
	return nil
}
