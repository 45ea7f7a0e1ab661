package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // register the "sqlite" database/sql driver

	"github.com/xraph/spool/store"
	bunstore "github.com/xraph/spool/store/bun"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a SQLite-backed store.Store. Queries are served by the Bun store
// on the SQLite dialect.
type Store struct {
	*bunstore.Store

	db *bun.DB
}

// Option configures the Store.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// DSN returns the connection string for a database file with foreign keys,
// WAL journaling and a busy timeout enabled.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

// Open opens (creating if needed) the database file at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	sqldb, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("spool/sqlite: open %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection serializes writes
	// instead of surfacing SQLITE_BUSY.
	sqldb.SetMaxOpenConns(1)

	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("spool/sqlite: connect %s: %w", path, err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{
		Store: bunstore.New(db, bunstore.WithLogger(o.logger)),
		db:    db,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
