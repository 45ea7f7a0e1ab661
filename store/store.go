// Package store defines the aggregate persistence interface. Each subsystem
// (job, printer) defines its own store interface. The composite Store
// composes them. Backends: Memory, Postgres, Bun, SQLite, Redis and Mongo.
package store

import (
	"context"

	"github.com/xraph/spool/job"
	"github.com/xraph/spool/printer"
)

// Store is the aggregate persistence interface.
// A single backend (memory, postgres, bun, ...) implements all of them.
type Store interface {
	job.Store
	printer.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
