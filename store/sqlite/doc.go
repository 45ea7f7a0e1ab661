// Package sqlite implements store.Store on an embedded SQLite database
// using the pure-Go modernc.org/sqlite driver and the Bun SQLite dialect.
// Suitable for single-node deployments, CLI tools, and tests.
//
// Unlike bunstore, the sqlite Store owns its database handle:
//
//	s, err := sqlite.Open(ctx, "/var/lib/spool/spool.db")
//	if err != nil { ... }
//	defer s.Close()
//	s.Migrate(ctx)
package sqlite
