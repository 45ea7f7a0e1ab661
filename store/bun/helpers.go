package bunstore

import (
	"database/sql"
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// SQLite extended result codes, as reported by modernc.org/sqlite.
const (
	sqliteConstraintForeignKey = 787
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey reports a unique violation: PostgreSQL 23505, or the
// SQLite unique and primary key constraint codes.
func isDuplicateKey(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	code := sqliteCode(err)
	return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey
}

// isForeignKeyViolation reports PostgreSQL 23503 or its SQLite equivalent.
func isForeignKeyViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23503"
	}
	return sqliteCode(err) == sqliteConstraintForeignKey
}

// sqliteCode extracts the extended result code from a driver error without
// importing the driver.
func sqliteCode(err error) int {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return 0
}
