// Package postgres implements the store using pgx/v5 with raw SQL.
// Jobs are claimed with a conditional UPDATE, job names draw from a
// database sequence, and the schema ships as embedded SQL migrations.
package postgres
