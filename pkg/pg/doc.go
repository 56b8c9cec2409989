// Package pg wires PostgreSQL through pgx: pool creation with retries,
// goose migrations from an embedded filesystem, transaction helpers and
// error classifiers.
package pg
