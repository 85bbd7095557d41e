package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Sentinel errors.
var (
	ErrNoRows            = errors.New("no rows in result set")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrDriverNotLinked   = errors.New("database driver not registered")
)

// IsNoRows returns true if the error indicates no rows were found.
// This handles both pgx.ErrNoRows and sql.ErrNoRows.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrNoRows)
}
