// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"strings"

	"inkwell/internal/database"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// readDB returns the read replica when primary is the shared application connection.
// Repositories built over any other handle (tests, tools) read from that handle.
func readDB(primary *gorm.DB) *gorm.DB {
	if primary != nil && primary == database.DB {
		if db := database.GetReadDB(); db != nil {
			return db
		}
	}
	return primary
}

// isUniqueConstraintError reports whether err is a unique index violation on PostgreSQL or SQLite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "23505")
}
