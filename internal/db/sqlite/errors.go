package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/thebtf/engram/pkg/models"
)

// classifyErr maps a raw database/sql or modernc.org/sqlite error into the
// taxonomy Kind callers switch on (spec §7). Driver error values are plain
// strings from SQLite's error messages, so classification is substring
// based rather than type-asserted.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "no such table") && strings.Contains(msg, "fts"):
		return models.NewError(models.KindFtsUnavailable, err)
	case strings.Contains(msg, "fts5"):
		return models.NewError(models.KindFtsUnavailable, err)
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "unable to open database file"),
		strings.Contains(msg, "disk i/o error"),
		strings.Contains(msg, "database disk image is malformed"):
		return models.NewError(models.KindStoreUnavailable, err)
	case strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "constraint failed"):
		return models.NewError(models.KindValidationFailed, err)
	default:
		return models.NewError(models.KindStoreUnavailable, err)
	}
}

// isUniqueConstraintErr reports whether err represents a UNIQUE/PRIMARY KEY
// constraint violation, distinguishing expected races (e.g. dedup) from
// genuine store failures.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// IsNotFound reports whether err is sql.ErrNoRows or wraps it.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
