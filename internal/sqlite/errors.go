package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ganot/feapi/internal/repository"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// unavailableMarkers are driver messages meaning the backend itself is unusable.
var unavailableMarkers = []string{
	"database is closed",
	"unable to open database file",
	"disk I/O error",
	"database is locked",
	"SQLITE_BUSY",
	"out of memory",
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return true
	}
	msg := err.Error()
	for _, marker := range unavailableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// mapDriverError tags backend failures with repository.ErrStoreUnavailable and
// duplicate keys with repository.ErrConflict.
func mapDriverError(err error) error {
	switch {
	case err == nil:
		return nil
	case isUnavailable(err):
		return fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", repository.ErrConflict, err)
	default:
		return err
	}
}
