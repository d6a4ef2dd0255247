package store

import "strings"

// isSQLiteConflictError checks for SQLITE_BUSY / "database is locked"
// concurrency errors, which warrant a bounded retry.
func isSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
