package store

import (
	"context"
	"strings"
	"time"
)

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isConflict reports whether err is SQLITE_BUSY or "database is locked".
// Both are transient concurrency errors that warrant a retry.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry runs fn, retrying a few times on SQLite lock conflicts.
func withRetry(ctx context.Context, fn func() error) error {
	const attempts = 3
	backoff := 20 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !isConflict(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
