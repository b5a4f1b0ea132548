package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const busyAttempts = 3

// withRetry re-runs fn when SQLite reports the database as busy or locked,
// backing off exponentially (100ms, 200ms, 400ms). Callers must pass
// operations that are side-effect-free on failure so a retry is safe. After
// the last attempt the error is surfaced wrapped in ErrBusy.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		delay := time.Duration(1<<attempt) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w: %v", ErrBusy, err)
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "busy")
}
