package store

import "errors"

// ErrNotFound is returned when a requested row does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrBusy is returned when the database stayed locked through every retry
// attempt. The HTTP layer maps it to 503.
var ErrBusy = errors.New("database busy")
