package storage

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound = errors.New("not found")
)
