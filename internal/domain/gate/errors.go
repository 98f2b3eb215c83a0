package gate

import "errors"

// Sentinel kinds for gate errors.
var (
	ErrNotAvailable = errors.New("action not available")
)
