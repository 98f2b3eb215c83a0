package writeback

import "errors"

// Sentinel kinds for writeback errors.
var (
	ErrClosed = errors.New("writeback queue closed")
)
