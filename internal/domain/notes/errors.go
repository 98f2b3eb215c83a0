package notes

import "errors"

// Sentinel kinds for note store errors.
var (
	ErrNoteNotFound    = errors.New("note not found")
	ErrMeasureNotFound = errors.New("measure not found")
	ErrInvalidPitch    = errors.New("pitch not recognized")
	ErrInvalidDuration = errors.New("duration out of bounds")
	ErrTooFewNotes     = errors.New("not enough valid note ids")
	ErrCrossMeasure    = errors.New("notes span multiple measures")
	ErrPitchMismatch   = errors.New("merged notes must share a pitch")
)
