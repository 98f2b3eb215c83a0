// Package notes maintains the shared score: per-measure, gapless
// 0-based orderings of notes with point edits and merge operations.
package notes

// PitchRest is the pitch of an unplayed note.
const PitchRest = "rest"

// Treble clef staff pitches accepted for point edits, plus rest.
var treblePitches = map[string]struct{}{
	"E4": {}, "F4": {}, "G4": {}, "A4": {}, "B4": {},
	"C5": {}, "D5": {}, "E5": {}, "F5": {},
	PitchRest: {},
}

// Note durations accepted for point edits (whole through sixteenth).
var durations = map[int]struct{}{
	1: {}, 2: {}, 4: {}, 8: {}, 16: {},
}

// DefaultRestDuration is the duration of seeded uninitialized rests.
const DefaultRestDuration = 4

// ValidPitch reports whether p is in the fixed pitch enumeration.
func ValidPitch(p string) bool {
	_, ok := treblePitches[p]
	return ok
}

// ValidDuration reports whether d is in the fixed duration enumeration.
// Merged notes carry summed durations and are exempt from this check.
func ValidDuration(d int) bool {
	_, ok := durations[d]
	return ok
}
