package notes

// Note is a single pitched or rested event within a measure.
// Position is its dense 0-based rank in playback order.
type Note struct {
	ID          string `json:"id"`
	Measure     int    `json:"measure"`
	Pitch       string `json:"pitch"`
	Duration    int    `json:"duration"`
	Position    int    `json:"position"`
	Initialized bool   `json:"initialized"`
}

// MeasureSummary is the read shape returned by measure listings.
type MeasureSummary struct {
	Index     int `json:"index"`
	NoteCount int `json:"note_count"`
}
