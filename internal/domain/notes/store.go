package notes

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fivemin/harmony/pkg/metrics"
)

// In-memory note store.
//
// Ordering: within a measure, the slice index IS the position; every
// structural change renumbers explicitly so the two never drift apart.
// Per-measure mutexes serialize mutation within a measure while leaving
// disjoint measures free to proceed in parallel. The id index has its
// own lock and is only ever taken after a measure lock, never before.

// Journal receives committed mutations so a persistence adapter can
// write them behind the in-memory authority. Implementations must not
// block; they are called with measure locks held.
type Journal interface {
	// NoteUpdated reports an in-place point edit.
	NoteUpdated(n Note)
	// MeasureRewritten reports a structural change; notes is the full
	// post-change content of the measure in position order.
	MeasureRewritten(index int, notes []Note)
}

// nopJournal is the default journal when none is injected.
type nopJournal struct{}

func (nopJournal) NoteUpdated(Note)            {}
func (nopJournal) MeasureRewritten(int, []Note) {}

type measure struct {
	mu    sync.Mutex
	notes []Note // index == position
}

// Store holds the score and preserves the dense-position invariant
// across concurrent point edits and merges.
type Store struct {
	journal Journal

	measures []*measure

	idmu sync.RWMutex
	byID map[string]int // note id -> measure index
}

// NewStore constructs an empty store with configuration options.
// The score content comes from Seed or Load before serving edits.
func NewStore(opts ...Option) *Store {
	s := &Store{
		journal: nopJournal{},
		byID:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed replaces the whole score with totalMeasures measures of
// notesPerMeasure uninitialized rests each. It must not run
// concurrently with edits; it is an initialization-time operation.
func (s *Store) Seed(totalMeasures, notesPerMeasure int) {
	measures := make([]*measure, totalMeasures)
	byID := make(map[string]int, totalMeasures*notesPerMeasure)
	for i := range measures {
		m := &measure{notes: make([]Note, notesPerMeasure)}
		for p := range m.notes {
			id := uuid.NewString()
			m.notes[p] = Note{
				ID:       id,
				Measure:  i,
				Pitch:    PitchRest,
				Duration: DefaultRestDuration,
				Position: p,
			}
			byID[id] = i
		}
		measures[i] = m
	}

	s.idmu.Lock()
	s.measures = measures
	s.byID = byID
	s.idmu.Unlock()

	for i, m := range measures {
		s.journal.MeasureRewritten(i, append([]Note(nil), m.notes...))
	}
	metrics.UpdateMeasuresTotal(totalMeasures)
	metrics.UpdateNotesTotal(totalMeasures * notesPerMeasure)
}

// Load replaces the whole score with previously persisted content.
// score[i] must be the notes of measure i in position order. Like Seed,
// it must not run concurrently with edits.
func (s *Store) Load(score [][]Note) error {
	measures := make([]*measure, len(score))
	byID := make(map[string]int)
	total := 0
	for i, ns := range score {
		m := &measure{notes: make([]Note, len(ns))}
		for p, n := range ns {
			if n.Position != p {
				return fmt.Errorf("measure %d: position %d at index %d breaks dense ordering", i, n.Position, p)
			}
			n.Measure = i
			m.notes[p] = n
			byID[n.ID] = i
		}
		measures[i] = m
		total += len(ns)
	}

	s.idmu.Lock()
	s.measures = measures
	s.byID = byID
	s.idmu.Unlock()

	metrics.UpdateMeasuresTotal(len(score))
	metrics.UpdateNotesTotal(total)
	return nil
}

// locate returns the measure holding the note, or nil when unknown.
func (s *Store) locate(id string) *measure {
	s.idmu.RLock()
	defer s.idmu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil
	}
	return s.measures[idx]
}

// Get returns the note with the given id.
func (s *Store) Get(id string) (Note, error) {
	m := s.locate(id)
	if m == nil {
		return Note{}, ErrNoteNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notes {
		if n.ID == id {
			return n, nil
		}
	}
	return Note{}, ErrNoteNotFound
}

// SetPitch updates a note's pitch in place. Position is unchanged and
// the note becomes initialized.
func (s *Store) SetPitch(id, pitch string) (Note, error) {
	if !ValidPitch(pitch) {
		return Note{}, fmt.Errorf("%w: %q", ErrInvalidPitch, pitch)
	}
	return s.pointEdit(id, func(n *Note) {
		n.Pitch = pitch
	})
}

// SetDuration updates a note's duration in place, symmetric to SetPitch.
func (s *Store) SetDuration(id string, duration int) (Note, error) {
	if !ValidDuration(duration) {
		return Note{}, fmt.Errorf("%w: %d", ErrInvalidDuration, duration)
	}
	return s.pointEdit(id, func(n *Note) {
		n.Duration = duration
	})
}

func (s *Store) pointEdit(id string, apply func(*Note)) (Note, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreMutationLatency(float64(time.Since(start).Milliseconds()))
	}()

	m := s.locate(id)
	if m == nil {
		return Note{}, ErrNoteNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notes {
		if m.notes[i].ID == id {
			apply(&m.notes[i])
			m.notes[i].Initialized = true
			s.journal.NoteUpdated(m.notes[i])
			return m.notes[i], nil
		}
	}
	return Note{}, ErrNoteNotFound
}

// Merge replaces the given notes with a single note carrying their
// shared pitch and summed duration, inserted at the smallest of their
// positions, then renumbers the measure to a dense 0-based sequence.
// Any failure leaves the store unchanged.
func (s *Store) Merge(ids []string) (Note, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreMutationLatency(float64(time.Since(start).Milliseconds()))
	}()

	ids = dedupe(ids)
	if len(ids) < 2 {
		return Note{}, ErrTooFewNotes
	}

	// Resolve the target measure. Every id must exist and they must all
	// agree on the measure, otherwise renumbering is meaningless.
	s.idmu.RLock()
	var m *measure
	for i, id := range ids {
		idx, ok := s.byID[id]
		if !ok {
			s.idmu.RUnlock()
			return Note{}, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
		}
		if i == 0 {
			m = s.measures[idx]
		} else if s.measures[idx] != m {
			s.idmu.RUnlock()
			return Note{}, ErrCrossMeasure
		}
	}
	s.idmu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-resolve under the measure lock; a concurrent merge may have
	// consumed some of the ids since the index lookup.
	merged := make(map[string]bool, len(ids))
	var (
		minPos      = -1
		sumDuration int
		pitch       string
		measureIdx  int
	)
	for i, id := range ids {
		n, ok := findNote(m.notes, id)
		if !ok {
			return Note{}, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
		}
		if i == 0 {
			pitch = n.Pitch
			measureIdx = n.Measure
		} else if n.Pitch != pitch {
			return Note{}, fmt.Errorf("%w: %q vs %q", ErrPitchMismatch, pitch, n.Pitch)
		}
		if minPos < 0 || n.Position < minPos {
			minPos = n.Position
		}
		sumDuration += n.Duration
		merged[id] = true
	}

	combined := Note{
		ID:          uuid.NewString(),
		Measure:     measureIdx,
		Pitch:       pitch,
		Duration:    sumDuration,
		Initialized: true,
	}

	// Rebuild the measure: survivors keep their relative order, the
	// combined note takes the smallest merged position, and positions
	// are reassigned densely from 0.
	rebuilt := make([]Note, 0, len(m.notes)-len(merged)+1)
	inserted := false
	for _, n := range m.notes {
		if n.Position >= minPos && !inserted {
			rebuilt = append(rebuilt, combined)
			inserted = true
		}
		if merged[n.ID] {
			continue
		}
		rebuilt = append(rebuilt, n)
	}
	if !inserted {
		rebuilt = append(rebuilt, combined)
	}
	for i := range rebuilt {
		rebuilt[i].Position = i
	}
	m.notes = rebuilt

	s.idmu.Lock()
	for id := range merged {
		delete(s.byID, id)
	}
	s.byID[combined.ID] = measureIdx
	total := len(s.byID)
	s.idmu.Unlock()

	combined.Position = positionOf(rebuilt, combined.ID)
	s.journal.MeasureRewritten(measureIdx, append([]Note(nil), rebuilt...))
	metrics.RecordMergedNotes(len(merged))
	metrics.UpdateNotesTotal(total)
	return combined, nil
}

// ListMeasures returns summaries of all measures in index order.
func (s *Store) ListMeasures() []MeasureSummary {
	s.idmu.RLock()
	measures := s.measures
	s.idmu.RUnlock()

	out := make([]MeasureSummary, len(measures))
	for i, m := range measures {
		m.mu.Lock()
		out[i] = MeasureSummary{Index: i, NoteCount: len(m.notes)}
		m.mu.Unlock()
	}
	return out
}

// ListNotes returns the notes of one measure ordered by position.
func (s *Store) ListNotes(measureIndex int) ([]Note, error) {
	s.idmu.RLock()
	measures := s.measures
	s.idmu.RUnlock()

	if measureIndex < 0 || measureIndex >= len(measures) {
		return nil, fmt.Errorf("%w: %d", ErrMeasureNotFound, measureIndex)
	}
	m := measures[measureIndex]
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Note(nil), m.notes...), nil
}

// MeasureCount returns the number of measures.
func (s *Store) MeasureCount() int {
	s.idmu.RLock()
	defer s.idmu.RUnlock()
	return len(s.measures)
}

// NoteCount returns the total number of notes in the score.
func (s *Store) NoteCount() int {
	s.idmu.RLock()
	defer s.idmu.RUnlock()
	return len(s.byID)
}

func findNote(ns []Note, id string) (Note, bool) {
	for _, n := range ns {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

func positionOf(ns []Note, id string) int {
	for _, n := range ns {
		if n.ID == id {
			return n.Position
		}
	}
	return -1
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
