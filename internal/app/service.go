// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fivemin/harmony/internal/adapters/mq/writeback"
	"github.com/fivemin/harmony/internal/domain/gate"
	"github.com/fivemin/harmony/internal/domain/notes"
	"github.com/fivemin/harmony/pkg/logger"
	"github.com/fivemin/harmony/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultTotalMeasures   = 16
	defaultNotesPerMeasure = 4
)

// Storage is the durable backing for the score and the action ledger.
// Both the SQLite and the in-memory adapters satisfy it.
type Storage interface {
	writeback.Sink
	gate.RecordStore
	LoadScore(ctx context.Context, totalMeasures int) ([][]notes.Note, error)
}

// Service owns the shared score and charges one action per edit.
type Service struct {
	mu sync.RWMutex

	// Core components
	score   *notes.Store
	actions *gate.Gate
	journal *writeback.Journal
	storage Storage

	// Configuration
	tick               time.Duration
	clock              gate.Clock
	totalMeasures      int
	notesPerMeasure    int
	writebackQueueSize int
	writebackWriters   int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStorage sets the durable backing store.
func WithStorage(st Storage) Option {
	return func(s *Service) {
		if st != nil {
			s.storage = st
		}
	}
}

// WithTick sets the cooldown between edits per identity.
func WithTick(tick time.Duration) Option {
	return func(s *Service) {
		if tick > 0 {
			s.tick = tick
		}
	}
}

// WithClock sets the time source for the action gate.
func WithClock(c gate.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTotalMeasures sets the length of the shared score.
func WithTotalMeasures(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.totalMeasures = n
		}
	}
}

// WithNotesPerMeasure sets how many rests seed each empty measure.
func WithNotesPerMeasure(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.notesPerMeasure = n
		}
	}
}

// WithWritebackQueueSize sets the capacity of the persistence journal.
func WithWritebackQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.writebackQueueSize = n
		}
	}
}

// WithWritebackWriters sets the number of journal writers.
func WithWritebackWriters(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.writebackWriters = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tick:            gate.DefaultTick,
		clock:           gate.SystemClock(),
		totalMeasures:   defaultTotalMeasures,
		notesPerMeasure: defaultNotesPerMeasure,
		logger:          nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting score service...")

	// Initialize components
	storeOpts := []notes.Option{}
	gateOpts := []gate.Option{
		gate.WithTick(s.tick),
		gate.WithClock(s.clock),
	}

	if s.storage != nil {
		s.journal = writeback.New(s.storage,
			writeback.WithCapacity(s.writebackQueueSize),
			writeback.WithWriters(s.writebackWriters),
		)
		s.journal.Start(ctx)
		storeOpts = append(storeOpts, notes.WithJournal(s.journal))
		gateOpts = append(gateOpts, gate.WithRecordStore(s.storage))
	}

	s.score = notes.NewStore(storeOpts...)
	s.actions = gate.New(gateOpts...)

	if err := s.restoreScore(ctx); err != nil {
		return err
	}

	s.started = true
	s.logger.Info(ctx, "score service started",
		logger.Int("measures", s.score.MeasureCount()),
		logger.Int("notes", s.score.NoteCount()),
		logger.Duration("tick", s.tick),
	)

	return nil
}

// restoreScore loads the persisted score or seeds a fresh one when the
// store is empty.
func (s *Service) restoreScore(ctx context.Context) error {
	if s.storage == nil {
		s.score.Seed(s.totalMeasures, s.notesPerMeasure)
		return nil
	}

	persisted, err := s.storage.LoadScore(ctx, s.totalMeasures)
	if err != nil {
		return err
	}
	empty := true
	for _, m := range persisted {
		if len(m) > 0 {
			empty = false
			break
		}
	}
	if empty {
		s.logger.Info(ctx, "no persisted score found, seeding")
		s.score.Seed(s.totalMeasures, s.notesPerMeasure)
		return nil
	}
	return s.score.Load(persisted)
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping score service...")

	// Drain the persistence journal
	if s.journal != nil {
		if err := s.journal.Shutdown(ctx); err != nil {
			s.logger.Error(ctx, "journal drain failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "score service stopped")
}

// EditPitch spends one action to change a note's pitch.
func (s *Service) EditPitch(ctx context.Context, identity, noteID, pitch string) (notes.Note, error) {
	return s.withAction(ctx, identity, "pitch", func() (notes.Note, error) {
		return s.score.SetPitch(noteID, pitch)
	})
}

// EditDuration spends one action to change a note's duration.
func (s *Service) EditDuration(ctx context.Context, identity, noteID string, duration int) (notes.Note, error) {
	return s.withAction(ctx, identity, "duration", func() (notes.Note, error) {
		return s.score.SetDuration(noteID, duration)
	})
}

// MergeNotes spends one action to combine same-pitch notes of one
// measure into a single note.
func (s *Service) MergeNotes(ctx context.Context, identity string, noteIDs []string) (notes.Note, error) {
	return s.withAction(ctx, identity, "merge", func() (notes.Note, error) {
		return s.score.Merge(noteIDs)
	})
}

// withAction runs a score mutation under the one-action-per-tick rule.
// The mutation is applied first and the action charged after; if the
// charge fails the edit stands and the discrepancy is logged.
func (s *Service) withAction(ctx context.Context, identity, op string, fn func() (notes.Note, error)) (notes.Note, error) {
	ok, err := s.actions.Available(ctx, identity)
	if err != nil {
		metrics.RecordEditRejected(op, "gate_error")
		return notes.Note{}, err
	}
	if !ok {
		metrics.RecordEditRejected(op, "cooldown")
		return notes.Note{}, gate.ErrNotAvailable
	}

	n, err := fn()
	if err != nil {
		metrics.RecordEditRejected(op, rejectReason(err))
		return notes.Note{}, err
	}

	if cerr := s.actions.Consume(ctx, identity); cerr != nil {
		// The edit is already in; an uncharged action is the lesser harm.
		s.logger.Error(ctx, "edit applied but action not consumed",
			logger.String("identity", identity),
			logger.String("operation", op),
			logger.Error(cerr),
		)
	}

	metrics.RecordEdit(op)
	s.logger.Debug(ctx, "edit applied",
		logger.String("identity", identity),
		logger.String("operation", op),
		logger.String("noteID", n.ID),
	)
	return n, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		return "note_not_found"
	case errors.Is(err, notes.ErrInvalidPitch):
		return "invalid_pitch"
	case errors.Is(err, notes.ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, notes.ErrTooFewNotes):
		return "too_few_notes"
	case errors.Is(err, notes.ErrCrossMeasure):
		return "cross_measure"
	case errors.Is(err, notes.ErrPitchMismatch):
		return "pitch_mismatch"
	default:
		return "internal"
	}
}

// Note returns a single note by id.
func (s *Service) Note(_ context.Context, id string) (notes.Note, error) {
	return s.score.Get(id)
}

// Measures returns a summary of every measure in score order.
func (s *Service) Measures(_ context.Context) []notes.MeasureSummary {
	return s.score.ListMeasures()
}

// MeasureNotes returns the notes of one measure in position order.
func (s *Service) MeasureNotes(_ context.Context, index int) ([]notes.Note, error) {
	return s.score.ListNotes(index)
}

// HasAction reports whether identity may edit now, and if not, the
// whole seconds left until it may.
func (s *Service) HasAction(ctx context.Context, identity string) (bool, int64, error) {
	remaining, err := s.actions.Remaining(ctx, identity)
	if err != nil {
		return false, 0, err
	}
	return remaining == 0, remaining, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"tickSeconds":   int64(s.tick / time.Second),
		"totalMeasures": s.totalMeasures,
	}

	if s.started {
		noteCount := s.score.NoteCount()
		stats["noteCount"] = noteCount
		stats["trackedIdentities"] = s.actions.Size()
		if s.journal != nil {
			stats["writebackPending"] = s.journal.Pending()
		}

		// Update metrics
		metrics.UpdateNotesTotal(noteCount)
		metrics.UpdateMeasuresTotal(s.score.MeasureCount())
	}

	return stats
}
