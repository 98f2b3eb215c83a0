package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fivemin/harmony/internal/adapters/storage"
	"github.com/fivemin/harmony/internal/domain/gate"
	"github.com/fivemin/harmony/internal/domain/notes"
	"github.com/fivemin/harmony/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func startService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s := New(opts...)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func firstNoteID(t *testing.T, s *Service) string {
	t.Helper()
	ns, err := s.MeasureNotes(context.Background(), 0)
	if err != nil {
		t.Fatalf("MeasureNotes: %v", err)
	}
	if len(ns) == 0 {
		t.Fatal("measure 0 is empty")
	}
	return ns[0].ID
}

func TestEditSpendsAction(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := startService(t, WithClock(clock), WithTotalMeasures(2))
	id := firstNoteID(t, s)

	n, err := s.EditPitch(ctx, "alice", id, "C5")
	if err != nil {
		t.Fatalf("first edit: %v", err)
	}
	if n.Pitch != "C5" || !n.Initialized {
		t.Errorf("edited note = %+v", n)
	}

	clock.Advance(time.Second)
	if _, err := s.EditPitch(ctx, "alice", id, "D5"); !errors.Is(err, gate.ErrNotAvailable) {
		t.Fatalf("edit during cooldown: %v", err)
	}
	// The rejected edit must not have touched the score.
	got, _ := s.Note(ctx, id)
	if got.Pitch != "C5" {
		t.Errorf("pitch after rejected edit = %s", got.Pitch)
	}

	clock.Advance(300 * time.Second)
	if _, err := s.EditPitch(ctx, "alice", id, "D5"); err != nil {
		t.Fatalf("edit after cooldown: %v", err)
	}
}

func TestFailedEditKeepsAction(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := startService(t, WithClock(clock), WithTotalMeasures(1))
	id := firstNoteID(t, s)

	if _, err := s.EditPitch(ctx, "bob", id, "H9"); !errors.Is(err, notes.ErrInvalidPitch) {
		t.Fatalf("expected ErrInvalidPitch, got %v", err)
	}
	if _, err := s.EditDuration(ctx, "bob", "no-such-note", 8); !errors.Is(err, notes.ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}

	// Failed edits are free; a valid one still goes through.
	if _, err := s.EditPitch(ctx, "bob", id, "G4"); err != nil {
		t.Fatalf("valid edit after failures: %v", err)
	}
}

func TestIdentitiesCoolDownIndependently(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := startService(t, WithClock(clock), WithTotalMeasures(1))
	id := firstNoteID(t, s)

	if _, err := s.EditPitch(ctx, "alice", id, "C5"); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if _, err := s.EditPitch(ctx, "bob", id, "D5"); err != nil {
		t.Fatalf("bob: %v", err)
	}
}

func TestMergeNotes(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := startService(t, WithClock(clock), WithTotalMeasures(1), WithTick(time.Second))

	ns, _ := s.MeasureNotes(ctx, 0)
	if len(ns) < 2 {
		t.Fatalf("need 2 notes, have %d", len(ns))
	}
	// Seeded rests share a pitch, so the first two merge.
	merged, err := s.MergeNotes(ctx, "carol", []string{ns[0].ID, ns[1].ID})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Duration != ns[0].Duration+ns[1].Duration {
		t.Errorf("merged duration = %d", merged.Duration)
	}

	after, _ := s.MeasureNotes(ctx, 0)
	if len(after) != len(ns)-1 {
		t.Errorf("measure has %d notes after merge, want %d", len(after), len(ns)-1)
	}
}

func TestHasAction(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := startService(t, WithClock(clock), WithTotalMeasures(1))
	id := firstNoteID(t, s)

	ok, remaining, err := s.HasAction(ctx, "dave")
	if err != nil || !ok || remaining != 0 {
		t.Fatalf("fresh identity: ok=%v remaining=%d err=%v", ok, remaining, err)
	}

	if _, err := s.EditPitch(ctx, "dave", id, "E4"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	clock.Advance(40 * time.Second)
	ok, remaining, err = s.HasAction(ctx, "dave")
	if err != nil || ok {
		t.Fatalf("cooling identity: ok=%v err=%v", ok, err)
	}
	if remaining != 260 {
		t.Errorf("remaining = %d, want 260", remaining)
	}
}

func TestScoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	clock := &fakeClock{t: time.Unix(1000, 0)}

	s := New(WithStorage(st), WithClock(clock), WithTotalMeasures(2))
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := firstNoteID(t, s)
	if _, err := s.EditPitch(ctx, "erin", id, "B4"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	s.Stop() // drains the journal

	s2 := New(WithStorage(st), WithClock(clock), WithTotalMeasures(2))
	if err := s2.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s2.Stop()

	got, err := s2.Note(ctx, id)
	if err != nil {
		t.Fatalf("Note after restart: %v", err)
	}
	if got.Pitch != "B4" || !got.Initialized {
		t.Errorf("restored note = %+v", got)
	}

	// The cooldown is durable too.
	clock.Advance(time.Second)
	ok, _, err := s2.HasAction(ctx, "erin")
	if err != nil {
		t.Fatalf("HasAction: %v", err)
	}
	if ok {
		t.Error("cooldown lost across restart")
	}
}

func TestGetStats(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := startService(t, WithClock(clock), WithTotalMeasures(4), WithNotesPerMeasure(4))

	stats := s.GetStats()
	if stats["started"] != true {
		t.Error("stats missing started=true")
	}
	if stats["noteCount"] != 16 {
		t.Errorf("noteCount = %v, want 16", stats["noteCount"])
	}
}
