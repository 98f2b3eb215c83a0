// Package gate tracks per-identity action cooldowns: whether an
// identity may currently perform a gated action, and consumption of
// that permission.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fivemin/harmony/pkg/metrics"
)

// DefaultTick is the cooldown between gated actions.
const DefaultTick = 300 * time.Second

// RecordStore persists cooldown records by identity key. Load reports
// ok=false when no record exists; Save upserts.
type RecordStore interface {
	Load(ctx context.Context, identity string) (lastUsed time.Time, ok bool, err error)
	Save(ctx context.Context, identity string, lastUsed time.Time) error
}

// nopRecordStore keeps the gate purely in-memory when no persistence
// is injected.
type nopRecordStore struct{}

func (nopRecordStore) Load(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (nopRecordStore) Save(context.Context, string, time.Time) error { return nil }

// record holds one identity's cooldown state. The record mutex guards
// both the lazy load from the store and the check-then-set in Consume,
// so two concurrent consumptions cannot both observe "available".
type record struct {
	mu       sync.Mutex
	loaded   bool
	hasLast  bool
	lastUsed time.Time
}

// Gate answers, per identity, whether a gated action is permitted now,
// and records consumption. An identity is Available when it has no
// record or its cooldown has elapsed; Cooling otherwise. Cooling to
// Available is derived at read time, never by transition code.
type Gate struct {
	tick  time.Duration
	clock Clock
	store RecordStore

	mu      sync.Mutex
	records map[string]*record
}

// New constructs a Gate with default configuration.
func New(opts ...Option) *Gate {
	g := &Gate{
		tick:    DefaultTick,
		clock:   systemClock{},
		store:   nopRecordStore{},
		records: make(map[string]*record),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Tick returns the configured cooldown duration.
func (g *Gate) Tick() time.Duration { return g.tick }

// get returns the identity's record, creating it lazily.
func (g *Gate) get(identity string) *record {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.records[identity]
	if !ok {
		r = &record{}
		g.records[identity] = r
	}
	return r
}

// ensureLoaded pulls the persisted record on first touch. Caller holds r.mu.
func (g *Gate) ensureLoaded(ctx context.Context, identity string, r *record) error {
	if r.loaded {
		return nil
	}
	lastUsed, ok, err := g.store.Load(ctx, identity)
	if err != nil {
		return fmt.Errorf("load cooldown record for %s: %w", identity, err)
	}
	r.loaded = true
	r.hasLast = ok
	r.lastUsed = lastUsed
	return nil
}

// remainingLocked computes the whole seconds left before the identity's
// action becomes available. Caller holds r.mu.
func (g *Gate) remainingLocked(r *record) int64 {
	if !r.hasLast {
		return 0
	}
	rem := g.tick - g.clock.Now().Sub(r.lastUsed)
	if rem <= 0 {
		return 0
	}
	// Truncate toward zero at whole-second granularity.
	return int64(rem / time.Second)
}

// Remaining returns the seconds until the identity may act again;
// 0 means the action is available now.
func (g *Gate) Remaining(ctx context.Context, identity string) (int64, error) {
	r := g.get(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := g.ensureLoaded(ctx, identity, r); err != nil {
		return 0, err
	}
	return g.remainingLocked(r), nil
}

// Available reports whether the identity may perform a gated action now.
func (g *Gate) Available(ctx context.Context, identity string) (bool, error) {
	rem, err := g.Remaining(ctx, identity)
	if err != nil {
		return false, err
	}
	return rem == 0, nil
}

// Consume records an action for the identity. It fails with
// ErrNotAvailable, changing nothing, while the cooldown is active.
// The check and the set happen under the identity's record lock, so of
// N concurrent calls starting when available exactly one succeeds.
func (g *Gate) Consume(ctx context.Context, identity string) error {
	r := g.get(identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := g.ensureLoaded(ctx, identity, r); err != nil {
		return err
	}
	if g.remainingLocked(r) > 0 {
		metrics.RecordGateConsumeConflict()
		return ErrNotAvailable
	}

	now := g.clock.Now()
	if err := g.store.Save(ctx, identity, now); err != nil {
		metrics.RecordErrorByComponent("gate", "save_failed")
		return fmt.Errorf("save cooldown record for %s: %w", identity, err)
	}
	r.hasLast = true
	r.lastUsed = now
	metrics.RecordGateConsume()
	return nil
}

// Size returns the number of identities with in-memory records.
func (g *Gate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}
