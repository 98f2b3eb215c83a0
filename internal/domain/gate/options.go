package gate

import "time"

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithTick sets the cooldown duration between gated actions.
func WithTick(tick time.Duration) Option {
	return func(g *Gate) {
		if tick > 0 {
			g.tick = tick
		}
	}
}

// WithClock sets a custom clock, used by tests to control time.
func WithClock(c Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithRecordStore sets the persistence behind cooldown records.
func WithRecordStore(s RecordStore) Option {
	return func(g *Gate) {
		if s != nil {
			g.store = s
		}
	}
}
