package writeback

import "github.com/fivemin/harmony/pkg/logger"

// config holds journal construction settings.
type config struct {
	capacity int
	writers  int
	logger   logger.Logger
}

// Option applies a configuration option to the Journal.
type Option func(*config)

// WithCapacity sets the maximum capacity of the journal queue.
func WithCapacity(capacity int) Option {
	return func(c *config) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithWriters sets how many writers drain the queue.
func WithWriters(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.writers = n
		}
	}
}

// WithLogger sets a custom logger for the journal.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
