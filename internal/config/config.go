// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - Layer file and environment overrides on top via Load.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath locates the SQLite database file.
	DBPath string `koanf:"db_path"`

	// JWTSecret signs access tokens. Must be set in production.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTLMinutes bounds access token lifetime.
	TokenTTLMinutes int `koanf:"token_ttl_minutes"`

	// ActionTickSeconds is the cooldown between edits per user.
	ActionTickSeconds int `koanf:"action_tick_seconds"`

	// TotalMeasures sets the length of the shared score.
	TotalMeasures int `koanf:"total_measures"`

	// NotesPerMeasure sets how many rests seed each empty measure.
	NotesPerMeasure int `koanf:"notes_per_measure"`

	// WritebackQueueSize bounds the persistence journal queue.
	WritebackQueueSize int `koanf:"writeback_queue_size"`

	// WritebackWriters sets the number of journal writers.
	WritebackWriters int `koanf:"writeback_writers"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and is
// currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":8080",
		DBPath:             "harmony.db",
		JWTSecret:          "dev-secret-change-me",
		TokenTTLMinutes:    60,
		ActionTickSeconds:  300,
		TotalMeasures:      16,
		NotesPerMeasure:    4,
		WritebackQueueSize: 4096,
		WritebackWriters:   2,
	}
}

// TokenTTL returns the token lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// ActionTick returns the edit cooldown as a duration.
func (c *Config) ActionTick() time.Duration {
	return time.Duration(c.ActionTickSeconds) * time.Second
}
