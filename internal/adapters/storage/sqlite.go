// Package storage provides durable persistence behind the in-memory
// stores: user accounts, cooldown records, and the score itself.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fivemin/harmony/internal/auth"
	"github.com/fivemin/harmony/internal/domain/notes"
)

// SQLiteStore implements auth.UserStore, gate.RecordStore and the
// write-back sink using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. The schema is
// created automatically; parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL improves concurrent read behavior.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			password_hash BLOB NOT NULL,
			created_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS cooldown_records (
			identity  TEXT PRIMARY KEY,
			last_used DATETIME
		);

		CREATE TABLE IF NOT EXISTS notes (
			id          TEXT PRIMARY KEY,
			measure     INTEGER NOT NULL,
			pitch       TEXT NOT NULL,
			duration    INTEGER NOT NULL,
			position    INTEGER NOT NULL,
			initialized INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_notes_measure_position
			ON notes(measure, position);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- auth.UserStore ---

// CreateUser stores a new user account.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return auth.ErrUsernameTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername fetches a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by username.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// --- gate.RecordStore ---

// Load fetches a cooldown record; ok is false when none exists or
// last_used was never set.
func (s *SQLiteStore) Load(ctx context.Context, identity string) (time.Time, bool, error) {
	var lastUsed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT last_used FROM cooldown_records WHERE identity = ?`, identity).Scan(&lastUsed)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("loading cooldown record: %w", err)
	}
	if !lastUsed.Valid {
		return time.Time{}, false, nil
	}
	return lastUsed.Time, true, nil
}

// Save upserts a cooldown record.
func (s *SQLiteStore) Save(ctx context.Context, identity string, lastUsed time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cooldown_records (identity, last_used) VALUES (?, ?)
		ON CONFLICT(identity) DO UPDATE SET last_used = excluded.last_used`,
		identity, lastUsed,
	)
	if err != nil {
		return fmt.Errorf("saving cooldown record: %w", err)
	}
	return nil
}

// --- write-back sink ---

// UpsertNote persists a single point edit.
func (s *SQLiteStore) UpsertNote(ctx context.Context, n notes.Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, measure, pitch, duration, position, initialized)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pitch = excluded.pitch,
			duration = excluded.duration,
			position = excluded.position,
			initialized = excluded.initialized`,
		n.ID, n.Measure, n.Pitch, n.Duration, n.Position, n.Initialized,
	)
	if err != nil {
		return fmt.Errorf("upserting note: %w", err)
	}
	return nil
}

// ReplaceMeasure rewrites the whole content of one measure atomically.
func (s *SQLiteStore) ReplaceMeasure(ctx context.Context, index int, ns []notes.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE measure = ?`, index); err != nil {
		return fmt.Errorf("clearing measure %d: %w", index, err)
	}
	for _, n := range ns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notes (id, measure, pitch, duration, position, initialized)
			VALUES (?, ?, ?, ?, ?, ?)`,
			n.ID, index, n.Pitch, n.Duration, n.Position, n.Initialized,
		); err != nil {
			return fmt.Errorf("inserting note: %w", err)
		}
	}
	return tx.Commit()
}

// LoadScore reads the persisted score ordered by measure and position.
// The result has one slice per measure up to totalMeasures; an empty
// database yields totalMeasures empty slices.
func (s *SQLiteStore) LoadScore(ctx context.Context, totalMeasures int) ([][]notes.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, measure, pitch, duration, position, initialized
		FROM notes ORDER BY measure, position`)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	score := make([][]notes.Note, totalMeasures)
	for rows.Next() {
		var n notes.Note
		if err := rows.Scan(&n.ID, &n.Measure, &n.Pitch, &n.Duration, &n.Position, &n.Initialized); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		if n.Measure < 0 || n.Measure >= totalMeasures {
			return nil, fmt.Errorf("note %s: measure %d outside configured range %d", n.ID, n.Measure, totalMeasures)
		}
		score[n.Measure] = append(score[n.Measure], n)
	}
	return score, rows.Err()
}

// NoteCount returns how many notes are persisted.
func (s *SQLiteStore) NoteCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return n, nil
}
