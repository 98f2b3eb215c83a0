package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fivemin/harmony/internal/auth"
	"github.com/fivemin/harmony/internal/domain/notes"
)

// MemoryStore is an in-memory stand-in for SQLiteStore, used by tests
// and by deployments that do not want a database file.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*auth.User // by id
	byName   map[string]string     // username -> id
	records  map[string]time.Time  // identity -> last_used
	measures map[int][]notes.Note
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*auth.User),
		byName:   make(map[string]string),
		records:  make(map[string]time.Time),
		measures: make(map[int][]notes.Note),
	}
}

// --- auth.UserStore ---

func (s *MemoryStore) CreateUser(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[u.Username]; exists {
		return auth.ErrUsernameTaken
	}
	cp := *u
	s.users[u.ID] = &cp
	s.byName[u.Username] = u.ID
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// CountUsers returns the number of registered users.
func (s *MemoryStore) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// --- gate.RecordStore ---

func (s *MemoryStore) Load(_ context.Context, identity string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.records[identity]
	return t, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, identity string, lastUsed time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[identity] = lastUsed
	return nil
}

// --- write-back sink ---

func (s *MemoryStore) UpsertNote(_ context.Context, n notes.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.measures[n.Measure]
	for i := range ns {
		if ns[i].ID == n.ID {
			ns[i] = n
			return nil
		}
	}
	s.measures[n.Measure] = append(ns, n)
	return nil
}

func (s *MemoryStore) ReplaceMeasure(_ context.Context, index int, ns []notes.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measures[index] = append([]notes.Note(nil), ns...)
	return nil
}

// LoadScore returns the stored score ordered by position.
func (s *MemoryStore) LoadScore(_ context.Context, totalMeasures int) ([][]notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score := make([][]notes.Note, totalMeasures)
	for i := 0; i < totalMeasures; i++ {
		ns := append([]notes.Note(nil), s.measures[i]...)
		sort.Slice(ns, func(a, b int) bool { return ns[a].Position < ns[b].Position })
		score[i] = ns
	}
	return score, nil
}

// NoteCount returns how many notes are stored.
func (s *MemoryStore) NoteCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ns := range s.measures {
		n += len(ns)
	}
	return n, nil
}
