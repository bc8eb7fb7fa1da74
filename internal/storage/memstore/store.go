// Package memstore is an in-memory task store. It mirrors gitstore's
// transactional semantics without a repository behind it, which makes it the
// storage of choice for engine and command tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/types"
)

// Store holds tasks and config in memory. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	tasks  map[int]*types.Task
	lastID int
	config map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tasks:  make(map[int]*types.Task),
		config: make(map[string]string),
	}
}

// ListTasks returns clones of all tasks sorted by ID.
func (s *Store) ListTasks(ctx context.Context) ([]*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// GetTask returns a clone of one task.
func (s *Store) GetTask(ctx context.Context, id int) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	return t.Clone(), nil
}

// NextID returns the ID the next created task would get.
func (s *Store) NextID(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastID
	for id := range s.tasks {
		if id > last {
			last = id
		}
	}
	return last + 1, nil
}

// Apply runs the mutations atomically against a scratch copy and swaps it
// in only when every mutation and the validation pass.
func (s *Store) Apply(ctx context.Context, muts ...storage.Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		scratch = append(scratch, t.Clone())
	}
	state := storage.NewState(scratch, s.lastID)
	for _, m := range muts {
		if err := m.Apply(state); err != nil {
			return err
		}
	}
	if err := state.Validate(); err != nil {
		return err
	}

	next := make(map[int]*types.Task, state.Len())
	for _, t := range state.Tasks() {
		next[t.ID] = t
	}
	s.tasks = next
	s.lastID = state.LastID()
	return nil
}

// GetConfig reads a config key.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.config[key]
	if !ok {
		return "", fmt.Errorf("config %s: %w", key, storage.ErrNotFound)
	}
	return value, nil
}

// SetConfig writes a config key.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[key] = value
	return nil
}

// UnsetConfig removes a config key.
func (s *Store) UnsetConfig(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.config[key]; !ok {
		return fmt.Errorf("config %s: %w", key, storage.ErrNotFound)
	}
	delete(s.config, key)
	return nil
}

// ListConfig returns all config entries under prefix.
func (s *Store) ListConfig(ctx context.Context, prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for key, value := range s.config {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out[key] = value
		}
	}
	return out, nil
}
