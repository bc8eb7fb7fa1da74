package storage

import (
	"fmt"
	"sort"

	"github.com/tasklog/tasklog/internal/types"
)

// State is the working set a transaction's mutations run against. A store
// builds one from its current snapshot, applies the mutations, and persists
// the outcome. The state takes ownership of the tasks passed to NewState;
// callers hand in clones when the originals must stay untouched.
//
// lastID is the ID allocation high-water mark. It only ever grows, so task
// IDs are never reused, even after deletes or a full clear.
type State struct {
	tasks   map[int]*types.Task
	lastID  int
	touched map[int]bool
}

// NewState builds a state from tasks and the persisted high-water mark.
// The effective mark is raised to the highest existing task ID.
func NewState(tasks []*types.Task, lastID int) *State {
	s := &State{
		tasks:   make(map[int]*types.Task, len(tasks)),
		lastID:  lastID,
		touched: make(map[int]bool),
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
		if t.ID > s.lastID {
			s.lastID = t.ID
		}
	}
	return s
}

// Task returns the working copy of a task. Mutations may modify it in place
// but must call Put afterwards so the change is persisted.
func (s *State) Task(id int) (*types.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, nil
}

// Has reports whether a task with the given ID exists.
func (s *State) Has(id int) bool {
	_, ok := s.tasks[id]
	return ok
}

// Tasks returns all tasks sorted by ID.
func (s *State) Tasks() []*types.Task {
	out := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tasks.
func (s *State) Len() int { return len(s.tasks) }

// Put inserts or replaces a task and marks it for persistence. The
// high-water mark is raised when the task carries a higher ID.
func (s *State) Put(t *types.Task) {
	s.tasks[t.ID] = t
	s.touched[t.ID] = true
	if t.ID > s.lastID {
		s.lastID = t.ID
	}
}

// Remove deletes a task. The ID stays burned: lastID is not lowered.
func (s *State) Remove(id int) error {
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	delete(s.touched, id)
	return nil
}

// RemoveAll deletes every task, keeping the high-water mark.
func (s *State) RemoveAll() {
	s.tasks = make(map[int]*types.Task)
	s.touched = make(map[int]bool)
}

// AllocateID hands out the next task ID and advances the high-water mark.
func (s *State) AllocateID() int {
	s.lastID++
	return s.lastID
}

// LastID returns the current high-water mark.
func (s *State) LastID() int { return s.lastID }

// Touched reports whether a task was written during this transaction.
func (s *State) Touched(id int) bool { return s.touched[id] }

// TouchedIDs returns the IDs written during this transaction, sorted.
func (s *State) TouchedIDs() []int {
	ids := make([]int, 0, len(s.touched))
	for id := range s.touched {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Validate checks every task written during this transaction.
func (s *State) Validate() error {
	for _, id := range s.TouchedIDs() {
		t, ok := s.tasks[id]
		if !ok {
			continue
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %d: %w: %w", id, ErrValidation, err)
		}
	}
	return nil
}
