// Package storage provides shared types for task storage.
//
// The concrete implementations live in the gitstore and memstore
// sub-packages. This package holds the interface, the working state that
// mutations run against, and the mutation types referenced by both the
// implementations and their consumers (cmd/tl, the sync engine, etc.).
package storage

import (
	"context"
	"errors"

	"github.com/tasklog/tasklog/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrConcurrent is returned when an atomic apply keeps losing to concurrent
// writers after all retries are exhausted.
var ErrConcurrent = errors.New("concurrent modification")

// ErrValidation is returned when a mutation would leave a task in an invalid
// state (empty name, duplicated IDs, malformed values).
var ErrValidation = errors.New("validation failed")

// ErrEncoding is returned when a stored record cannot be decoded or a task
// cannot be serialized.
var ErrEncoding = errors.New("encoding failed")

// Store is the interface satisfied by *gitstore.Store and *memstore.Store.
// Consumers depend on this interface rather than on the concrete type so
// that alternative implementations (mocks, in-memory stores) can be
// substituted.
type Store interface {
	// Task reads
	ListTasks(ctx context.Context) ([]*types.Task, error)
	GetTask(ctx context.Context, id int) (*types.Task, error)
	NextID(ctx context.Context) (int, error)

	// Apply runs the mutations as one atomic transaction: either every
	// mutation takes effect or none does. When the store loses a race to a
	// concurrent writer it reloads and replays the mutations, so mutations
	// must be deterministic given the state they run against.
	Apply(ctx context.Context, muts ...Mutation) error

	// Configuration
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	UnsetConfig(ctx context.Context, key string) error
	ListConfig(ctx context.Context, prefix string) (map[string]string, error)
}

// Mutation is one logical change to the task set.
type Mutation interface {
	// Apply performs the change against the working state. It may run more
	// than once: the store replays mutations against a fresh state after
	// losing a commit race.
	Apply(s *State) error

	// Describe returns a short description of the change for the commit
	// message. It is called after a successful Apply, so mutations that
	// allocate IDs may reference them.
	Describe() string
}
