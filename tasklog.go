// Package tasklog provides a minimal public API for embedding the task
// tracker in other Go programs.
//
// Most integrations should shell out to the tl binary. This package exports
// only the essential types and functions needed for Go programs that want
// to read or mutate a repository's task store programmatically.
package tasklog

import (
	"github.com/tasklog/tasklog/internal/git"
	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/storage/gitstore"
	"github.com/tasklog/tasklog/internal/storage/memstore"
	"github.com/tasklog/tasklog/internal/types"
)

// Core types for working with tasks
type (
	Task       = types.Task
	Comment    = types.Comment
	Label      = types.Label
	Link       = types.Link
	Properties = types.Properties
)

// Reserved property names
const (
	PropName        = types.PropName
	PropDescription = types.PropDescription
	PropAuthor      = types.PropAuthor
	PropCreated     = types.PropCreated
	PropStatus      = types.PropStatus
)

// DefaultRef is the git ref task history lives under unless the repository
// configures another one.
const DefaultRef = gitstore.DefaultRef

// Sentinel errors returned by Store operations.
var (
	ErrNotFound   = storage.ErrNotFound
	ErrConcurrent = storage.ErrConcurrent
	ErrValidation = storage.ErrValidation
)

// Store provides the minimal interface for reading and mutating tasks.
type Store = storage.Store

// Mutations applied through Store.Apply. Each Apply call is one commit on
// the task ref; wrap several mutations in a Batch to commit them together.
type (
	Mutation      = storage.Mutation
	Batch         = storage.Batch
	CreateTask    = storage.CreateTask
	SetProperty   = storage.SetProperty
	UnsetProperty = storage.UnsetProperty
	DeleteTask    = storage.DeleteTask
	AddComment    = storage.AddComment
	AddLabel      = storage.AddLabel
)

// Open opens the task store of the git repository containing dir. An empty
// ref selects DefaultRef.
func Open(dir, ref string) (Store, error) {
	repo, err := git.Open(dir)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = DefaultRef
	}
	return gitstore.Open(repo, ref), nil
}

// NewMemStore returns a store backed by process memory, for tests and
// short-lived tooling that never needs to persist.
func NewMemStore() Store {
	return memstore.New()
}
