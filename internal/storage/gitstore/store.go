// Package gitstore persists tasks as git objects: one JSON blob per task,
// named by its decimal ID at the root of a tree, with a commit chain under a
// dedicated ref recording every change.
//
// Writes are atomic. A transaction snapshots the ref, applies its mutations
// to an in-memory state, writes the new tree and commit, and advances the
// ref with a compare-and-swap. Losing the swap to a concurrent writer
// reloads the snapshot and replays the mutations.
package gitstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tasklog/tasklog/internal/git"
	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/types"
)

// DefaultRef is where tasks live unless task.ref says otherwise.
const DefaultRef = "refs/tasks/tasks"

// lastIDKey is the git config key holding the ID allocation high-water
// mark. It outlives deletes and clears so task IDs are never reused.
const lastIDKey = "task.lastid"

// casMaxRetries is the number of replays after the first attempt loses the
// ref compare-and-swap.
const casMaxRetries = 4

func newCASBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// Store reads and writes tasks under one ref of one repository.
type Store struct {
	repo *git.Repo
	ref  string

	// testHookPreCommit, when set, runs after the snapshot is loaded and
	// mutations applied but before the ref update. Tests use it to race a
	// competing writer against the transaction.
	testHookPreCommit func()
}

// Open returns a store over the given ref. An empty ref selects DefaultRef.
func Open(repo *git.Repo, ref string) *Store {
	if ref == "" {
		ref = DefaultRef
	}
	return &Store{repo: repo, ref: ref}
}

// Ref returns the ref the store operates on.
func (s *Store) Ref() string { return s.ref }

// Repo returns the underlying repository handle.
func (s *Store) Repo() *git.Repo { return s.repo }

// snapshot is one consistent view of the ref: the commit it pointed at, the
// decoded tasks, their blob SHAs, and any tree entries that are not task
// records (preserved verbatim on write).
type snapshot struct {
	commit  string
	tasks   map[int]*types.Task
	blobs   map[int]string
	foreign []git.TreeEntry
}

func (s *Store) loadSnapshot(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{
		tasks: make(map[int]*types.Task),
		blobs: make(map[int]string),
	}
	commit, err := s.repo.ResolveRef(ctx, s.ref)
	if errors.Is(err, git.ErrRefNotFound) {
		return snap, nil
	}
	if err != nil {
		return nil, err
	}
	snap.commit = commit

	tree, err := s.repo.TreeOf(ctx, commit)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListTree(ctx, tree)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		id, convErr := strconv.Atoi(e.Name)
		if e.Type != "blob" || convErr != nil || id <= 0 {
			snap.foreign = append(snap.foreign, e)
			continue
		}
		snap.blobs[id] = e.SHA
	}

	shas := make([]string, 0, len(snap.blobs))
	for _, sha := range snap.blobs {
		shas = append(shas, sha)
	}
	contents, err := s.repo.ReadBlobs(ctx, shas)
	if err != nil {
		return nil, err
	}
	for id, sha := range snap.blobs {
		task, err := decodeTask(id, contents[sha])
		if err != nil {
			return nil, err
		}
		snap.tasks[id] = task
	}
	return snap, nil
}

func decodeTask(id int, content []byte) (*types.Task, error) {
	var t types.Task
	if err := json.Unmarshal(content, &t); err != nil {
		return nil, fmt.Errorf("task %d: %w: %v", id, storage.ErrEncoding, err)
	}
	// The tree entry name is authoritative for the ID.
	t.ID = id
	return &t, nil
}

func encodeTask(t *types.Task) ([]byte, error) {
	content, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w: %v", t.ID, storage.ErrEncoding, err)
	}
	return content, nil
}

// ListTasks returns all tasks sorted by ID.
func (s *Store) ListTasks(ctx context.Context) ([]*types.Task, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]*types.Task, 0, len(snap.tasks))
	for _, t := range snap.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// GetTask returns one task by ID.
func (s *Store) GetTask(ctx context.Context, id int) (*types.Task, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := snap.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

// NextID returns the ID the next created task would get.
func (s *Store) NextID(ctx context.Context) (int, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	last, err := s.persistedLastID(ctx)
	if err != nil {
		return 0, err
	}
	for id := range snap.tasks {
		if id > last {
			last = id
		}
	}
	return last + 1, nil
}

func (s *Store) persistedLastID(ctx context.Context) (int, error) {
	value, err := s.repo.ConfigGet(ctx, lastIDKey)
	if errors.Is(err, git.ErrConfigNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	last, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w: %q is not a number", lastIDKey, storage.ErrEncoding, value)
	}
	return last, nil
}

// Apply runs the mutations as one atomic transaction. On a lost
// compare-and-swap the snapshot is reloaded and the mutations replayed, up
// to casMaxRetries times; after that ErrConcurrent is returned.
func (s *Store) Apply(ctx context.Context, muts ...storage.Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(newCASBackoff(), casMaxRetries), ctx)
	err := backoff.Retry(func() error {
		err := s.applyOnce(ctx, muts)
		if errors.Is(err, git.ErrRefConflict) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, bo)
	if errors.Is(err, git.ErrRefConflict) {
		return fmt.Errorf("%s: %w after %d attempts", s.ref, storage.ErrConcurrent, casMaxRetries+1)
	}
	return err
}

func (s *Store) applyOnce(ctx context.Context, muts []storage.Mutation) error {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	last, err := s.persistedLastID(ctx)
	if err != nil {
		return err
	}

	tasks := make([]*types.Task, 0, len(snap.tasks))
	for _, t := range snap.tasks {
		tasks = append(tasks, t)
	}
	state := storage.NewState(tasks, last)
	for _, m := range muts {
		if err := m.Apply(state); err != nil {
			return err
		}
	}
	if err := state.Validate(); err != nil {
		return err
	}

	entries := make([]git.TreeEntry, 0, state.Len()+len(snap.foreign))
	entries = append(entries, snap.foreign...)
	for _, t := range state.Tasks() {
		sha := snap.blobs[t.ID]
		if state.Touched(t.ID) || sha == "" {
			content, err := encodeTask(t)
			if err != nil {
				return err
			}
			if sha, err = s.repo.HashBlob(ctx, content); err != nil {
				return err
			}
		}
		entries = append(entries, git.TreeEntry{Mode: "100644", Type: "blob", SHA: sha, Name: strconv.Itoa(t.ID)})
	}

	tree, err := s.repo.MakeTree(ctx, entries)
	if err != nil {
		return err
	}

	// Skip the commit when the transaction changed nothing.
	if snap.commit != "" {
		oldTree, err := s.repo.TreeOf(ctx, snap.commit)
		if err != nil {
			return err
		}
		if tree == oldTree && state.LastID() == last {
			return nil
		}
	} else if state.Len() == 0 && state.LastID() == last {
		return nil
	}

	if s.testHookPreCommit != nil {
		s.testHookPreCommit()
	}

	commit, err := s.repo.CommitTree(ctx, tree, snap.commit, commitMessage(muts))
	if err != nil {
		return err
	}
	if err := s.repo.UpdateRefCAS(ctx, s.ref, commit, snap.commit); err != nil {
		return err
	}
	if state.LastID() > last {
		if err := s.repo.ConfigSet(ctx, lastIDKey, strconv.Itoa(state.LastID())); err != nil {
			return err
		}
	}
	return nil
}

func commitMessage(muts []storage.Mutation) string {
	if len(muts) == 1 {
		return muts[0].Describe()
	}
	return fmt.Sprintf("%s (+%d more)", muts[0].Describe(), len(muts)-1)
}

// MoveRef relocates the task ref, carrying the commit chain along. The
// target must not exist yet. Moving a ref that was never written just
// repoints the store.
func (s *Store) MoveRef(ctx context.Context, newRef string) error {
	if newRef == "" || newRef == s.ref {
		return nil
	}
	sha, err := s.repo.ResolveRef(ctx, s.ref)
	if errors.Is(err, git.ErrRefNotFound) {
		s.ref = newRef
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.UpdateRefCAS(ctx, newRef, sha, ""); err != nil {
		if errors.Is(err, git.ErrRefConflict) {
			return fmt.Errorf("ref %s already exists", newRef)
		}
		return err
	}
	if err := s.repo.DeleteRef(ctx, s.ref); err != nil {
		return err
	}
	s.ref = newRef
	return nil
}

// GetConfig reads a config key.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	value, err := s.repo.ConfigGet(ctx, key)
	if errors.Is(err, git.ErrConfigNotFound) {
		return "", fmt.Errorf("config %s: %w", key, storage.ErrNotFound)
	}
	return value, err
}

// SetConfig writes a config key into the repository-local scope.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	return s.repo.ConfigSet(ctx, key, value)
}

// UnsetConfig removes a config key from the repository-local scope.
func (s *Store) UnsetConfig(ctx context.Context, key string) error {
	err := s.repo.ConfigUnset(ctx, key)
	if errors.Is(err, git.ErrConfigNotFound) {
		return fmt.Errorf("config %s: %w", key, storage.ErrNotFound)
	}
	return err
}

// ListConfig returns all config entries under prefix.
func (s *Store) ListConfig(ctx context.Context, prefix string) (map[string]string, error) {
	return s.repo.ConfigList(ctx, prefix)
}
