package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tasklog/tasklog/internal/git"
)

// Factory builds an unconnected Tracker instance.
type Factory func(setup Setup) Tracker

// Registry manages registered tracker backends. Connectors register
// themselves at init time; the registry resolves which backend serves a
// command.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var globalRegistry = &Registry{
	factories: make(map[string]Factory),
}

// Register adds a backend factory to the global registry. Typically called
// from connector init() functions. The kind should be lowercase.
func Register(kind string, factory Factory) {
	globalRegistry.Register(kind, factory)
}

// Get retrieves a factory from the global registry, or nil.
func Get(kind string) Factory {
	return globalRegistry.Get(kind)
}

// List returns the registered kinds, sorted.
func List() []string {
	return globalRegistry.List()
}

// New builds an instance of the named backend from the global registry.
func New(kind string, setup Setup) (Tracker, error) {
	return globalRegistry.New(kind, setup)
}

// Match resolves which backend and remote serve a command, using the
// global registry.
func Match(ctx context.Context, setup Setup, remotes []git.Remote, remoteName, kind string) (Tracker, error) {
	return globalRegistry.Match(ctx, setup, remotes, remoteName, kind)
}

// Register adds a backend factory to this registry.
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Get retrieves a factory from this registry, or nil.
func (r *Registry) Get(kind string) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[kind]
}

// List returns the registered kinds, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds an instance of the named backend.
func (r *Registry) New(kind string, setup Setup) (Tracker, error) {
	factory := r.Get(kind)
	if factory == nil {
		return nil, fmt.Errorf("unknown tracker %q (available: %s)", kind, strings.Join(r.List(), ", "))
	}
	return factory(setup), nil
}

// Clear removes all registered backends. Used in tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
}

// candidate pairs a backend with the remote it matched. An empty remote
// name means the backend needs no git remote.
type candidate struct {
	tracker    Tracker
	kind       string
	remoteName string
	remoteURL  string
}

func (c candidate) String() string {
	if c.remoteName == "" {
		return c.kind
	}
	return fmt.Sprintf("%s (%s)", c.kind, c.remoteName)
}

// Match resolves which backend and remote serve a command. remoteName and
// kind come from the --remote and --connector flags; either may be empty.
// The returned tracker is already connected.
func (r *Registry) Match(ctx context.Context, setup Setup, remotes []git.Remote, remoteName, kind string) (Tracker, error) {
	if remoteName != "" {
		filtered := remotes[:0:0]
		for _, rm := range remotes {
			if rm.Name == remoteName {
				filtered = append(filtered, rm)
			}
		}
		if len(filtered) == 0 {
			return nil, fmt.Errorf("no remote named %q", remoteName)
		}
		remotes = filtered
	}

	kinds := r.List()
	if kind != "" {
		if r.Get(kind) == nil {
			return nil, fmt.Errorf("unknown tracker %q (available: %s)", kind, strings.Join(kinds, ", "))
		}
		kinds = []string{kind}
	}

	var candidates []candidate
	for _, k := range kinds {
		tr, err := r.New(k, setup)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, rm := range remotes {
			if _, _, ok := tr.SupportsRemote(rm.URL); ok {
				candidates = append(candidates, candidate{tracker: tr, kind: k, remoteName: rm.Name, remoteURL: rm.URL})
				matched = true
			}
		}
		// Non-git-host backends ride on their configuration instead of a
		// remote URL. When --remote was given they are out of the running.
		if !matched && remoteName == "" && tr.Configured(ctx) {
			candidates = append(candidates, candidate{tracker: tr, kind: k})
		}
	}

	switch len(candidates) {
	case 0:
		if kind != "" {
			return nil, fmt.Errorf("%s: no matching remote found; check your git remotes or the task.%s.url configuration", kind, kind)
		}
		return nil, fmt.Errorf("no matching remote or configured tracker found; specify one with --connector")
	case 1:
		chosen := candidates[0]
		if err := chosen.tracker.Connect(ctx, chosen.remoteURL); err != nil {
			return nil, fmt.Errorf("%s: %w", chosen.kind, err)
		}
		return chosen.tracker, nil
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.String()
		}
		return nil, fmt.Errorf("more than one matching remote found (%s); specify one with --remote or --connector", strings.Join(names, ", "))
	}
}
