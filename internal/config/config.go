// Package config layers tasklog's configuration: built-in defaults, the
// repo-committed .tasklog.toml team defaults, and the repository's git
// config, which always wins. It also owns the status and property schemas
// stored as JSON inside git config.
package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tasklog/tasklog/internal/storage"
)

// Well-known git config keys.
const (
	KeyRef              = "task.ref"
	KeyColumns          = "task.list.columns"
	KeySort             = "task.list.sort"
	KeyStatusOpen       = "task.status.open"
	KeyStatusInProgress = "task.status.in_progress"
	KeyStatusClosed     = "task.status.closed"
	KeyStatuses         = "task.statuses"
	KeyProperties       = "task.properties"
	KeyColorUI          = "color.ui"
)

// Built-in fallbacks, used when neither git config nor .tasklog.toml says
// otherwise.
var (
	DefaultColumns = []string{"id", "created", "status", "name"}
	DefaultSort    = "id desc"
)

const (
	DefaultOpenStatus       = "OPEN"
	DefaultInProgressStatus = "IN_PROGRESS"
	DefaultClosedStatus     = "CLOSED"
)

// Config resolves layered settings for one repository.
type Config struct {
	store storage.Store
	local *LocalFile
	extra []string
}

// New builds a Config over the store's config facade. local may be nil when
// the repository carries no .tasklog.toml.
func New(store storage.Store, local *LocalFile) *Config {
	return &Config{store: store, local: local}
}

// RegisterKeys adds connector-contributed config keys to the known set.
func (c *Config) RegisterKeys(keys ...string) {
	c.extra = append(c.extra, keys...)
}

// KnownKeys returns every key `config get`/`config set` accepts, sorted.
func (c *Config) KnownKeys() []string {
	keys := []string{
		KeyColumns,
		KeySort,
		KeyStatusOpen,
		KeyStatusInProgress,
		KeyStatusClosed,
		KeyRef,
	}
	keys = append(keys, c.extra...)
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is accepted by config get/set.
func (c *Config) IsKnownKey(key string) bool {
	for _, k := range c.KnownKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// Get resolves a known key, falling back through .tasklog.toml to the
// built-in default. Connector keys have no default; unset ones return
// storage.ErrNotFound.
func (c *Config) Get(ctx context.Context, key string) (string, error) {
	switch key {
	case KeyColumns:
		return strings.Join(c.Columns(ctx), ", "), nil
	case KeySort:
		return c.sortValue(ctx), nil
	case KeyStatusOpen:
		return c.OpenStatus(ctx, ""), nil
	case KeyStatusInProgress:
		return c.InProgressStatus(ctx), nil
	case KeyStatusClosed:
		return c.ClosedStatus(ctx, ""), nil
	case KeyRef:
		return c.Ref(ctx), nil
	}
	if !c.IsKnownKey(key) {
		return "", fmt.Errorf("unknown parameter: %s", key)
	}
	return c.store.GetConfig(ctx, key)
}

// Set writes a known key. task.ref is not handled here: moving the ref is a
// store operation and the command layer drives it.
func (c *Config) Set(ctx context.Context, key, value string) error {
	if key == KeyRef {
		return fmt.Errorf("%s is updated through the ref move operation", KeyRef)
	}
	if !c.IsKnownKey(key) {
		return fmt.Errorf("unknown parameter: %s", key)
	}
	return c.store.SetConfig(ctx, key, value)
}

// Ref returns the configured task ref, already normalized, or the store
// default when unset.
func (c *Config) Ref(ctx context.Context) string {
	if value, err := c.store.GetConfig(ctx, KeyRef); err == nil && value != "" {
		return NormalizeRef(value)
	}
	if c.local != nil && c.local.Ref != "" {
		return NormalizeRef(c.local.Ref)
	}
	return ""
}

// NormalizeRef expands the shorthand ref forms accepted on the command
// line: a bare name becomes a branch ref, a single-slash path is rooted
// under refs/, anything else is taken as-is.
func NormalizeRef(value string) string {
	switch {
	case !strings.Contains(value, "/"):
		return "refs/heads/" + value
	case strings.Count(value, "/") == 1 && !strings.HasPrefix(value, "/") && !strings.HasSuffix(value, "/"):
		return "refs/" + value
	default:
		return value
	}
}

// Columns returns the task list columns.
func (c *Config) Columns(ctx context.Context) []string {
	if value, err := c.store.GetConfig(ctx, KeyColumns); err == nil && value != "" {
		return splitColumns(value)
	}
	if c.local != nil && len(c.local.Columns) > 0 {
		return c.local.Columns
	}
	return DefaultColumns
}

func splitColumns(value string) []string {
	parts := strings.Split(value, ",")
	columns := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			columns = append(columns, p)
		}
	}
	return columns
}

// SortKey is one element of the task list sort order.
type SortKey struct {
	Field string
	Desc  bool
}

// Sort returns the task list sort order, e.g. "status asc, id desc".
func (c *Config) Sort(ctx context.Context) []SortKey {
	return ParseSort(c.sortValue(ctx))
}

func (c *Config) sortValue(ctx context.Context) string {
	if value, err := c.store.GetConfig(ctx, KeySort); err == nil && value != "" {
		return value
	}
	if c.local != nil && c.local.Sort != "" {
		return c.local.Sort
	}
	return DefaultSort
}

// ParseSort parses a sort specification. Fields without a direction sort
// ascending; malformed elements are skipped.
func ParseSort(value string) []SortKey {
	var keys []SortKey
	for _, part := range strings.Split(value, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 1:
			keys = append(keys, SortKey{Field: fields[0]})
		case 2:
			keys = append(keys, SortKey{Field: fields[0], Desc: strings.EqualFold(fields[1], "desc")})
		}
	}
	return keys
}

// OpenStatus returns the status bound to the remote "open" state. A
// per-tracker override (task.<kind>.status.open) wins over the shared
// task.status.open.
func (c *Config) OpenStatus(ctx context.Context, kind string) string {
	return c.statusBinding(ctx, kind, "open", DefaultOpenStatus)
}

// ClosedStatus returns the status bound to the remote "closed" state.
func (c *Config) ClosedStatus(ctx context.Context, kind string) string {
	return c.statusBinding(ctx, kind, "closed", DefaultClosedStatus)
}

// InProgressStatus returns the status for work in flight.
func (c *Config) InProgressStatus(ctx context.Context) string {
	if value, err := c.store.GetConfig(ctx, KeyStatusInProgress); err == nil && value != "" {
		return value
	}
	return DefaultInProgressStatus
}

func (c *Config) statusBinding(ctx context.Context, kind, state, fallback string) string {
	if kind != "" {
		key := fmt.Sprintf("task.%s.status.%s", kind, state)
		if value, err := c.store.GetConfig(ctx, key); err == nil && value != "" {
			return value
		}
	}
	if value, err := c.store.GetConfig(ctx, "task.status."+state); err == nil && value != "" {
		return value
	}
	return fallback
}

// ColorUI reports the color.ui setting the way git interprets it: true
// unless explicitly disabled.
func (c *Config) ColorUI(ctx context.Context) bool {
	value, err := c.store.GetConfig(ctx, KeyColorUI)
	if errors.Is(err, storage.ErrNotFound) || err != nil {
		return true
	}
	switch strings.ToLower(value) {
	case "false", "never", "off", "0":
		return false
	}
	return true
}
