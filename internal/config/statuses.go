package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tasklog/tasklog/internal/storage"
)

// Status describes one workflow state a task can be in.
type Status struct {
	Name     string `json:"name"`
	Shortcut string `json:"shortcut"`
	Color    string `json:"color"`
	Style    string `json:"style,omitempty"`
	IsDone   bool   `json:"is_done,omitempty"`
}

// DefaultStatuses is the workflow a fresh repository starts with.
func DefaultStatuses() []Status {
	return []Status{
		{Name: "OPEN", Shortcut: "o", Color: "Red"},
		{Name: "IN_PROGRESS", Shortcut: "i", Color: "Yellow"},
		{Name: "CLOSED", Shortcut: "c", Color: "Green", IsDone: true},
	}
}

// StatusSchema is the ordered set of statuses for one repository.
type StatusSchema struct {
	statuses []Status
}

// Statuses loads the status schema from git config. A missing or
// unreadable value falls back to the defaults so a damaged entry never
// locks the user out.
func (c *Config) Statuses(ctx context.Context) *StatusSchema {
	raw, err := c.store.GetConfig(ctx, KeyStatuses)
	if err != nil && c.local != nil && len(c.local.Statuses) > 0 {
		return &StatusSchema{statuses: c.local.Statuses}
	}
	schema, err := ParseStatusSchema(raw)
	if err != nil {
		return &StatusSchema{statuses: DefaultStatuses()}
	}
	return schema
}

// SaveStatuses persists the schema to git config.
func (c *Config) SaveStatuses(ctx context.Context, schema *StatusSchema) error {
	raw, err := json.Marshal(schema.statuses)
	if err != nil {
		return err
	}
	return c.store.SetConfig(ctx, KeyStatuses, string(raw))
}

// ResetStatuses drops any customized schema, reverting to the defaults.
func (c *Config) ResetStatuses(ctx context.Context) error {
	err := c.store.UnsetConfig(ctx, KeyStatuses)
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	return nil
}

// ParseStatusSchema decodes a schema from its JSON form.
func ParseStatusSchema(raw string) (*StatusSchema, error) {
	if strings.TrimSpace(raw) == "" {
		return &StatusSchema{statuses: DefaultStatuses()}, nil
	}
	var statuses []Status
	if err := json.Unmarshal([]byte(raw), &statuses); err != nil {
		return nil, fmt.Errorf("parse statuses: %w", err)
	}
	if len(statuses) == 0 {
		return &StatusSchema{statuses: DefaultStatuses()}, nil
	}
	return &StatusSchema{statuses: statuses}, nil
}

// NewStatusSchema builds a schema from an explicit status list.
func NewStatusSchema(statuses []Status) *StatusSchema {
	if len(statuses) == 0 {
		return &StatusSchema{statuses: DefaultStatuses()}
	}
	return &StatusSchema{statuses: append([]Status(nil), statuses...)}
}

// MarshalJSON renders the schema as the status array it wraps.
func (s *StatusSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.statuses)
}

// All returns the statuses in declaration order.
func (s *StatusSchema) All() []Status {
	return append([]Status(nil), s.statuses...)
}

// Find returns the status with the given name, if any.
func (s *StatusSchema) Find(name string) (Status, bool) {
	for _, st := range s.statuses {
		if st.Name == name {
			return st, true
		}
	}
	return Status{}, false
}

// FullName expands a shortcut to its status name. Input that matches no
// shortcut is returned unchanged so full names always pass through.
func (s *StatusSchema) FullName(value string) string {
	for _, st := range s.statuses {
		if st.Shortcut != "" && st.Shortcut == value {
			return st.Name
		}
	}
	return value
}

// Starting returns the status newly created tasks receive.
func (s *StatusSchema) Starting() Status {
	return s.statuses[0]
}

// IsDone reports whether the named status counts as finished work.
func (s *StatusSchema) IsDone(name string) bool {
	st, ok := s.Find(name)
	return ok && st.IsDone
}

// Valid reports whether name is a declared status.
func (s *StatusSchema) Valid(name string) bool {
	_, ok := s.Find(name)
	return ok
}

// Add appends a status, rejecting duplicate names and shortcuts.
func (s *StatusSchema) Add(st Status) error {
	if st.Name == "" {
		return fmt.Errorf("status name cannot be empty")
	}
	for _, existing := range s.statuses {
		if existing.Name == st.Name {
			return fmt.Errorf("status %s already exists", st.Name)
		}
		if st.Shortcut != "" && existing.Shortcut == st.Shortcut {
			return fmt.Errorf("shortcut %s is already used by %s", st.Shortcut, existing.Name)
		}
	}
	s.statuses = append(s.statuses, st)
	return nil
}

// Delete removes the named status. The last status cannot be removed.
func (s *StatusSchema) Delete(name string) error {
	if len(s.statuses) == 1 {
		return fmt.Errorf("cannot delete the last status")
	}
	for i, st := range s.statuses {
		if st.Name == name {
			s.statuses = append(s.statuses[:i], s.statuses[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("status %s not found", name)
}

// Get returns one field of the named status. param is one of name,
// shortcut, color, style, is_done.
func (s *StatusSchema) Get(name, param string) (string, error) {
	st, ok := s.Find(name)
	if !ok {
		return "", fmt.Errorf("status %s not found", name)
	}
	switch param {
	case "name":
		return st.Name, nil
	case "shortcut":
		return st.Shortcut, nil
	case "color":
		return st.Color, nil
	case "style":
		return st.Style, nil
	case "is_done":
		return fmt.Sprintf("%t", st.IsDone), nil
	default:
		return "", fmt.Errorf("unknown parameter: %s", param)
	}
}

// Set updates one field of the named status and returns the previous
// value. Renames return the old name so callers can rewrite tasks that
// still carry it.
func (s *StatusSchema) Set(name, param, value string) (string, error) {
	idx := -1
	for i, st := range s.statuses {
		if st.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("status %s not found", name)
	}
	st := &s.statuses[idx]
	switch param {
	case "name":
		if value == "" {
			return "", fmt.Errorf("status name cannot be empty")
		}
		for i, other := range s.statuses {
			if i != idx && other.Name == value {
				return "", fmt.Errorf("status %s already exists", value)
			}
		}
		prev := st.Name
		st.Name = value
		return prev, nil
	case "shortcut":
		for i, other := range s.statuses {
			if i != idx && value != "" && other.Shortcut == value {
				return "", fmt.Errorf("shortcut %s is already used by %s", value, other.Name)
			}
		}
		prev := st.Shortcut
		st.Shortcut = value
		return prev, nil
	case "color":
		prev := st.Color
		st.Color = value
		return prev, nil
	case "style":
		prev := st.Style
		st.Style = value
		return prev, nil
	case "is_done":
		prev := fmt.Sprintf("%t", st.IsDone)
		switch strings.ToLower(value) {
		case "true", "yes", "1":
			st.IsDone = true
		case "false", "no", "0":
			st.IsDone = false
		default:
			return "", fmt.Errorf("invalid boolean: %s", value)
		}
		return prev, nil
	default:
		return "", fmt.Errorf("unknown parameter: %s", param)
	}
}
