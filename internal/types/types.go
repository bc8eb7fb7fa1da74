// Package types defines the core record types for the tasklog tracker.
package types

import (
	"fmt"
	"strconv"
	"time"
)

// Reserved property names. Tasks may carry arbitrary additional keys;
// these are the ones the tool itself assigns meaning to.
const (
	PropName        = "name"
	PropDescription = "description"
	PropAuthor      = "author"
	PropCreated     = "created"
	PropStatus      = "status"
)

// IsReservedProp reports whether key is one of the reserved property names.
func IsReservedProp(key string) bool {
	switch key {
	case PropName, PropDescription, PropAuthor, PropCreated, PropStatus:
		return true
	}
	return false
}

// Link associates a local record with its identity in one remote tracker.
type Link struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Links maps tracker kind ("github", "jira", ...) to a remote identity.
// A record may be linked to several trackers independently.
type Links map[string]Link

// Get returns the link for a tracker kind.
func (l Links) Get(kind string) (Link, bool) {
	link, ok := l[kind]
	return link, ok
}

// With returns l with the link for kind set, allocating the map if needed.
func (l Links) With(kind string, link Link) Links {
	if l == nil {
		l = make(Links, 1)
	}
	l[kind] = link
	return l
}

func (l Links) clone() Links {
	if l == nil {
		return nil
	}
	out := make(Links, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Task is a single tracked work item. The ID is unique per repository,
// assigned monotonically and never reused, even after deletion.
type Task struct {
	ID         int        `json:"id"`
	Properties Properties `json:"properties"`
	Comments   []*Comment `json:"comments,omitempty"`
	Labels     []*Label   `json:"labels,omitempty"`
	Links      Links      `json:"links,omitempty"`
}

// Comment is a note attached to a task. Comment IDs are unique only
// within their parent task.
type Comment struct {
	ID         int        `json:"id"`
	Properties Properties `json:"properties"`
	Text       string     `json:"text"`
	Links      Links      `json:"links,omitempty"`
}

// Label is a named tag on a task.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
	Links       Links  `json:"links,omitempty"`
}

// NewTask builds a task with the reserved properties in canonical order.
// Created/author stamps are applied by the store when the task is persisted.
func NewTask(name, description, status string) *Task {
	t := &Task{}
	t.Properties.Set(PropName, name)
	t.Properties.Set(PropDescription, description)
	t.Properties.Set(PropStatus, status)
	return t
}

// Name returns the task's name property.
func (t *Task) Name() string { return t.Properties.GetDefault(PropName, "") }

// Description returns the task's description property.
func (t *Task) Description() string { return t.Properties.GetDefault(PropDescription, "") }

// Author returns the task's author property.
func (t *Task) Author() string { return t.Properties.GetDefault(PropAuthor, "") }

// Status returns the task's status property.
func (t *Task) Status() string { return t.Properties.GetDefault(PropStatus, "") }

// CreatedTime parses the created property (unix seconds). ok is false when
// the property is absent or malformed.
func (t *Task) CreatedTime() (time.Time, bool) {
	return parseCreated(t.Properties)
}

// SetCreated stamps the created property as unix seconds.
func (t *Task) SetCreated(at time.Time) {
	t.Properties.Set(PropCreated, strconv.FormatInt(at.Unix(), 10))
}

// NextCommentID returns max existing comment ID + 1, or 1 when the task
// has no comments.
func (t *Task) NextCommentID() int {
	max := 0
	for _, c := range t.Comments {
		if c.ID > max {
			max = c.ID
		}
	}
	return max + 1
}

// AddComment appends a comment with the next free comment ID and returns it.
func (t *Task) AddComment(author string, at time.Time, text string) *Comment {
	c := &Comment{ID: t.NextCommentID(), Text: text}
	c.Properties.Set(PropAuthor, author)
	c.Properties.Set(PropCreated, strconv.FormatInt(at.Unix(), 10))
	t.Comments = append(t.Comments, c)
	return c
}

// FindComment returns the comment with the given ID, or nil.
func (t *Task) FindComment(id int) *Comment {
	for _, c := range t.Comments {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// DeleteComment removes the comment with the given ID. It reports whether
// a comment was removed.
func (t *Task) DeleteComment(id int) bool {
	for i, c := range t.Comments {
		if c.ID == id {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			return true
		}
	}
	return false
}

// FindLabel returns the label with the given name, or nil.
func (t *Task) FindLabel(name string) *Label {
	for _, l := range t.Labels {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// AddLabel attaches a label. Adding a name that already exists replaces the
// existing label's color and description in place.
func (t *Task) AddLabel(label *Label) *Label {
	if existing := t.FindLabel(label.Name); existing != nil {
		existing.Color = label.Color
		existing.Description = label.Description
		return existing
	}
	t.Labels = append(t.Labels, label)
	return label
}

// DeleteLabel removes the label with the given name. It reports whether a
// label was removed.
func (t *Task) DeleteLabel(name string) bool {
	for i, l := range t.Labels {
		if l.Name == name {
			t.Labels = append(t.Labels[:i], t.Labels[i+1:]...)
			return true
		}
	}
	return false
}

// LinkFor returns the task's remote link for a tracker kind.
func (t *Task) LinkFor(kind string) (Link, bool) { return t.Links.Get(kind) }

// SetLink records the task's remote link for a tracker kind.
func (t *Task) SetLink(kind string, link Link) { t.Links = t.Links.With(kind, link) }

// Clone returns a deep copy. Stores hand out clones so callers can mutate
// freely without aliasing the snapshot.
func (t *Task) Clone() *Task {
	out := &Task{
		ID:         t.ID,
		Properties: t.Properties.Clone(),
		Links:      t.Links.clone(),
	}
	if t.Comments != nil {
		out.Comments = make([]*Comment, len(t.Comments))
		for i, c := range t.Comments {
			out.Comments[i] = c.Clone()
		}
	}
	if t.Labels != nil {
		out.Labels = make([]*Label, len(t.Labels))
		for i, l := range t.Labels {
			cp := *l
			cp.Links = l.Links.clone()
			out.Labels[i] = &cp
		}
	}
	return out
}

// Clone returns a deep copy of the comment.
func (c *Comment) Clone() *Comment {
	return &Comment{
		ID:         c.ID,
		Properties: c.Properties.Clone(),
		Text:       c.Text,
		Links:      c.Links.clone(),
	}
}

// Author returns the comment's author property.
func (c *Comment) Author() string { return c.Properties.GetDefault(PropAuthor, "") }

// CreatedTime parses the comment's created property (unix seconds).
func (c *Comment) CreatedTime() (time.Time, bool) {
	return parseCreated(c.Properties)
}

// LinkFor returns the comment's remote link for a tracker kind.
func (c *Comment) LinkFor(kind string) (Link, bool) { return c.Links.Get(kind) }

// SetLink records the comment's remote link for a tracker kind.
func (c *Comment) SetLink(kind string, link Link) { c.Links = c.Links.With(kind, link) }

// Validate checks the structural invariants a task must satisfy before it
// is persisted.
func (t *Task) Validate() error {
	if t.Name() == "" {
		return fmt.Errorf("task name is empty")
	}
	if t.Status() == "" {
		return fmt.Errorf("task status is empty")
	}
	if created, ok := t.Properties.Get(PropCreated); ok && created != "" {
		if _, err := strconv.ParseInt(created, 10, 64); err != nil {
			return fmt.Errorf("created must be unix seconds, got %q", created)
		}
	}
	seen := make(map[int]bool, len(t.Comments))
	for _, c := range t.Comments {
		if c.ID <= 0 {
			return fmt.Errorf("comment ID %d is not positive", c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate comment ID %d", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

func parseCreated(props Properties) (time.Time, bool) {
	raw, ok := props.Get(PropCreated)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
