package storage

import (
	"fmt"
	"time"

	"github.com/tasklog/tasklog/internal/types"
)

// Batch groups mutations under one description so a multi-step operation
// reads as a single logical change in the history.
type Batch struct {
	Message string
	Muts    []Mutation
}

func (m *Batch) Apply(s *State) error {
	for _, mut := range m.Muts {
		if err := mut.Apply(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Batch) Describe() string { return m.Message }

// CreateTask adds a new task with a freshly allocated ID. The assigned ID is
// written back to the ID field.
type CreateTask struct {
	Name        string
	Description string
	Status      string
	Author      string
	CreatedAt   time.Time
	// Extra holds additional properties applied after the core ones,
	// in the given key order.
	Extra [][2]string

	// ID receives the allocated task ID after a successful apply.
	ID int
}

func (m *CreateTask) Apply(s *State) error {
	t := types.NewTask(m.Name, m.Description, m.Status)
	t.ID = s.AllocateID()
	if !m.CreatedAt.IsZero() {
		t.SetCreated(m.CreatedAt)
	}
	if m.Author != "" {
		t.Properties.Set(types.PropAuthor, m.Author)
	}
	for _, kv := range m.Extra {
		t.Properties.Set(kv[0], kv[1])
	}
	s.Put(t)
	m.ID = t.ID
	return nil
}

func (m *CreateTask) Describe() string { return fmt.Sprintf("Create task %d", m.ID) }

// PutTask inserts or replaces a complete task record. With AssignID set the
// task gets a freshly allocated ID regardless of the one it carries; the
// assigned ID is written back to Task.ID. Without AssignID the task keeps
// its own ID, raising the allocation mark past it when needed.
type PutTask struct {
	Task     *types.Task
	AssignID bool

	created bool
}

func (m *PutTask) Apply(s *State) error {
	if m.AssignID {
		m.Task.ID = s.AllocateID()
	} else if m.Task.ID <= 0 {
		return fmt.Errorf("%w: task ID must be positive, got %d", ErrValidation, m.Task.ID)
	}
	m.created = !s.Has(m.Task.ID)
	s.Put(m.Task)
	return nil
}

func (m *PutTask) Describe() string {
	if m.created {
		return fmt.Sprintf("Create task %d", m.Task.ID)
	}
	return fmt.Sprintf("Update task %d", m.Task.ID)
}

// SetProperty sets one property on an existing task. The ID pseudo-property
// is rejected; renumbering goes through RenameTask.
type SetProperty struct {
	ID    int
	Key   string
	Value string
}

func (m *SetProperty) Apply(s *State) error {
	if m.Key == "id" {
		return fmt.Errorf("%w: property \"id\" cannot be set directly", ErrValidation)
	}
	t, err := s.Task(m.ID)
	if err != nil {
		return err
	}
	t.Properties.Set(m.Key, m.Value)
	s.Put(t)
	return nil
}

func (m *SetProperty) Describe() string { return fmt.Sprintf("Set %s on task %d", m.Key, m.ID) }

// UnsetProperty removes a property from an existing task. Removing a
// property the task does not have is an error so batch updates surface
// typos instead of silently doing nothing.
type UnsetProperty struct {
	ID  int
	Key string
}

func (m *UnsetProperty) Apply(s *State) error {
	t, err := s.Task(m.ID)
	if err != nil {
		return err
	}
	if !t.Properties.Delete(m.Key) {
		return fmt.Errorf("task %d property %q: %w", m.ID, m.Key, ErrNotFound)
	}
	s.Put(t)
	return nil
}

func (m *UnsetProperty) Describe() string { return fmt.Sprintf("Unset %s on task %d", m.Key, m.ID) }

// RenameTask moves a task to a new ID. The target ID must be free.
type RenameTask struct {
	ID    int
	NewID int
}

func (m *RenameTask) Apply(s *State) error {
	if m.NewID <= 0 {
		return fmt.Errorf("%w: task ID must be positive, got %d", ErrValidation, m.NewID)
	}
	if m.NewID == m.ID {
		return nil
	}
	if s.Has(m.NewID) {
		return fmt.Errorf("%w: task %d already exists", ErrValidation, m.NewID)
	}
	t, err := s.Task(m.ID)
	if err != nil {
		return err
	}
	if err := s.Remove(m.ID); err != nil {
		return err
	}
	t.ID = m.NewID
	s.Put(t)
	return nil
}

func (m *RenameTask) Describe() string { return fmt.Sprintf("Renumber task %d to %d", m.ID, m.NewID) }

// DeleteTask removes one task.
type DeleteTask struct {
	ID int
}

func (m *DeleteTask) Apply(s *State) error { return s.Remove(m.ID) }

func (m *DeleteTask) Describe() string { return fmt.Sprintf("Delete task %d", m.ID) }

// DeleteAll removes every task. ID allocation is not reset.
type DeleteAll struct{}

func (m *DeleteAll) Apply(s *State) error {
	s.RemoveAll()
	return nil
}

func (m *DeleteAll) Describe() string { return "Delete all tasks" }

// AddComment appends a comment to a task. The assigned comment ID is
// written back to the CommentID field. Links, when present, are recorded
// on the new comment in the same step, since the comment ID is not known
// before the apply.
type AddComment struct {
	TaskID int
	Author string
	At     time.Time
	Text   string
	Links  types.Links

	// CommentID receives the allocated comment ID after a successful apply.
	CommentID int
}

func (m *AddComment) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	c := t.AddComment(m.Author, m.At, m.Text)
	for kind, link := range m.Links {
		c.SetLink(kind, link)
	}
	s.Put(t)
	m.CommentID = c.ID
	return nil
}

func (m *AddComment) Describe() string { return fmt.Sprintf("Comment on task %d", m.TaskID) }

// UpdateComment replaces the text of an existing comment. A non-empty
// Author replaces the recorded author as well.
type UpdateComment struct {
	TaskID    int
	CommentID int
	Text      string
	Author    string
}

func (m *UpdateComment) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	c := t.FindComment(m.CommentID)
	if c == nil {
		return fmt.Errorf("task %d comment %d: %w", m.TaskID, m.CommentID, ErrNotFound)
	}
	c.Text = m.Text
	if m.Author != "" {
		c.Properties.Set(types.PropAuthor, m.Author)
	}
	s.Put(t)
	return nil
}

func (m *UpdateComment) Describe() string {
	return fmt.Sprintf("Edit comment %d on task %d", m.CommentID, m.TaskID)
}

// DeleteComment removes a comment from a task.
type DeleteComment struct {
	TaskID    int
	CommentID int
}

func (m *DeleteComment) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	if !t.DeleteComment(m.CommentID) {
		return fmt.Errorf("task %d comment %d: %w", m.TaskID, m.CommentID, ErrNotFound)
	}
	s.Put(t)
	return nil
}

func (m *DeleteComment) Describe() string {
	return fmt.Sprintf("Delete comment %d on task %d", m.CommentID, m.TaskID)
}

// AddLabel attaches a label to a task. An existing label with the same name
// has its color and description updated in place.
type AddLabel struct {
	TaskID int
	Label  types.Label
}

func (m *AddLabel) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	if m.Label.Name == "" {
		return fmt.Errorf("%w: label name is empty", ErrValidation)
	}
	label := m.Label
	t.AddLabel(&label)
	s.Put(t)
	return nil
}

func (m *AddLabel) Describe() string {
	return fmt.Sprintf("Label task %d with %q", m.TaskID, m.Label.Name)
}

// ReplaceLabels swaps a task's entire label set. Links, color and
// description carried by an existing label survive when the replacement
// with the same name leaves those fields empty.
type ReplaceLabels struct {
	TaskID int
	Labels []types.Label
}

func (m *ReplaceLabels) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	kept := make(map[string]*types.Label, len(t.Labels))
	for _, l := range t.Labels {
		kept[l.Name] = l
	}
	labels := make([]*types.Label, 0, len(m.Labels))
	for i := range m.Labels {
		l := m.Labels[i]
		if l.Name == "" {
			return fmt.Errorf("%w: label name is empty", ErrValidation)
		}
		if prev, ok := kept[l.Name]; ok {
			if l.Links == nil {
				l.Links = prev.Links
			}
			if l.Color == "" {
				l.Color = prev.Color
			}
			if l.Description == "" {
				l.Description = prev.Description
			}
		}
		labels = append(labels, &l)
	}
	t.Labels = labels
	s.Put(t)
	return nil
}

func (m *ReplaceLabels) Describe() string { return fmt.Sprintf("Relabel task %d", m.TaskID) }

// DeleteLabel removes a label from a task by name.
type DeleteLabel struct {
	TaskID int
	Name   string
}

func (m *DeleteLabel) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	if !t.DeleteLabel(m.Name) {
		return fmt.Errorf("task %d label %q: %w", m.TaskID, m.Name, ErrNotFound)
	}
	s.Put(t)
	return nil
}

func (m *DeleteLabel) Describe() string {
	return fmt.Sprintf("Remove label %q from task %d", m.Name, m.TaskID)
}

// ReplaceStatusValue rewrites every task whose status equals Old to carry
// New instead. Used when a status is renamed in the configuration.
type ReplaceStatusValue struct {
	Old string
	New string

	// Count receives the number of rewritten tasks after a successful apply.
	Count int
}

func (m *ReplaceStatusValue) Apply(s *State) error {
	m.Count = 0
	for _, t := range s.Tasks() {
		if t.Status() != m.Old {
			continue
		}
		t.Properties.Set(types.PropStatus, m.New)
		s.Put(t)
		m.Count++
	}
	return nil
}

func (m *ReplaceStatusValue) Describe() string {
	return fmt.Sprintf("Rename status %s to %s", m.Old, m.New)
}

// SetLink records a task's identity on a remote tracker.
type SetLink struct {
	TaskID int
	Kind   string
	Link   types.Link
}

func (m *SetLink) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	t.SetLink(m.Kind, m.Link)
	s.Put(t)
	return nil
}

func (m *SetLink) Describe() string { return fmt.Sprintf("Link task %d to %s", m.TaskID, m.Kind) }

// SetCommentLink records a comment's identity on a remote tracker.
type SetCommentLink struct {
	TaskID    int
	CommentID int
	Kind      string
	Link      types.Link
}

func (m *SetCommentLink) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	c := t.FindComment(m.CommentID)
	if c == nil {
		return fmt.Errorf("task %d comment %d: %w", m.TaskID, m.CommentID, ErrNotFound)
	}
	c.SetLink(m.Kind, m.Link)
	s.Put(t)
	return nil
}

func (m *SetCommentLink) Describe() string {
	return fmt.Sprintf("Link comment %d on task %d to %s", m.CommentID, m.TaskID, m.Kind)
}

// SetLabelLink records a label's identity on a remote tracker.
type SetLabelLink struct {
	TaskID int
	Name   string
	Kind   string
	Link   types.Link
}

func (m *SetLabelLink) Apply(s *State) error {
	t, err := s.Task(m.TaskID)
	if err != nil {
		return err
	}
	label := t.FindLabel(m.Name)
	if label == nil {
		return fmt.Errorf("task %d label %q: %w", m.TaskID, m.Name, ErrNotFound)
	}
	label.Links = label.Links.With(m.Kind, m.Link)
	s.Put(t)
	return nil
}

func (m *SetLabelLink) Describe() string {
	return fmt.Sprintf("Link label %q on task %d to %s", m.Name, m.TaskID, m.Kind)
}
