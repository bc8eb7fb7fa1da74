// Package transfer moves tasks across repository boundaries as JSON.
//
// Export writes tasks to a writer as a JSON array; Import reads the same
// shape back and recreates each task under its original ID. Both sides
// reuse the task wire format, so an export imported into a fresh
// repository reproduces IDs, property order, comments, labels and links
// exactly.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/types"
)

// maxInputSize caps how much Import reads from its input.
const maxInputSize = 256 << 20

// ExportOptions narrows which tasks an Export emits.
type ExportOptions struct {
	// IDs restricts the export to the listed tasks. Empty exports all.
	IDs []int

	// Statuses restricts the export to tasks whose status is listed.
	Statuses []string

	// Limit caps the number of exported tasks. Zero means no limit.
	Limit int

	// Pretty indents the output for human eyes.
	Pretty bool
}

// Export writes the selected tasks to w as a JSON array in ascending ID
// order and reports how many tasks it wrote.
func Export(ctx context.Context, st storage.Store, w io.Writer, opts ExportOptions) (int, error) {
	tasks, err := st.ListTasks(ctx)
	if err != nil {
		return 0, err
	}

	wantID := make(map[int]bool, len(opts.IDs))
	for _, id := range opts.IDs {
		wantID[id] = true
	}
	wantStatus := make(map[string]bool, len(opts.Statuses))
	for _, s := range opts.Statuses {
		wantStatus[s] = true
	}

	selected := make([]*types.Task, 0, len(tasks))
	for _, task := range tasks {
		if opts.Limit > 0 && len(selected) == opts.Limit {
			break
		}
		if len(wantID) > 0 && !wantID[task.ID] {
			continue
		}
		if len(wantStatus) > 0 && !wantStatus[task.Status()] {
			continue
		}
		selected = append(selected, task)
	}

	var data []byte
	if opts.Pretty {
		data, err = json.MarshalIndent(selected, "", "  ")
	} else {
		data, err = json.Marshal(selected)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: encode tasks: %v", storage.ErrEncoding, err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	return len(selected), nil
}

// ImportOptions narrows which tasks an Import accepts.
type ImportOptions struct {
	// IDs restricts the import to the listed task IDs. Empty imports
	// every task in the input.
	IDs []int
}

// Result is the outcome of importing one task.
type Result struct {
	ID  int
	Err error
}

// Import reads a JSON array of tasks from r and recreates each one in the
// store under the ID it carries. Tasks are applied one at a time so a bad
// entry never blocks the rest; the returned results report the per-task
// outcomes in input order. The error return is reserved for input that
// cannot be read or decoded at all.
func Import(ctx context.Context, st storage.Store, r io.Reader, opts ImportOptions) ([]Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize))
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}

	var tasks []*types.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("%w: decode tasks: %v", storage.ErrEncoding, err)
	}

	wantID := make(map[int]bool, len(opts.IDs))
	for _, id := range opts.IDs {
		wantID[id] = true
	}

	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		if task == nil {
			results = append(results, Result{Err: fmt.Errorf("%w: null task entry", storage.ErrValidation)})
			continue
		}
		if len(wantID) > 0 && !wantID[task.ID] {
			continue
		}
		results = append(results, Result{ID: task.ID, Err: importOne(ctx, st, task)})
	}
	return results, nil
}

func importOne(ctx context.Context, st storage.Store, task *types.Task) error {
	if task.ID <= 0 {
		return fmt.Errorf("%w: task ID must be positive, got %d", storage.ErrValidation, task.ID)
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}
	_, err := st.GetTask(ctx, task.ID)
	if err == nil {
		return fmt.Errorf("%w: task %d already exists", storage.ErrValidation, task.ID)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return st.Apply(ctx, &storage.PutTask{Task: task})
}
