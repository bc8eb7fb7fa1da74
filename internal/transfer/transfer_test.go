package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/storage/memstore"
	"github.com/tasklog/tasklog/internal/types"
)

// seedStore builds a store with three tasks carrying the full range of
// record shapes: custom properties, comments, labels and remote links.
func seedStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if err := s.Apply(ctx,
		&storage.CreateTask{
			Name:        "fix login flow",
			Description: "sessions expire too early",
			Status:      "OPEN",
			Author:      "alice",
			CreatedAt:   base,
			Extra:       [][2]string{{"priority", "high"}, {"estimate", "3"}},
		},
		&storage.CreateTask{
			Name:      "update docs",
			Status:    "CLOSED",
			Author:    "bob",
			CreatedAt: base.Add(time.Hour),
		},
		&storage.CreateTask{
			Name:      "ship release",
			Status:    "IN_PROGRESS",
			Author:    "alice",
			CreatedAt: base.Add(2 * time.Hour),
		},
	); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := s.Apply(ctx,
		&storage.AddComment{TaskID: 1, Author: "bob", At: base.Add(time.Minute), Text: "repro on staging"},
		&storage.AddComment{TaskID: 1, Author: "alice", At: base.Add(2 * time.Minute), Text: "fixed in 4f2c"},
		&storage.AddLabel{TaskID: 1, Label: types.Label{Name: "bug", Color: "Red", Description: "defects"}},
		&storage.AddLabel{TaskID: 3, Label: types.Label{Name: "release"}},
		&storage.SetLink{TaskID: 1, Kind: "github", Link: types.Link{ID: "17", URL: "https://github.com/acme/widgets/issues/17"}},
		&storage.SetCommentLink{TaskID: 1, CommentID: 1, Kind: "github", Link: types.Link{ID: "900"}},
	); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return s
}

func exportAll(t *testing.T, s storage.Store, opts ExportOptions) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := Export(context.Background(), s, &buf, opts); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	return buf.Bytes()
}

func exportedIDs(t *testing.T, data []byte) []int {
	t.Helper()
	var tasks []*types.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("export is not a task array: %v", err)
	}
	ids := make([]int, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}

func TestRoundTripReproducesStore(t *testing.T) {
	ctx := context.Background()
	src := seedStore(t)

	first := exportAll(t, src, ExportOptions{})

	dst := memstore.New()
	results, err := Import(ctx, dst, bytes.NewReader(first), ImportOptions{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("imported %d tasks, want 3", len(results))
	}
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("task %d: %v", res.ID, res.Err)
		}
	}

	second := exportAll(t, dst, ExportOptions{})
	if !bytes.Equal(first, second) {
		t.Errorf("round trip changed the export\nfirst:  %s\nsecond: %s", first, second)
	}

	task, err := dst.GetTask(ctx, 1)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got := task.Properties.Keys(); got[0] != types.PropName {
		t.Errorf("property order lost: first key = %q", got[0])
	}
	if len(task.Comments) != 2 || task.Comments[0].Text != "repro on staging" {
		t.Errorf("comments not preserved: %+v", task.Comments)
	}
	if task.FindLabel("bug") == nil {
		t.Error("label not preserved")
	}
	if link, ok := task.LinkFor("github"); !ok || link.ID != "17" {
		t.Errorf("task link not preserved: %+v", link)
	}
	if link, ok := task.Comments[0].LinkFor("github"); !ok || link.ID != "900" {
		t.Errorf("comment link not preserved: %+v", link)
	}
}

func TestImportRaisesAllocation(t *testing.T) {
	ctx := context.Background()
	dst := memstore.New()
	input := `[{"id":7,"properties":{"name":"imported","status":"OPEN"}}]`

	results, err := Import(ctx, dst, strings.NewReader(input), ImportOptions{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	next, err := dst.NextID(ctx)
	if err != nil {
		t.Fatalf("NextID failed: %v", err)
	}
	if next != 8 {
		t.Errorf("NextID = %d, want 8", next)
	}
}

func TestExportFilters(t *testing.T) {
	src := seedStore(t)

	tests := []struct {
		name string
		opts ExportOptions
		want []int
	}{
		{"all", ExportOptions{}, []int{1, 2, 3}},
		{"by id", ExportOptions{IDs: []int{2}}, []int{2}},
		{"by status", ExportOptions{Statuses: []string{"OPEN", "IN_PROGRESS"}}, []int{1, 3}},
		{"limit", ExportOptions{Limit: 2}, []int{1, 2}},
		{"status and limit", ExportOptions{Statuses: []string{"OPEN", "IN_PROGRESS"}, Limit: 1}, []int{1}},
		{"no match", ExportOptions{Statuses: []string{"BLOCKED"}}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exportedIDs(t, exportAll(t, src, tt.opts))
			if len(got) != len(tt.want) {
				t.Fatalf("exported IDs = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("exported IDs = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestExportEmptyStore(t *testing.T) {
	data := exportAll(t, memstore.New(), ExportOptions{})
	if string(data) != "[]\n" {
		t.Errorf("empty export = %q, want %q", data, "[]\n")
	}
}

func TestExportPretty(t *testing.T) {
	src := seedStore(t)
	data := exportAll(t, src, ExportOptions{IDs: []int{2}, Pretty: true})

	if !strings.HasPrefix(string(data), "[\n  {") {
		t.Errorf("pretty export not indented: %q", data)
	}
	if got := exportedIDs(t, data); len(got) != 1 || got[0] != 2 {
		t.Errorf("pretty export IDs = %v", got)
	}
}

func TestImportIDFilter(t *testing.T) {
	ctx := context.Background()
	src := seedStore(t)
	data := exportAll(t, src, ExportOptions{})

	dst := memstore.New()
	results, err := Import(ctx, dst, bytes.NewReader(data), ImportOptions{IDs: []int{2}})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != 2 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	if _, err := dst.GetTask(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("task 1 imported despite the filter: err = %v", err)
	}
	if _, err := dst.GetTask(ctx, 2); err != nil {
		t.Errorf("task 2 missing: %v", err)
	}
}

func TestImportRejectsExistingID(t *testing.T) {
	ctx := context.Background()
	src := seedStore(t)
	data := exportAll(t, src, ExportOptions{})

	dst := memstore.New()
	if err := dst.Apply(ctx, &storage.CreateTask{Name: "occupied", Status: "OPEN"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	results, err := Import(ctx, dst, bytes.NewReader(data), ImportOptions{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].ID != 1 || !errors.Is(results[0].Err, storage.ErrValidation) {
		t.Errorf("existing ID not rejected: %+v", results[0])
	}
	for _, res := range results[1:] {
		if res.Err != nil {
			t.Errorf("task %d blocked by an unrelated failure: %v", res.ID, res.Err)
		}
	}

	task, err := dst.GetTask(ctx, 1)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Name() != "occupied" {
		t.Errorf("existing task overwritten: name = %q", task.Name())
	}
}

func TestImportRejectsInvalidTasks(t *testing.T) {
	ctx := context.Background()
	input := `[
		{"id":0,"properties":{"name":"zero","status":"OPEN"}},
		{"id":4,"properties":{"status":"OPEN"}},
		null,
		{"id":5,"properties":{"name":"fine","status":"OPEN"}}
	]`

	dst := memstore.New()
	results, err := Import(ctx, dst, strings.NewReader(input), ImportOptions{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("results = %+v", results)
	}
	for i, res := range results[:3] {
		if !errors.Is(res.Err, storage.ErrValidation) {
			t.Errorf("results[%d] = %+v, want a validation error", i, res)
		}
	}
	if results[3].Err != nil {
		t.Errorf("valid task rejected: %v", results[3].Err)
	}
	if _, err := dst.GetTask(ctx, 5); err != nil {
		t.Errorf("valid task missing: %v", err)
	}
}

func TestImportBadInput(t *testing.T) {
	for _, input := range []string{"", "{", `{"id":1}`, "not json"} {
		dst := memstore.New()
		_, err := Import(context.Background(), dst, strings.NewReader(input), ImportOptions{})
		if !errors.Is(err, storage.ErrEncoding) {
			t.Errorf("Import(%q): err = %v, want ErrEncoding", input, err)
		}
	}
}
