package tracker

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/storage/memstore"
	"github.com/tasklog/tasklog/internal/types"
)

// mockTracker is an in-memory Tracker with switchable failures.
type mockTracker struct {
	issues   []*RemoteIssue
	comments map[string][]*RemoteComment
	labels   []*RemoteLabel

	listErr     error
	getErr      error
	createErr   error
	updateErr   error
	commentsErr map[string]error
	noComments  bool
	noLabels    bool

	// commentFailAfter fails CreateComment once that many comments were
	// created (0 = never fail).
	commentFailAfter int

	listedState     string
	nextIssue       int
	nextComment     int
	createdIssues   []IssueFields
	updatedIssues   map[string]IssueFields
	createdComments map[string][]string
	createdLabels   []string
}

func newMockTracker() *mockTracker {
	return &mockTracker{
		comments:        make(map[string][]*RemoteComment),
		commentsErr:     make(map[string]error),
		updatedIssues:   make(map[string]IssueFields),
		createdComments: make(map[string][]string),
	}
}

func (m *mockTracker) Kind() string        { return "mock" }
func (m *mockTracker) DisplayName() string { return "Mock" }
func (m *mockTracker) ConfigKeys() []string {
	return nil
}

func (m *mockTracker) SupportsRemote(url string) (string, string, bool) {
	if strings.HasPrefix(url, "https://mock.test/") {
		return "acme", "widgets", true
	}
	return "", "", false
}

func (m *mockTracker) Configured(ctx context.Context) bool           { return false }
func (m *mockTracker) Connect(ctx context.Context, remoteURL string) error { return nil }

func (m *mockTracker) ListIssues(ctx context.Context, opts ListOptions, yield func(*RemoteIssue) error) error {
	if m.listErr != nil {
		return m.listErr
	}
	m.listedState = opts.State
	for _, ri := range m.issues {
		if opts.State == "open" && ri.Closed {
			continue
		}
		if opts.State == "closed" && !ri.Closed {
			continue
		}
		if err := yield(ri); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *mockTracker) GetIssue(ctx context.Context, id string) (*RemoteIssue, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, ri := range m.issues {
		if ri.ID == id {
			return ri, nil
		}
	}
	return nil, nil
}

func (m *mockTracker) CreateIssue(ctx context.Context, fields IssueFields) (*RemoteIssue, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextIssue++
	id := strconv.Itoa(100 + m.nextIssue)
	ri := &RemoteIssue{
		ID:     id,
		URL:    "https://mock.test/issues/" + id,
		Title:  fields.Title,
		Body:   fields.Body,
		Closed: fields.Closed,
		Labels: fields.Labels,
	}
	m.issues = append(m.issues, ri)
	m.createdIssues = append(m.createdIssues, fields)
	return ri, nil
}

func (m *mockTracker) UpdateIssue(ctx context.Context, id string, fields IssueFields) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedIssues[id] = fields
	return nil
}

func (m *mockTracker) DeleteIssue(ctx context.Context, id string) error { return nil }

func (m *mockTracker) ListComments(ctx context.Context, issueID string, yield func(*RemoteComment) error) error {
	if m.noComments {
		return ErrUnsupported
	}
	if err := m.commentsErr[issueID]; err != nil {
		return err
	}
	for _, rc := range m.comments[issueID] {
		if err := yield(rc); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *mockTracker) CreateComment(ctx context.Context, issueID, text string) (*RemoteComment, error) {
	if m.commentFailAfter > 0 && m.nextComment >= m.commentFailAfter {
		return nil, errors.New("comment rejected")
	}
	m.nextComment++
	rc := &RemoteComment{ID: strconv.Itoa(900 + m.nextComment), Body: text}
	m.comments[issueID] = append(m.comments[issueID], rc)
	m.createdComments[issueID] = append(m.createdComments[issueID], text)
	return rc, nil
}

func (m *mockTracker) UpdateComment(ctx context.Context, issueID, commentID, text string) error {
	return nil
}

func (m *mockTracker) DeleteComment(ctx context.Context, issueID, commentID string) error {
	return nil
}

func (m *mockTracker) ListLabels(ctx context.Context, yield func(*RemoteLabel) error) error {
	if m.noLabels {
		return ErrUnsupported
	}
	for _, l := range m.labels {
		if err := yield(l); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *mockTracker) CreateLabel(ctx context.Context, label RemoteLabel) (*RemoteLabel, error) {
	if m.noLabels {
		return nil, ErrUnsupported
	}
	l := label
	m.labels = append(m.labels, &l)
	m.createdLabels = append(m.createdLabels, label.Name)
	return &l, nil
}

func (m *mockTracker) UpdateLabel(ctx context.Context, name string, label RemoteLabel) error {
	return nil
}

func newTestEngine(mock *mockTracker) (*Engine, *memstore.Store) {
	store := memstore.New()
	eng := &Engine{
		Store:   store,
		Tracker: mock,
		Config:  config.New(store, nil),
		User:    "tester",
	}
	return eng, store
}

func seedTask(t *testing.T, store storage.Store, name, status string, mutate func(*types.Task)) int {
	t.Helper()
	task := types.NewTask(name, "", status)
	if mutate != nil {
		mutate(task)
	}
	put := &storage.PutTask{Task: task, AssignID: true}
	if err := store.Apply(context.Background(), put); err != nil {
		t.Fatal(err)
	}
	return put.Task.ID
}

func TestPullCreatesTasks(t *testing.T) {
	mock := newMockTracker()
	created := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	mock.issues = []*RemoteIssue{
		{ID: "12", URL: "https://mock.test/issues/12", Title: "Crash on save", Body: "stack trace", Author: "alice", Created: created, Closed: true, Comments: 0},
		{ID: "7", URL: "https://mock.test/issues/7", Title: "Add export", Labels: []string{"feature"}, Comments: 1},
	}
	mock.comments["7"] = []*RemoteComment{
		{ID: "701", URL: "https://mock.test/issues/7#701", Author: "bob", Body: "please"},
	}
	eng, store := newTestEngine(mock)

	report, err := eng.Pull(context.Background(), PullOptions{Comments: true, Labels: true})
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if got := report.Count(ActionCreated); got != 2 {
		t.Fatalf("created = %d, want 2", got)
	}
	if report.Failed() {
		t.Fatalf("report has failures: %+v", report.Items)
	}

	// Issues import in remote ID order, so #7 becomes task 1.
	ctx := context.Background()
	task, err := store.GetTask(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if task.Name() != "Add export" {
		t.Errorf("task 1 name = %q", task.Name())
	}
	if task.Status() != "OPEN" {
		t.Errorf("task 1 status = %q", task.Status())
	}
	if task.Author() != "tester" {
		t.Errorf("task 1 author = %q, want fallback user", task.Author())
	}
	if link, ok := task.LinkFor("mock"); !ok || link.ID != "7" {
		t.Errorf("task 1 link = %+v ok=%v", link, ok)
	}
	if task.FindLabel("feature") == nil {
		t.Error("task 1 label missing")
	}
	if len(task.Comments) != 1 {
		t.Fatalf("task 1 has %d comments, want 1", len(task.Comments))
	}
	c := task.Comments[0]
	if c.Author() != "bob" || c.Text != "please" {
		t.Errorf("comment = %q by %q", c.Text, c.Author())
	}
	if link, ok := c.LinkFor("mock"); !ok || link.ID != "701" {
		t.Errorf("comment link = %+v ok=%v", link, ok)
	}

	task, err = store.GetTask(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status() != "CLOSED" {
		t.Errorf("task 2 status = %q", task.Status())
	}
	if task.Author() != "alice" {
		t.Errorf("task 2 author = %q", task.Author())
	}
	if at, ok := task.CreatedTime(); !ok || at.Unix() != created.Unix() {
		t.Errorf("task 2 created = %v ok=%v", at, ok)
	}
}

func TestPullUpdatesLinkedTask(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "New title", Body: "new body", Author: "alice", Closed: false, Labels: []string{"bug", "backend"}, Comments: 2},
	}
	mock.comments["7"] = []*RemoteComment{
		{ID: "701", Author: "bob", Body: "edited remotely"},
		{ID: "702", Author: "carol", Body: "fresh"},
	}
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	id := seedTask(t, store, "Old title", "OPEN", func(task *types.Task) {
		task.Properties.Set(types.PropDescription, "old body")
		task.Properties.Set("sprint", "9")
		task.SetLink("mock", types.Link{ID: "7"})
		task.AddLabel(&types.Label{Name: "bug", Color: "Red"})
		linked := task.AddComment("bob", time.Time{}, "original")
		linked.SetLink("mock", types.Link{ID: "701"})
		task.AddComment("me", time.Time{}, "local note")
	})

	report, err := eng.Pull(ctx, PullOptions{Comments: true, Labels: true})
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if got := report.Count(ActionUpdated); got != 1 {
		t.Fatalf("updated = %d, want 1: %+v", got, report.Items)
	}

	task, err := store.GetTask(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if task.Name() != "New title" || task.Description() != "new body" {
		t.Errorf("task = %q / %q", task.Name(), task.Description())
	}
	if task.Author() != "alice" {
		t.Errorf("author = %q", task.Author())
	}
	if got, _ := task.Properties.Get("sprint"); got != "9" {
		t.Errorf("custom property sprint = %q, want untouched", got)
	}

	bug := task.FindLabel("bug")
	if bug == nil || bug.Color != "Red" {
		t.Errorf("bug label = %+v, want color kept", bug)
	}
	if task.FindLabel("backend") == nil {
		t.Error("backend label missing")
	}

	if len(task.Comments) != 3 {
		t.Fatalf("got %d comments, want 3 (linked updated, local kept, remote added)", len(task.Comments))
	}
	if got := task.Comments[0].Text; got != "edited remotely" {
		t.Errorf("linked comment text = %q", got)
	}
	if got := task.Comments[1].Text; got != "local note" {
		t.Errorf("local comment text = %q", got)
	}
	last := task.Comments[2]
	if last.Text != "fresh" || last.Author() != "carol" {
		t.Errorf("appended comment = %q by %q", last.Text, last.Author())
	}
	if link, ok := last.LinkFor("mock"); !ok || link.ID != "702" {
		t.Errorf("appended comment link = %+v ok=%v", link, ok)
	}
}

func TestPullPreservesActiveStatus(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "1", Title: "Working on it", Closed: false},
		{ID: "2", Title: "Long done", Closed: true},
	}
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	inProgress := seedTask(t, store, "Working on it", "IN_PROGRESS", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "1"})
	})
	alsoActive := seedTask(t, store, "Long done", "IN_PROGRESS", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "2"})
	})

	report, err := eng.Pull(ctx, PullOptions{})
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}

	// An open remote issue never downgrades a started task.
	task, _ := store.GetTask(ctx, inProgress)
	if task.Status() != "IN_PROGRESS" {
		t.Errorf("status = %q, want IN_PROGRESS kept", task.Status())
	}
	if got := report.Count(ActionSkipped); got != 1 {
		t.Errorf("skipped = %d, want 1: %+v", got, report.Items)
	}

	// A closed remote issue does close the task.
	task, _ = store.GetTask(ctx, alsoActive)
	if task.Status() != "CLOSED" {
		t.Errorf("status = %q, want CLOSED", task.Status())
	}
}

func TestPullStatusFilter(t *testing.T) {
	for _, tt := range []struct {
		status string
		want   string
	}{
		{"", "all"},
		{"i", "open"},
		{"OPEN", "open"},
		{"c", "closed"},
		{"CLOSED", "closed"},
	} {
		mock := newMockTracker()
		eng, _ := newTestEngine(mock)
		if _, err := eng.Pull(context.Background(), PullOptions{Status: tt.status}); err != nil {
			t.Fatalf("pull(%q) failed: %v", tt.status, err)
		}
		if mock.listedState != tt.want {
			t.Errorf("status %q listed state %q, want %q", tt.status, mock.listedState, tt.want)
		}
	}
}

func TestPullLimit(t *testing.T) {
	mock := newMockTracker()
	for i := 1; i <= 5; i++ {
		id := strconv.Itoa(i)
		mock.issues = append(mock.issues, &RemoteIssue{ID: id, Title: "Issue " + id})
	}
	eng, _ := newTestEngine(mock)

	report, err := eng.Pull(context.Background(), PullOptions{Limit: 2})
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if got := report.Count(ActionCreated); got != 2 {
		t.Errorf("created = %d, want 2", got)
	}
}

func TestPullExplicitIDs(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "Renamed remotely"},
	}
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	var warnings []string
	eng.OnWarning = func(msg string) { warnings = append(warnings, msg) }

	linked := seedTask(t, store, "Old name", "OPEN", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "7"})
	})
	unlinked := seedTask(t, store, "Local only", "OPEN", nil)
	gone := seedTask(t, store, "Vanished", "OPEN", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "404"})
	})

	report, err := eng.Pull(ctx, PullOptions{IDs: []int{linked, unlinked, gone, 99}})
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}

	byTask := make(map[int]ReportItem)
	for _, item := range report.Items {
		byTask[item.TaskID] = item
	}
	if item := byTask[linked]; item.Action != ActionUpdated {
		t.Errorf("linked action = %s", item.Action)
	}
	if item := byTask[unlinked]; item.Action != ActionSkipped {
		t.Errorf("unlinked action = %s", item.Action)
	}
	if item := byTask[gone]; item.Action != ActionSkipped {
		t.Errorf("gone action = %s", item.Action)
	}
	item := byTask[99]
	if item.Action != ActionFailed || !errors.Is(item.Err, storage.ErrNotFound) {
		t.Errorf("missing task item = %+v", item)
	}
	if len(warnings) != 2 {
		t.Errorf("warnings = %q, want not-linked and gone", warnings)
	}

	task, _ := store.GetTask(ctx, linked)
	if task.Name() != "Renamed remotely" {
		t.Errorf("linked task name = %q", task.Name())
	}
}

func TestPullCommentFailureIsolated(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "1", Title: "Fine", Comments: 1},
		{ID: "2", Title: "Broken", Comments: 1},
	}
	mock.comments["1"] = []*RemoteComment{{ID: "11", Body: "ok"}}
	mock.commentsErr["2"] = errors.New("boom")
	eng, store := newTestEngine(mock)

	report, err := eng.Pull(context.Background(), PullOptions{Comments: true})
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if got := report.Count(ActionCreated); got != 1 {
		t.Errorf("created = %d, want 1", got)
	}
	if got := report.Count(ActionFailed); got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
	if !report.Failed() {
		t.Error("report should carry the failure")
	}

	task, err := store.GetTask(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(task.Comments) != 1 {
		t.Errorf("healthy issue imported %d comments, want 1", len(task.Comments))
	}
}

func TestPullCommentsUnsupported(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "1", Title: "One", Comments: 3},
		{ID: "2", Title: "Two", Comments: 2},
	}
	mock.noComments = true
	eng, _ := newTestEngine(mock)

	var warnings []string
	eng.OnWarning = func(msg string) { warnings = append(warnings, msg) }

	report, err := eng.Pull(context.Background(), PullOptions{Comments: true})
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if got := report.Count(ActionCreated); got != 2 {
		t.Errorf("created = %d, want 2", got)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %q, want exactly one", warnings)
	}
}

func TestPushCreatesAndLinks(t *testing.T) {
	mock := newMockTracker()
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	id := seedTask(t, store, "Ship it", "OPEN", func(task *types.Task) {
		task.Properties.Set(types.PropDescription, "the body")
		task.AddComment("me", time.Time{}, "first note")
	})

	report, err := eng.Push(ctx, PushOptions{Comments: true})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := report.Count(ActionCreated); got != 1 {
		t.Fatalf("created = %d: %+v", got, report.Items)
	}
	if report.Failed() {
		t.Fatalf("report has failures: %+v", report.Items)
	}

	if len(mock.createdIssues) != 1 {
		t.Fatalf("remote creates = %d", len(mock.createdIssues))
	}
	fields := mock.createdIssues[0]
	if fields.Title != "Ship it" || fields.Body != "the body" || fields.Closed {
		t.Errorf("created fields = %+v", fields)
	}
	if fields.Status != "OPEN" {
		t.Errorf("created status = %q, want the local status carried", fields.Status)
	}

	task, err := store.GetTask(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	link, ok := task.LinkFor("mock")
	if !ok || link.ID != "101" {
		t.Fatalf("task link = %+v ok=%v", link, ok)
	}
	if got := mock.createdComments["101"]; len(got) != 1 || got[0] != "first note" {
		t.Errorf("pushed comments = %q", got)
	}
	if clink, ok := task.Comments[0].LinkFor("mock"); !ok || clink.ID != "901" {
		t.Errorf("comment link = %+v ok=%v", clink, ok)
	}
}

func TestPushUpdatesChangedIssue(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "Stale", Body: "old", Closed: false},
	}
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	seedTask(t, store, "Fresh", "CLOSED", func(task *types.Task) {
		task.Properties.Set(types.PropDescription, "new")
		task.SetLink("mock", types.Link{ID: "7"})
	})

	report, err := eng.Push(ctx, PushOptions{})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := report.Count(ActionUpdated); got != 1 {
		t.Fatalf("updated = %d: %+v", got, report.Items)
	}
	fields, ok := mock.updatedIssues["7"]
	if !ok {
		t.Fatal("remote issue was not updated")
	}
	if fields.Title != "Fresh" || fields.Body != "new" || !fields.Closed {
		t.Errorf("updated fields = %+v", fields)
	}
	if fields.Status != "CLOSED" {
		t.Errorf("updated status = %q, want the local status carried", fields.Status)
	}
	if fields.Labels != nil {
		t.Errorf("labels pushed without being requested: %v", fields.Labels)
	}
}

func TestPushNamedStatusDrift(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "Same", Status: "To Do", Closed: false},
	}
	eng, store := newTestEngine(mock)

	seedTask(t, store, "Same", "IN_PROGRESS", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "7"})
	})

	report, err := eng.Push(context.Background(), PushOptions{})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := report.Count(ActionUpdated); got != 1 {
		t.Fatalf("updated = %d: %+v", got, report.Items)
	}
	fields, ok := mock.updatedIssues["7"]
	if !ok {
		t.Fatal("remote issue was not updated")
	}
	if fields.Status != "IN_PROGRESS" || fields.Closed {
		t.Errorf("updated fields = %+v, want open with IN_PROGRESS carried", fields)
	}
}

func TestPushStatusDriftWithoutNamedWorkflow(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "Same", Closed: false},
	}
	eng, store := newTestEngine(mock)

	// The remote reports no status name, so its open state collapses to
	// OPEN; a started task still counts as drift.
	seedTask(t, store, "Same", "IN_PROGRESS", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "7"})
	})

	report, err := eng.Push(context.Background(), PushOptions{})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := report.Count(ActionUpdated); got != 1 {
		t.Fatalf("updated = %d: %+v", got, report.Items)
	}
	if fields := mock.updatedIssues["7"]; fields.Status != "IN_PROGRESS" {
		t.Errorf("updated status = %q", fields.Status)
	}
}

func TestPushNothingToSync(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "Same", Body: "", Closed: false},
	}
	eng, store := newTestEngine(mock)

	var messages []string
	eng.OnMessage = func(msg string) { messages = append(messages, msg) }

	seedTask(t, store, "Same", "OPEN", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "7"})
	})

	report, err := eng.Push(context.Background(), PushOptions{})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := report.Count(ActionSkipped); got != 1 {
		t.Fatalf("skipped = %d: %+v", got, report.Items)
	}
	if len(mock.updatedIssues) != 0 {
		t.Error("remote update issued for identical issue")
	}
	found := false
	for _, msg := range messages {
		if strings.Contains(msg, "nothing to sync") {
			found = true
		}
	}
	if !found {
		t.Errorf("messages = %q, want nothing-to-sync notice", messages)
	}
}

type applyFailStore struct {
	*memstore.Store
	fail bool
}

func (s *applyFailStore) Apply(ctx context.Context, muts ...storage.Mutation) error {
	if s.fail {
		return errors.New("ref moved")
	}
	return s.Store.Apply(ctx, muts...)
}

func TestPushReportsUnrecordedLink(t *testing.T) {
	mock := newMockTracker()
	store := &applyFailStore{Store: memstore.New()}
	eng := &Engine{
		Store:   store,
		Tracker: mock,
		Config:  config.New(store, nil),
	}
	ctx := context.Background()

	id := seedTask(t, store, "Orphan", "OPEN", nil)
	store.fail = true

	report, err := eng.Push(ctx, PushOptions{})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("items = %+v", report.Items)
	}
	item := report.Items[0]
	if item.Action != ActionLinkLost {
		t.Errorf("action = %s, want %s", item.Action, ActionLinkLost)
	}
	if item.TaskID != id || item.RemoteID != "101" {
		t.Errorf("item = %+v", item)
	}
	if item.Err == nil || !strings.Contains(item.Err.Error(), "link was not recorded") {
		t.Errorf("err = %v", item.Err)
	}
	if !report.Failed() {
		t.Error("report should count the lost link as a failure")
	}
}

func TestPushEnsuresLabels(t *testing.T) {
	mock := newMockTracker()
	mock.labels = []*RemoteLabel{{Name: "bug", Color: "d73a4a"}}
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "Labeled", Closed: false, Labels: []string{"bug"}},
	}
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	seedTask(t, store, "Labeled", "OPEN", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "7"})
		task.AddLabel(&types.Label{Name: "bug"})
		task.AddLabel(&types.Label{Name: "urgent", Color: "Red"})
	})

	report, err := eng.Push(ctx, PushOptions{Labels: true})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := report.Count(ActionUpdated); got != 1 {
		t.Fatalf("updated = %d: %+v", got, report.Items)
	}
	if len(mock.createdLabels) != 1 || mock.createdLabels[0] != "urgent" {
		t.Errorf("created labels = %v, want only the missing one", mock.createdLabels)
	}
	fields := mock.updatedIssues["7"]
	if !sameLabelNames(fields.Labels, []string{"bug", "urgent"}) {
		t.Errorf("pushed labels = %v", fields.Labels)
	}
}

func TestPushLabelsUnsupported(t *testing.T) {
	mock := newMockTracker()
	mock.noLabels = true
	eng, store := newTestEngine(mock)

	var warnings []string
	eng.OnWarning = func(msg string) { warnings = append(warnings, msg) }

	seedTask(t, store, "Plain", "OPEN", func(task *types.Task) {
		task.AddLabel(&types.Label{Name: "bug"})
	})

	report, err := eng.Push(context.Background(), PushOptions{Labels: true})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := report.Count(ActionCreated); got != 1 {
		t.Fatalf("created = %d: %+v", got, report.Items)
	}
	if len(mock.createdIssues) != 1 || mock.createdIssues[0].Labels != nil {
		t.Errorf("created fields = %+v, want no labels", mock.createdIssues)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %q", warnings)
	}
}

func TestPushSelectsIDs(t *testing.T) {
	mock := newMockTracker()
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	first := seedTask(t, store, "First", "OPEN", nil)
	seedTask(t, store, "Second", "OPEN", nil)

	report, err := eng.Push(ctx, PushOptions{IDs: []int{first, 42}})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := report.Count(ActionCreated); got != 1 {
		t.Errorf("created = %d: %+v", got, report.Items)
	}
	if got := report.Count(ActionFailed); got != 1 {
		t.Errorf("failed = %d: %+v", got, report.Items)
	}
	if len(mock.createdIssues) != 1 || mock.createdIssues[0].Title != "First" {
		t.Errorf("remote creates = %+v", mock.createdIssues)
	}
}

func TestPushCommentLinksSurviveFailure(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "Chatty", Closed: false},
	}
	mock.commentFailAfter = 1
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	id := seedTask(t, store, "Chatty", "OPEN", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "7"})
		task.AddComment("me", time.Time{}, "goes through")
		task.AddComment("me", time.Time{}, "rejected")
	})

	report, err := eng.Push(ctx, PushOptions{Comments: true})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("items = %+v", report.Items)
	}
	item := report.Items[0]
	if item.Action != ActionSkipped || item.Err == nil {
		t.Errorf("item = %+v, want skipped with comment error", item)
	}

	// The first comment's link must be recorded so a retry does not
	// duplicate it.
	task, err := store.GetTask(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if link, ok := task.Comments[0].LinkFor("mock"); !ok || link.ID != "901" {
		t.Errorf("first comment link = %+v ok=%v", link, ok)
	}
	if _, ok := task.Comments[1].LinkFor("mock"); ok {
		t.Error("failed comment should stay unlinked")
	}
}

func TestPullListFailureAborts(t *testing.T) {
	mock := newMockTracker()
	mock.listErr = errors.New("503 service unavailable")
	eng, _ := newTestEngine(mock)

	if _, err := eng.Pull(context.Background(), PullOptions{}); err == nil {
		t.Fatal("expected listing failure to abort the pull")
	}
}

func TestPushIsolatesTaskFailures(t *testing.T) {
	mock := newMockTracker()
	mock.issues = []*RemoteIssue{
		{ID: "7", Title: "Stale", Closed: false},
	}
	mock.updateErr = errors.New("403 forbidden")
	eng, store := newTestEngine(mock)
	ctx := context.Background()

	broken := seedTask(t, store, "Retitled", "OPEN", func(task *types.Task) {
		task.SetLink("mock", types.Link{ID: "7"})
	})
	fine := seedTask(t, store, "Unlinked", "OPEN", nil)

	report, err := eng.Push(ctx, PushOptions{})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	byTask := make(map[int]ReportItem)
	for _, item := range report.Items {
		byTask[item.TaskID] = item
	}
	if item := byTask[broken]; item.Action != ActionFailed || item.Err == nil {
		t.Errorf("broken item = %+v", item)
	}
	if item := byTask[fine]; item.Action != ActionCreated {
		t.Errorf("fine item = %+v", item)
	}
}
