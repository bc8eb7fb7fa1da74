package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tasklog/tasklog/internal/storage/memstore"
	"github.com/tasklog/tasklog/internal/tracker"
)

// connectedTracker binds a connector to a test server through config, the
// way a real server is bound. The API key comes from the fake env.
func connectedTracker(t *testing.T, serverURL, project string) *Tracker {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	if err := store.SetConfig(ctx, KeyBaseURL, serverURL); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if project != "" {
		if err := store.SetConfig(ctx, KeyProject, project); err != nil {
			t.Fatalf("SetConfig() error = %v", err)
		}
	}
	tr := New(tracker.Setup{
		Config: store,
		Getenv: func(name string) string {
			if name == keyEnv {
				return "secret"
			}
			return ""
		},
	}).(*Tracker)
	if err := tr.Connect(ctx, ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return tr
}

// TestRegistered verifies the connector registers itself at init time.
func TestRegistered(t *testing.T) {
	if tracker.Get("redmine") == nil {
		t.Fatal(`tracker.Get("redmine") = nil, want registered factory`)
	}
}

// TestSupportsRemote_NeverMatches verifies Redmine does not claim git remotes.
func TestSupportsRemote_NeverMatches(t *testing.T) {
	tr := New(tracker.Setup{Config: memstore.New()})

	for _, url := range []string{
		"git@github.com:acme/widgets.git",
		"https://redmine.example.com/projects/widgets",
		"",
	} {
		if _, _, ok := tr.SupportsRemote(url); ok {
			t.Errorf("SupportsRemote(%q) = true, want false (redmine binds through config)", url)
		}
	}
}

// TestConfigured verifies presence of a base URL in config or env.
func TestConfigured(t *testing.T) {
	ctx := context.Background()

	unset := New(tracker.Setup{Config: memstore.New(), Getenv: func(string) string { return "" }})
	if unset.Configured(ctx) {
		t.Error("Configured() = true with no URL anywhere")
	}

	store := memstore.New()
	if err := store.SetConfig(ctx, KeyBaseURL, "https://redmine.example.com"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	fromConfig := New(tracker.Setup{Config: store, Getenv: func(string) string { return "" }})
	if !fromConfig.Configured(ctx) {
		t.Error("Configured() = false with config URL")
	}

	fromEnv := New(tracker.Setup{Config: memstore.New(), Getenv: func(name string) string {
		if name == urlEnv {
			return "https://redmine.example.com"
		}
		return ""
	}})
	if !fromEnv.Configured(ctx) {
		t.Error("Configured() = false with REDMINE_URL set")
	}
}

// TestConnect_Errors verifies missing URL and API key fail early.
func TestConnect_Errors(t *testing.T) {
	ctx := context.Background()

	noURL := New(tracker.Setup{Config: memstore.New(), Getenv: func(string) string { return "" }})
	if err := noURL.Connect(ctx, ""); err == nil || !strings.Contains(err.Error(), "no base URL configured") {
		t.Errorf("Connect() error = %v, want base URL error", err)
	}

	store := memstore.New()
	if err := store.SetConfig(ctx, KeyBaseURL, "https://redmine.example.com"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	noKey := New(tracker.Setup{Config: store, Getenv: func(string) string { return "" }})
	if err := noKey.Connect(ctx, ""); err == nil || !strings.Contains(err.Error(), "REDMINE_API_KEY") {
		t.Errorf("Connect() error = %v, want API key error", err)
	}
}

// TestConnect_FallbackKey verifies the secondary env variable name.
func TestConnect_FallbackKey(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	if err := store.SetConfig(ctx, KeyBaseURL, "https://redmine.example.com"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	tr := New(tracker.Setup{
		Config: store,
		Getenv: func(name string) string {
			if name == fallbackKeyEnv {
				return "alt-key"
			}
			return ""
		},
	}).(*Tracker)
	if err := tr.Connect(ctx, ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if tr.client.APIKey != "alt-key" {
		t.Errorf("APIKey = %q, want REDMINE_TOKEN fallback", tr.client.APIKey)
	}
}

// TestListIssues_StateMapping verifies the status_id filter values.
func TestListIssues_StateMapping(t *testing.T) {
	var gotStates []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStates = append(gotStates, r.URL.Query().Get("status_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"issues": [], "total_count": 0, "offset": 0, "limit": 100}`)
	}))
	defer server.Close()

	tr := connectedTracker(t, server.URL, "")
	for _, state := range []string{"open", "closed", "all", ""} {
		err := tr.ListIssues(context.Background(), tracker.ListOptions{State: state}, func(*tracker.RemoteIssue) error {
			return nil
		})
		if err != nil {
			t.Fatalf("ListIssues(%q) error = %v", state, err)
		}
	}

	want := []string{"open", "closed", "*", "*"}
	for i := range want {
		if gotStates[i] != want[i] {
			t.Errorf("status_id[%d] = %q, want %q", i, gotStates[i], want[i])
		}
	}
}

// TestGetIssue_Conversion verifies the wire type maps onto the generic
// issue, with journals counted as comments.
func TestGetIssue_Conversion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"issue": {
			"id": 42,
			"subject": "Broken login",
			"description": "Steps to reproduce",
			"status": {"id": 5, "name": "Closed", "is_closed": true},
			"author": {"id": 5, "name": "Alice"},
			"project": {"id": 7, "name": "Widgets"},
			"created_on": "2024-03-01T10:00:00Z",
			"journals": [
				{"id": 900, "user": {"id": 6, "name": "Bob"}, "notes": "A comment", "created_on": "2024-03-02T09:00:00Z"},
				{"id": 901, "user": {"id": 6, "name": "Bob"}, "notes": "", "created_on": "2024-03-02T10:00:00Z"}
			]
		}}`)
	}))
	defer server.Close()

	tr := connectedTracker(t, server.URL, "")
	ri, err := tr.GetIssue(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}

	if ri.ID != "42" {
		t.Errorf("ID = %q, want %q", ri.ID, "42")
	}
	if ri.URL != server.URL+"/issues/42" {
		t.Errorf("URL = %q, want issue link", ri.URL)
	}
	if !ri.Closed {
		t.Error("Closed = false, want true for is_closed status")
	}
	if ri.Status != "Closed" {
		t.Errorf("Status = %q, want the named status", ri.Status)
	}
	if ri.Author != "Alice" {
		t.Errorf("Author = %q, want %q", ri.Author, "Alice")
	}
	if ri.Comments != 1 {
		t.Errorf("Comments = %d, want 1 (empty-notes journal excluded)", ri.Comments)
	}
	if ri.Created.IsZero() {
		t.Error("Created is zero, want parsed timestamp")
	}
}

// TestClosedByStatusName covers servers that omit is_closed.
func TestClosedByStatusName(t *testing.T) {
	tests := []struct {
		status *Status
		want   bool
	}{
		{&Status{Name: "New"}, false},
		{&Status{Name: "In Progress"}, false},
		{&Status{Name: "Closed"}, true},
		{&Status{Name: "Resolved"}, true},
		{&Status{Name: "Won't Fix", IsClosed: true}, true},
		{nil, false},
	}

	for _, tt := range tests {
		if got := statusClosed(tt.status); got != tt.want {
			t.Errorf("statusClosed(%+v) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// TestListComments_SkipsEmptyNotes verifies bare history entries are not
// comments.
func TestListComments_SkipsEmptyNotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"issue": {
			"id": 42,
			"subject": "x",
			"journals": [
				{"id": 900, "user": {"id": 6, "name": "Bob"}, "notes": "First comment", "created_on": "2024-03-02T09:00:00Z"},
				{"id": 901, "user": {"id": 6, "name": "Bob"}, "notes": "", "created_on": "2024-03-02T10:00:00Z"},
				{"id": 902, "user": {"id": 7, "name": "Carol"}, "notes": "Second comment", "created_on": "2024-03-02T11:00:00Z"}
			]
		}}`)
	}))
	defer server.Close()

	tr := connectedTracker(t, server.URL, "")
	var comments []*tracker.RemoteComment
	err := tr.ListComments(context.Background(), "42", func(c *tracker.RemoteComment) error {
		comments = append(comments, c)
		return nil
	})
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}

	if len(comments) != 2 {
		t.Fatalf("ListComments() yielded %d comments, want 2 (status-change journal filtered)", len(comments))
	}
	if comments[0].ID != "900" || comments[1].ID != "902" {
		t.Errorf("comment IDs = %s, %s, want 900, 902", comments[0].ID, comments[1].ID)
	}
	if comments[0].Author != "Bob" {
		t.Errorf("Author = %q, want %q", comments[0].Author, "Bob")
	}
	if comments[1].URL != server.URL+"/issues/42#change-902" {
		t.Errorf("URL = %q, want journal anchor", comments[1].URL)
	}
}

// TestCreateComment_RecoversJournalID verifies the note update followed by
// the journal scan, newest entry winning.
func TestCreateComment_RecoversJournalID(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			var payload struct {
				Issue map[string]interface{} `json:"issue"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode update request: %v", err)
			}
			if payload.Issue["notes"] != "Same text" {
				t.Errorf("unexpected notes: %v", payload.Issue["notes"])
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"issue": {
			"id": 42,
			"subject": "x",
			"journals": [
				{"id": 900, "user": {"id": 6, "name": "Bob"}, "notes": "Same text", "created_on": "2024-03-02T09:00:00Z"},
				{"id": 905, "user": {"id": 5, "name": "Alice"}, "notes": "Same text", "created_on": "2024-03-03T09:00:00Z"}
			]
		}}`)
	}))
	defer server.Close()

	tr := connectedTracker(t, server.URL, "")
	rc, err := tr.CreateComment(context.Background(), "42", "Same text")
	if err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}

	if rc.ID != "905" {
		t.Errorf("ID = %q, want %q (newest matching journal)", rc.ID, "905")
	}
	want := []string{"PUT /issues/42.json", "GET /issues/42.json"}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

// TestUpdateIssue_ResolvesStatus verifies a state change looks up a status
// id and sends it in the same update.
func TestUpdateIssue_ResolvesStatus(t *testing.T) {
	var calls []string
	var gotUpdate map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/issue_statuses.json":
			fmt.Fprint(w, `{"issue_statuses": [
				{"id": 1, "name": "New", "is_closed": false},
				{"id": 5, "name": "Closed", "is_closed": true}
			]}`)
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"issue": {"id": 42, "subject": "x", "status": {"id": 1, "name": "New"}}}`)
		default:
			var payload struct {
				Issue map[string]interface{} `json:"issue"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode update request: %v", err)
			}
			gotUpdate = payload.Issue
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	tr := connectedTracker(t, server.URL, "")
	err := tr.UpdateIssue(context.Background(), "42", tracker.IssueFields{Title: "x", Closed: true})
	if err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}

	want := []string{
		"GET /issues/42.json",
		"GET /issue_statuses.json",
		"PUT /issues/42.json",
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
	if gotUpdate["status_id"] != float64(5) {
		t.Errorf("status_id = %v, want 5", gotUpdate["status_id"])
	}
}

// TestUpdateIssue_StatusByName verifies a catalog status named like the
// local one wins over the open/closed anchors.
func TestUpdateIssue_StatusByName(t *testing.T) {
	var gotUpdate map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/issue_statuses.json":
			fmt.Fprint(w, `{"issue_statuses": [
				{"id": 1, "name": "New", "is_closed": false},
				{"id": 2, "name": "In Progress", "is_closed": false},
				{"id": 5, "name": "Closed", "is_closed": true}
			]}`)
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"issue": {"id": 42, "subject": "x", "status": {"id": 1, "name": "New"}}}`)
		default:
			var payload struct {
				Issue map[string]interface{} `json:"issue"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode update request: %v", err)
			}
			gotUpdate = payload.Issue
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	tr := connectedTracker(t, server.URL, "")
	err := tr.UpdateIssue(context.Background(), "42", tracker.IssueFields{Title: "x", Status: "In Progress", Closed: false})
	if err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}

	if gotUpdate["status_id"] != float64(2) {
		t.Errorf("status_id = %v, want the name-matched status", gotUpdate["status_id"])
	}
}

// TestUpdateIssue_NoStatusLookupWhenUnchanged verifies a plain field edit
// skips the status listing.
func TestUpdateIssue_NoStatusLookupWhenUnchanged(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"issue": {"id": 42, "subject": "x", "status": {"id": 1, "name": "New"}}}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tr := connectedTracker(t, server.URL, "")
	err := tr.UpdateIssue(context.Background(), "42", tracker.IssueFields{Title: "Renamed", Closed: false})
	if err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("calls = %v, want GET then PUT only", calls)
	}
	if calls[1] != "PUT /issues/42.json" {
		t.Errorf("call[1] = %q, want the field update", calls[1])
	}
}

// TestCreateIssue_ResolvesProjectIdentifier verifies non-numeric projects
// resolve through the project listing.
func TestCreateIssue_ResolvesProjectIdentifier(t *testing.T) {
	var gotCreate map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/projects.json":
			fmt.Fprint(w, `{"projects": [
				{"id": 7, "name": "Widgets", "identifier": "widgets"}
			], "total_count": 1, "offset": 0, "limit": 100}`)
		case "/issues.json":
			var payload struct {
				Issue map[string]interface{} `json:"issue"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode create request: %v", err)
			}
			gotCreate = payload.Issue
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"issue": {"id": 43, "subject": "New task", "status": {"id": 1, "name": "New"}}}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	tr := connectedTracker(t, server.URL, "widgets")
	ri, err := tr.CreateIssue(context.Background(), tracker.IssueFields{Title: "New task", Body: "Details"})
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	if ri.ID != "43" {
		t.Errorf("ID = %q, want %q", ri.ID, "43")
	}
	if gotCreate["project_id"] != float64(7) {
		t.Errorf("project_id = %v, want 7 (resolved from identifier)", gotCreate["project_id"])
	}
	if gotCreate["subject"] != "New task" {
		t.Errorf("subject = %v", gotCreate["subject"])
	}
}

// TestCreateIssue_RequiresProject verifies creation refuses to guess.
func TestCreateIssue_RequiresProject(t *testing.T) {
	tr := connectedTracker(t, "https://redmine.example.com", "")

	_, err := tr.CreateIssue(context.Background(), tracker.IssueFields{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), KeyProject) {
		t.Errorf("CreateIssue() error = %v, want project error", err)
	}
}

// TestUnsupportedOperations verifies labels and comment deletion decline
// cleanly.
func TestUnsupportedOperations(t *testing.T) {
	tr := connectedTracker(t, "https://redmine.example.com", "")
	ctx := context.Background()

	if err := tr.ListLabels(ctx, func(*tracker.RemoteLabel) error { return nil }); !errors.Is(err, tracker.ErrUnsupported) {
		t.Errorf("ListLabels() error = %v, want ErrUnsupported", err)
	}
	if _, err := tr.CreateLabel(ctx, tracker.RemoteLabel{Name: "bug"}); !errors.Is(err, tracker.ErrUnsupported) {
		t.Errorf("CreateLabel() error = %v, want ErrUnsupported", err)
	}
	if err := tr.UpdateLabel(ctx, "bug", tracker.RemoteLabel{Name: "defect"}); !errors.Is(err, tracker.ErrUnsupported) {
		t.Errorf("UpdateLabel() error = %v, want ErrUnsupported", err)
	}
	if err := tr.DeleteComment(ctx, "42", "900"); !errors.Is(err, tracker.ErrUnsupported) {
		t.Errorf("DeleteComment() error = %v, want ErrUnsupported", err)
	}
}
