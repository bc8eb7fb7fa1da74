package redmine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tasklog/tasklog/internal/tracker"
)

// Config keys contributed by the Redmine connector. The base URL and
// project select the server; the API key stays in the environment.
const (
	KeyBaseURL = "task.redmine.url"
	KeyProject = "task.redmine.project"
)

const (
	urlEnv         = "REDMINE_URL"
	keyEnv         = "REDMINE_API_KEY"
	fallbackKeyEnv = "REDMINE_TOKEN"
)

func init() {
	tracker.Register("redmine", New)
}

// Tracker reconciles tasks against Redmine issues.
type Tracker struct {
	setup     tracker.Setup
	client    *Client
	project   string
	projectID int // resolved lazily for issue creation
}

var _ tracker.Tracker = (*Tracker)(nil)

// New builds the Redmine connector.
func New(setup tracker.Setup) tracker.Tracker {
	return &Tracker{setup: setup}
}

func (t *Tracker) Kind() string        { return "redmine" }
func (t *Tracker) DisplayName() string { return "Redmine" }

func (t *Tracker) ConfigKeys() []string {
	return []string{KeyBaseURL, KeyProject}
}

// SupportsRemote never matches: Redmine is not a git host.
func (t *Tracker) SupportsRemote(url string) (string, string, bool) {
	return "", "", false
}

// Configured reports whether a base URL is known, from config or
// environment.
func (t *Tracker) Configured(ctx context.Context) bool {
	return t.baseURL(ctx) != ""
}

func (t *Tracker) baseURL(ctx context.Context) string {
	if v, err := t.setup.Config.GetConfig(ctx, KeyBaseURL); err == nil && v != "" {
		return v
	}
	return t.setup.Env(urlEnv)
}

// Connect resolves the server URL, API key and project. The remote URL is
// ignored; Redmine servers are bound through configuration.
func (t *Tracker) Connect(ctx context.Context, remoteURL string) error {
	base := t.baseURL(ctx)
	if base == "" {
		return fmt.Errorf("redmine: no base URL configured (set %s or %s)", KeyBaseURL, urlEnv)
	}

	key := t.setup.Env(keyEnv)
	if key == "" {
		key = t.setup.Env(fallbackKeyEnv)
	}
	if key == "" {
		return fmt.Errorf("redmine: %s environment variable is not set", keyEnv)
	}

	if v, err := t.setup.Config.GetConfig(ctx, KeyProject); err == nil && v != "" {
		t.project = v
	}

	t.client = NewClient(base, key)
	return nil
}

func (t *Tracker) api() (*Client, error) {
	if t.client == nil {
		return nil, errors.New("redmine: not connected")
	}
	return t.client, nil
}

func (t *Tracker) ListIssues(ctx context.Context, opts tracker.ListOptions, yield func(*tracker.RemoteIssue) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}

	state := "*"
	switch opts.State {
	case "open":
		state = "open"
	case "closed":
		state = "closed"
	}

	return c.FetchIssues(ctx, state, t.project, func(issue *Issue) error {
		return yield(t.remoteIssue(issue))
	})
}

func (t *Tracker) GetIssue(ctx context.Context, id string) (*tracker.RemoteIssue, error) {
	c, err := t.api()
	if err != nil {
		return nil, err
	}
	num, err := issueNumber(id)
	if err != nil {
		return nil, err
	}

	issue, err := c.FetchIssue(ctx, num, true)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, nil
	}
	return t.remoteIssue(issue), nil
}

func (t *Tracker) CreateIssue(ctx context.Context, fields tracker.IssueFields) (*tracker.RemoteIssue, error) {
	c, err := t.api()
	if err != nil {
		return nil, err
	}
	if t.project == "" {
		return nil, fmt.Errorf("redmine: no project configured (set %s)", KeyProject)
	}
	projectID, err := t.resolveProjectID(ctx)
	if err != nil {
		return nil, err
	}

	create := map[string]interface{}{
		"project_id":  projectID,
		"subject":     fields.Title,
		"description": fields.Body,
	}
	// New issues default to the server's initial status; closed tasks go
	// out with a closed status when one resolves. Otherwise the next push
	// converges the state.
	if fields.Closed {
		if id, err := t.statusID(ctx, fields.Status, true); err == nil {
			create["status_id"] = id
		}
	}

	issue, err := c.CreateIssue(ctx, create)
	if err != nil {
		return nil, err
	}
	return t.remoteIssue(issue), nil
}

func (t *Tracker) UpdateIssue(ctx context.Context, id string, fields tracker.IssueFields) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	num, err := issueNumber(id)
	if err != nil {
		return err
	}

	current, err := c.FetchIssue(ctx, num, false)
	if err != nil {
		return err
	}
	if current == nil {
		return &tracker.RemoteError{Kind: "redmine", Status: http.StatusNotFound, Message: fmt.Sprintf("issue %s not found", id)}
	}

	update := map[string]interface{}{
		"subject":     fields.Title,
		"description": fields.Body,
	}
	// Status rides along in the same update; Redmine has no separate
	// state endpoint.
	if statusDrifted(current.Status, fields) {
		statusID, err := t.statusID(ctx, fields.Status, fields.Closed)
		if err != nil {
			return err
		}
		update["status_id"] = statusID
	}

	return c.UpdateIssue(ctx, num, update)
}

// statusDrifted reports whether the issue needs a status change: the
// closed side flipped, or the local status names a different one.
func statusDrifted(current *Status, fields tracker.IssueFields) bool {
	if statusClosed(current) != fields.Closed {
		return true
	}
	if fields.Status == "" || current == nil {
		return false
	}
	return !strings.EqualFold(current.Name, fields.Status)
}

func (t *Tracker) DeleteIssue(ctx context.Context, id string) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	num, err := issueNumber(id)
	if err != nil {
		return err
	}
	return c.DeleteIssue(ctx, num)
}

func (t *Tracker) ListComments(ctx context.Context, issueID string, yield func(*tracker.RemoteComment) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	num, err := issueNumber(issueID)
	if err != nil {
		return err
	}

	issue, err := c.FetchIssue(ctx, num, true)
	if err != nil {
		return err
	}
	if issue == nil {
		return &tracker.RemoteError{Kind: "redmine", Status: http.StatusNotFound, Message: fmt.Sprintf("issue %s not found", issueID)}
	}

	for i := range issue.Journals {
		j := &issue.Journals[i]
		if j.Notes == "" {
			continue
		}
		if err := yield(t.remoteComment(issueID, j)); err != nil {
			if errors.Is(err, tracker.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t *Tracker) CreateComment(ctx context.Context, issueID, text string) (*tracker.RemoteComment, error) {
	c, err := t.api()
	if err != nil {
		return nil, err
	}
	num, err := issueNumber(issueID)
	if err != nil {
		return nil, err
	}

	if err := c.UpdateIssue(ctx, num, map[string]interface{}{"notes": text}); err != nil {
		return nil, err
	}

	// The update response carries no journal id; recover it from a
	// re-fetch, newest entry first.
	issue, err := c.FetchIssue(ctx, num, true)
	if err != nil {
		return nil, err
	}
	if issue != nil {
		for i := len(issue.Journals) - 1; i >= 0; i-- {
			if issue.Journals[i].Notes == text {
				return t.remoteComment(issueID, &issue.Journals[i]), nil
			}
		}
	}
	return nil, fmt.Errorf("redmine: note added to issue %s but not found in its journals", issueID)
}

func (t *Tracker) UpdateComment(ctx context.Context, issueID, commentID, text string) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	num, err := journalNumber(commentID)
	if err != nil {
		return err
	}
	return c.UpdateJournal(ctx, num, text)
}

func (t *Tracker) DeleteComment(ctx context.Context, issueID, commentID string) error {
	return tracker.ErrUnsupported
}

func (t *Tracker) ListLabels(ctx context.Context, yield func(*tracker.RemoteLabel) error) error {
	return tracker.ErrUnsupported
}

func (t *Tracker) CreateLabel(ctx context.Context, label tracker.RemoteLabel) (*tracker.RemoteLabel, error) {
	return nil, tracker.ErrUnsupported
}

func (t *Tracker) UpdateLabel(ctx context.Context, name string, label tracker.RemoteLabel) error {
	return tracker.ErrUnsupported
}

// resolveProjectID turns the configured project into a numeric id, which
// is what issue creation requires. Identifiers and names resolve through
// the project listing.
func (t *Tracker) resolveProjectID(ctx context.Context) (int, error) {
	if t.projectID != 0 {
		return t.projectID, nil
	}
	if id, err := strconv.Atoi(t.project); err == nil {
		t.projectID = id
		return id, nil
	}

	lower := strings.ToLower(t.project)
	err := t.client.FetchProjects(ctx, func(p *Project) error {
		if strings.ToLower(p.Identifier) == lower || strings.ToLower(p.Name) == lower {
			t.projectID = p.ID
			return tracker.ErrStop
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if t.projectID == 0 {
		return 0, fmt.Errorf("redmine: project %q not found on the server", t.project)
	}
	return t.projectID, nil
}

// statusID resolves a status against the server catalog. A status named
// like the local one wins; otherwise the first status on the requested
// side of the open/closed split serves.
func (t *Tracker) statusID(ctx context.Context, name string, closed bool) (int, error) {
	statuses, err := t.client.FetchStatuses(ctx)
	if err != nil {
		return 0, err
	}
	if name != "" {
		for i := range statuses {
			if strings.EqualFold(statuses[i].Name, name) {
				return statuses[i].ID, nil
			}
		}
	}
	for i := range statuses {
		if statusClosed(&statuses[i]) == closed {
			return statuses[i].ID, nil
		}
	}

	want := "open"
	if closed {
		want = "closed"
	}
	return 0, fmt.Errorf("redmine: no %s status on the server", want)
}

// statusClosed reports whether a status means done. Older servers omit
// is_closed from issue payloads, so well-known names count too.
func statusClosed(s *Status) bool {
	if s == nil {
		return false
	}
	if s.IsClosed {
		return true
	}
	name := strings.ToLower(s.Name)
	return strings.Contains(name, "closed") || strings.Contains(name, "resolved")
}

func issueNumber(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("redmine: invalid issue id %q", id)
	}
	return n, nil
}

func journalNumber(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("redmine: invalid journal id %q", id)
	}
	return n, nil
}

func (t *Tracker) remoteIssue(issue *Issue) *tracker.RemoteIssue {
	ri := &tracker.RemoteIssue{
		ID:       strconv.Itoa(issue.ID),
		URL:      fmt.Sprintf("%s/issues/%d", t.client.BaseURL, issue.ID),
		Title:    issue.Subject,
		Body:     issue.Description,
		Closed:   statusClosed(issue.Status),
		Comments: -1,
	}
	if issue.Status != nil {
		ri.Status = issue.Status.Name
	}
	if issue.Author != nil {
		ri.Author = issue.Author.Name
	}
	if created, err := time.Parse(time.RFC3339, issue.CreatedOn); err == nil {
		ri.Created = created
	}
	// Journals are only present on detail fetches; their presence gives
	// an exact comment count.
	if issue.Journals != nil {
		n := 0
		for i := range issue.Journals {
			if issue.Journals[i].Notes != "" {
				n++
			}
		}
		ri.Comments = n
	}
	return ri
}

func (t *Tracker) remoteComment(issueID string, j *Journal) *tracker.RemoteComment {
	rc := &tracker.RemoteComment{
		ID:   strconv.Itoa(j.ID),
		URL:  fmt.Sprintf("%s/issues/%s#change-%d", t.client.BaseURL, issueID, j.ID),
		Body: j.Notes,
	}
	if j.User != nil {
		rc.Author = j.User.Name
	}
	if created, err := time.Parse(time.RFC3339, j.CreatedOn); err == nil {
		rc.Created = created
	}
	return rc
}
