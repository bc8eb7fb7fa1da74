package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tasklog/tasklog/internal/tracker"
)

// Config keys contributed by the Jira connector. The base URL, account and
// project select the instance; the API token stays in the environment.
const (
	KeyBaseURL = "task.jira.url"
	KeyUser    = "task.jira.user"
	KeyProject = "task.jira.project"
)

const (
	urlEnv           = "JIRA_URL"
	fallbackURLEnv   = "JIRA_BASE_URL"
	userEnv          = "JIRA_USER"
	tokenEnv         = "JIRA_TOKEN"
	fallbackTokenEnv = "JIRA_API_TOKEN"
)

func init() {
	tracker.Register("jira", New)
}

// Tracker reconciles tasks against Jira issues.
type Tracker struct {
	setup   tracker.Setup
	client  *Client
	project string
}

var _ tracker.Tracker = (*Tracker)(nil)

// New builds the Jira connector.
func New(setup tracker.Setup) tracker.Tracker {
	return &Tracker{setup: setup}
}

func (t *Tracker) Kind() string        { return "jira" }
func (t *Tracker) DisplayName() string { return "Jira" }

func (t *Tracker) ConfigKeys() []string {
	return []string{KeyBaseURL, KeyUser, KeyProject}
}

// SupportsRemote never matches: Jira is not a git host.
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
	if v := t.setup.Env(urlEnv); v != "" {
		return v
	}
	return t.setup.Env(fallbackURLEnv)
}

// Connect resolves the instance URL, credentials and project. The remote
// URL is ignored; Jira instances are bound through configuration.
func (t *Tracker) Connect(ctx context.Context, remoteURL string) error {
	base := t.baseURL(ctx)
	if base == "" {
		return fmt.Errorf("jira: no base URL configured (set %s or %s)", KeyBaseURL, urlEnv)
	}

	user := t.setup.Env(userEnv)
	if v, err := t.setup.Config.GetConfig(ctx, KeyUser); err == nil && v != "" {
		user = v
	}

	token := t.setup.Env(tokenEnv)
	if token == "" {
		token = t.setup.Env(fallbackTokenEnv)
	}
	if token == "" {
		return fmt.Errorf("jira: %s environment variable is not set", tokenEnv)
	}

	if v, err := t.setup.Config.GetConfig(ctx, KeyProject); err == nil && v != "" {
		t.project = v
	}

	t.client = NewClient(base, user, token)
	return nil
}

func (t *Tracker) api() (*Client, error) {
	if t.client == nil {
		return nil, errors.New("jira: not connected")
	}
	return t.client, nil
}

// searchJQL builds the listing query. The state filter works on status
// categories so it holds across customized workflows.
func (t *Tracker) searchJQL(state string) string {
	var clauses []string
	if t.project != "" {
		clauses = append(clauses, fmt.Sprintf("project = %q", t.project))
	}
	switch state {
	case "open":
		clauses = append(clauses, "statusCategory != Done")
	case "closed":
		clauses = append(clauses, "statusCategory = Done")
	}
	jql := strings.Join(clauses, " AND ")
	if jql != "" {
		jql += " "
	}
	return jql + "ORDER BY created ASC"
}

func (t *Tracker) ListIssues(ctx context.Context, opts tracker.ListOptions, yield func(*tracker.RemoteIssue) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	return c.SearchIssues(ctx, t.searchJQL(opts.State), func(issue *Issue) error {
		return yield(t.remoteIssue(issue))
	})
}

func (t *Tracker) GetIssue(ctx context.Context, id string) (*tracker.RemoteIssue, error) {
	c, err := t.api()
	if err != nil {
		return nil, err
	}
	issue, err := c.GetIssue(ctx, id)
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
		return nil, fmt.Errorf("jira: no project configured (set %s)", KeyProject)
	}

	create := map[string]interface{}{
		"project":     map[string]string{"key": t.project},
		"summary":     fields.Title,
		"description": TextToADF(fields.Body),
		"issuetype":   map[string]string{"name": "Task"},
	}
	if len(fields.Labels) > 0 {
		create["labels"] = fields.Labels
	}

	issue, err := c.CreateIssue(ctx, create)
	if err != nil {
		return nil, err
	}
	// New issues start in the workflow's initial status; closed tasks need
	// a transition. If that fails the next push converges the state.
	if fields.Closed {
		if err := t.transition(ctx, issue.Key, fields.Status, true, false); err == nil {
			if closed, err := c.GetIssue(ctx, issue.Key); err == nil && closed != nil {
				issue = closed
			}
		}
	}
	return t.remoteIssue(issue), nil
}

func (t *Tracker) UpdateIssue(ctx context.Context, id string, fields tracker.IssueFields) error {
	c, err := t.api()
	if err != nil {
		return err
	}

	current, err := c.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return &tracker.RemoteError{Kind: "jira", Status: http.StatusNotFound, Message: fmt.Sprintf("issue %s not found", id)}
	}

	update := map[string]interface{}{
		"summary":     fields.Title,
		"description": TextToADF(fields.Body),
	}
	if fields.Labels != nil {
		update["labels"] = fields.Labels
	}
	if err := c.UpdateIssue(ctx, id, update); err != nil {
		return err
	}

	if statusDrifted(current.Fields.Status, fields) {
		return t.transition(ctx, id, fields.Status, fields.Closed, isDone(current.Fields.Status))
	}
	return nil
}

// statusDrifted reports whether the issue needs a workflow move: the done
// side flipped, or the local status names a different workflow state.
func statusDrifted(current *StatusField, fields tracker.IssueFields) bool {
	if isDone(current) != fields.Closed {
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
	return c.DeleteIssue(ctx, id)
}

func (t *Tracker) ListComments(ctx context.Context, issueID string, yield func(*tracker.RemoteComment) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	return c.FetchComments(ctx, issueID, func(comment *Comment) error {
		return yield(t.remoteComment(issueID, comment))
	})
}

func (t *Tracker) CreateComment(ctx context.Context, issueID, text string) (*tracker.RemoteComment, error) {
	c, err := t.api()
	if err != nil {
		return nil, err
	}
	comment, err := c.CreateComment(ctx, issueID, TextToADF(text))
	if err != nil {
		return nil, err
	}
	return t.remoteComment(issueID, comment), nil
}

func (t *Tracker) UpdateComment(ctx context.Context, issueID, commentID, text string) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	return c.UpdateComment(ctx, issueID, commentID, TextToADF(text))
}

func (t *Tracker) DeleteComment(ctx context.Context, issueID, commentID string) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	return c.DeleteComment(ctx, issueID, commentID)
}

func (t *Tracker) ListLabels(ctx context.Context, yield func(*tracker.RemoteLabel) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	return c.FetchLabels(ctx, func(name string) error {
		return yield(&tracker.RemoteLabel{Name: name})
	})
}

// CreateLabel is a no-op: Jira labels have no definitions of their own and
// come into being when first set on an issue.
func (t *Tracker) CreateLabel(ctx context.Context, label tracker.RemoteLabel) (*tracker.RemoteLabel, error) {
	return &tracker.RemoteLabel{Name: label.Name}, nil
}

func (t *Tracker) UpdateLabel(ctx context.Context, name string, label tracker.RemoteLabel) error {
	return tracker.ErrUnsupported
}

// transition moves an issue toward the local status. A transition target
// named like the status wins; otherwise the done and not-done status
// categories anchor the move, preferring a "To Do" target when reopening.
func (t *Tracker) transition(ctx context.Context, key, status string, closed, currentlyDone bool) error {
	transitions, err := t.client.Transitions(ctx, key)
	if err != nil {
		return err
	}

	if status != "" {
		for _, tr := range transitions {
			if tr.To != nil && strings.EqualFold(tr.To.Name, status) {
				return t.client.DoTransition(ctx, key, tr.ID)
			}
		}
	}
	if closed == currentlyDone {
		// No target carries the status name and the done side already
		// agrees; the status stays local.
		return nil
	}

	var fallback string
	for _, tr := range transitions {
		if tr.To == nil || tr.To.StatusCategory == nil {
			continue
		}
		category := tr.To.StatusCategory.Key
		if closed {
			if category == "done" {
				return t.client.DoTransition(ctx, key, tr.ID)
			}
			continue
		}
		if category == "new" {
			return t.client.DoTransition(ctx, key, tr.ID)
		}
		if category != "done" && fallback == "" {
			fallback = tr.ID
		}
	}
	if !closed && fallback != "" {
		return t.client.DoTransition(ctx, key, fallback)
	}

	state := "an open"
	if closed {
		state = "a done"
	}
	return fmt.Errorf("jira: no transition to %s status on %s", state, key)
}

func isDone(status *StatusField) bool {
	return status != nil && status.StatusCategory != nil && status.StatusCategory.Key == "done"
}

func (t *Tracker) remoteIssue(issue *Issue) *tracker.RemoteIssue {
	f := issue.Fields
	ri := &tracker.RemoteIssue{
		ID:       issue.Key,
		URL:      t.client.URL + "/browse/" + issue.Key,
		Title:    f.Summary,
		Body:     ADFToText(f.Description),
		Closed:   isDone(f.Status),
		Labels:   f.Labels,
		Comments: -1, // listings carry no comment count
	}
	if f.Status != nil {
		ri.Status = f.Status.Name
	}
	if f.Creator != nil {
		ri.Author = f.Creator.EmailAddress
		if ri.Author == "" {
			ri.Author = f.Creator.DisplayName
		}
	}
	if created, err := ParseTimestamp(f.Created); err == nil {
		ri.Created = created
	}
	return ri
}

func (t *Tracker) remoteComment(issueKey string, comment *Comment) *tracker.RemoteComment {
	rc := &tracker.RemoteComment{
		ID:   comment.ID,
		URL:  fmt.Sprintf("%s/browse/%s?focusedCommentId=%s", t.client.URL, issueKey, comment.ID),
		Body: ADFToText(comment.Body),
	}
	if comment.Author != nil {
		rc.Author = comment.Author.DisplayName
	}
	if created, err := ParseTimestamp(comment.Created); err == nil {
		rc.Created = created
	}
	return rc
}
