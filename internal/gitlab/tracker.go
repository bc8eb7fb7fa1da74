package gitlab

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tasklog/tasklog/internal/git"
	"github.com/tasklog/tasklog/internal/tracker"
)

// KeyBaseURL overrides the instance URL, for self-hosted GitLab or tests.
const KeyBaseURL = "task.gitlab.url"

const (
	tokenEnv         = "GITLAB_TOKEN"
	fallbackTokenEnv = "GITLAB_API_TOKEN"
)

func init() {
	tracker.Register("gitlab", New)
}

// Tracker reconciles tasks against GitLab issues.
type Tracker struct {
	setup  tracker.Setup
	client *Client
}

var _ tracker.Tracker = (*Tracker)(nil)

// New builds the GitLab connector.
func New(setup tracker.Setup) tracker.Tracker {
	return &Tracker{setup: setup}
}

func (t *Tracker) Kind() string        { return "gitlab" }
func (t *Tracker) DisplayName() string { return "GitLab" }

func (t *Tracker) ConfigKeys() []string {
	return []string{KeyBaseURL}
}

// SupportsRemote matches remotes hosted on gitlab.com. Nested group paths
// keep their full namespace as the owner.
func (t *Tracker) SupportsRemote(url string) (string, string, bool) {
	parts, err := git.ParseRemoteURL(url)
	if err != nil || parts.Host != "gitlab.com" {
		return "", "", false
	}
	return parts.Owner, parts.Repo, true
}

// Configured always reports false: GitLab is selected by matching a git
// remote, never by configuration alone.
func (t *Tracker) Configured(ctx context.Context) bool { return false }

// Connect binds the connector to the project behind the remote URL.
// Reading works without credentials on public projects; writes need
// GITLAB_TOKEN (or GITLAB_API_TOKEN) in the environment.
func (t *Tracker) Connect(ctx context.Context, remoteURL string) error {
	owner, repo, ok := t.SupportsRemote(remoteURL)
	if !ok {
		return fmt.Errorf("gitlab: not a gitlab.com remote: %s", remoteURL)
	}

	token := t.setup.Env(tokenEnv)
	if token == "" {
		token = t.setup.Env(fallbackTokenEnv)
	}

	baseURL := DefaultInstanceURL
	if v, err := t.setup.Config.GetConfig(ctx, KeyBaseURL); err == nil && v != "" {
		baseURL = v
	}

	t.client = NewClient(token, baseURL, owner+"/"+repo)
	return nil
}

func (t *Tracker) api() (*Client, error) {
	if t.client == nil {
		return nil, errors.New("gitlab: not connected")
	}
	return t.client, nil
}

// requireToken guards write operations; anonymous clients may only read.
func (t *Tracker) requireToken() (*Client, error) {
	c, err := t.api()
	if err != nil {
		return nil, err
	}
	if c.Token == "" {
		return nil, fmt.Errorf("gitlab: %s environment variable is not set", tokenEnv)
	}
	return c, nil
}

func (t *Tracker) ListIssues(ctx context.Context, opts tracker.ListOptions, yield func(*tracker.RemoteIssue) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	// GitLab calls the open state "opened".
	state := opts.State
	if state == "open" {
		state = "opened"
	}
	return c.FetchIssues(ctx, state, func(issue *Issue) error {
		return yield(remoteIssue(issue))
	})
}

func (t *Tracker) GetIssue(ctx context.Context, id string) (*tracker.RemoteIssue, error) {
	c, err := t.api()
	if err != nil {
		return nil, err
	}
	iid, err := issueIID(id)
	if err != nil {
		return nil, err
	}
	issue, err := c.FetchIssue(ctx, iid)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, nil
	}
	return remoteIssue(issue), nil
}

func (t *Tracker) CreateIssue(ctx context.Context, fields tracker.IssueFields) (*tracker.RemoteIssue, error) {
	c, err := t.requireToken()
	if err != nil {
		return nil, err
	}
	issue, err := c.CreateIssue(ctx, fields.Title, fields.Body, fields.Labels)
	if err != nil {
		return nil, err
	}
	// New issues always open; closed tasks need a follow-up state event.
	// If that fails the next push converges the state.
	if fields.Closed {
		if updated, err := c.UpdateIssue(ctx, issue.IID, map[string]interface{}{"state_event": "close"}); err == nil {
			issue = updated
		}
	}
	return remoteIssue(issue), nil
}

func (t *Tracker) UpdateIssue(ctx context.Context, id string, fields tracker.IssueFields) error {
	c, err := t.requireToken()
	if err != nil {
		return err
	}
	iid, err := issueIID(id)
	if err != nil {
		return err
	}
	stateEvent := "reopen"
	if fields.Closed {
		stateEvent = "close"
	}
	updates := map[string]interface{}{
		"title":       fields.Title,
		"description": fields.Body,
		"state_event": stateEvent,
	}
	if fields.Labels != nil {
		updates["labels"] = strings.Join(fields.Labels, ",")
	}
	_, err = c.UpdateIssue(ctx, iid, updates)
	return err
}

func (t *Tracker) DeleteIssue(ctx context.Context, id string) error {
	c, err := t.requireToken()
	if err != nil {
		return err
	}
	iid, err := issueIID(id)
	if err != nil {
		return err
	}
	return c.DeleteIssue(ctx, iid)
}

// ListComments yields user notes only; system notes record state changes
// and label edits, not discussion.
func (t *Tracker) ListComments(ctx context.Context, issueID string, yield func(*tracker.RemoteComment) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	iid, err := issueIID(issueID)
	if err != nil {
		return err
	}
	return c.FetchNotes(ctx, iid, func(note *Note) error {
		if note.System {
			return nil
		}
		return yield(remoteComment(note))
	})
}

func (t *Tracker) CreateComment(ctx context.Context, issueID, text string) (*tracker.RemoteComment, error) {
	c, err := t.requireToken()
	if err != nil {
		return nil, err
	}
	iid, err := issueIID(issueID)
	if err != nil {
		return nil, err
	}
	note, err := c.CreateNote(ctx, iid, text)
	if err != nil {
		return nil, err
	}
	return remoteComment(note), nil
}

func (t *Tracker) UpdateComment(ctx context.Context, issueID, commentID, text string) error {
	return tracker.ErrUnsupported
}

func (t *Tracker) DeleteComment(ctx context.Context, issueID, commentID string) error {
	return tracker.ErrUnsupported
}

func (t *Tracker) ListLabels(ctx context.Context, yield func(*tracker.RemoteLabel) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	return c.FetchLabels(ctx, func(label *Label) error {
		return yield(remoteLabel(label))
	})
}

func (t *Tracker) CreateLabel(ctx context.Context, label tracker.RemoteLabel) (*tracker.RemoteLabel, error) {
	c, err := t.requireToken()
	if err != nil {
		return nil, err
	}
	created, err := c.CreateLabel(ctx, label.Name, labelColor(label.Color), label.Description)
	if err != nil {
		return nil, err
	}
	return remoteLabel(created), nil
}

func (t *Tracker) UpdateLabel(ctx context.Context, name string, label tracker.RemoteLabel) error {
	c, err := t.requireToken()
	if err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if label.Name != "" && label.Name != name {
		updates["new_name"] = label.Name
	}
	if label.Color != "" {
		updates["color"] = labelColor(label.Color)
	}
	if label.Description != "" {
		updates["description"] = label.Description
	}
	if len(updates) == 0 {
		return nil
	}
	return c.UpdateLabel(ctx, name, updates)
}

// issueIID parses the project-scoped issue number trackers store in task
// links.
func issueIID(id string) (int, error) {
	iid, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("gitlab: invalid issue iid %q", id)
	}
	return iid, nil
}

// labelColor normalizes a color for the GitLab API, which wants a CSS hex
// code with the leading "#". Anything else falls back to the default.
func labelColor(color string) string {
	hex := strings.TrimPrefix(color, "#")
	if len(hex) == 6 {
		if _, err := strconv.ParseUint(hex, 16, 32); err == nil {
			return "#" + strings.ToLower(hex)
		}
	}
	return DefaultLabelColor
}

func remoteIssue(issue *Issue) *tracker.RemoteIssue {
	ri := &tracker.RemoteIssue{
		ID:       strconv.Itoa(issue.IID),
		URL:      issue.WebURL,
		Title:    issue.Title,
		Body:     issue.Description,
		Closed:   issue.State == "closed",
		Labels:   issue.Labels,
		Comments: issue.UserNotesCount,
	}
	if issue.Author != nil {
		ri.Author = issue.Author.Username
	}
	if issue.CreatedAt != nil {
		ri.Created = *issue.CreatedAt
	}
	return ri
}

func remoteComment(note *Note) *tracker.RemoteComment {
	rc := &tracker.RemoteComment{
		ID:   strconv.Itoa(note.ID),
		Body: note.Body,
	}
	if note.Author != nil {
		rc.Author = note.Author.Username
	}
	if note.CreatedAt != nil {
		rc.Created = *note.CreatedAt
	}
	return rc
}

func remoteLabel(label *Label) *tracker.RemoteLabel {
	return &tracker.RemoteLabel{
		ID:          strconv.Itoa(label.ID),
		Name:        label.Name,
		Color:       label.Color,
		Description: label.Description,
	}
}
