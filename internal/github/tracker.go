package github

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tasklog/tasklog/internal/git"
	"github.com/tasklog/tasklog/internal/tracker"
)

// KeyBaseURL overrides the API endpoint, for GitHub Enterprise or tests.
const KeyBaseURL = "task.github.url"

const (
	tokenEnv         = "GITHUB_TOKEN"
	fallbackTokenEnv = "GITHUB_API_TOKEN"
)

func init() {
	tracker.Register("github", New)
}

// Tracker reconciles tasks against GitHub issues.
type Tracker struct {
	setup  tracker.Setup
	client *Client
}

var _ tracker.Tracker = (*Tracker)(nil)

// New builds the GitHub connector.
func New(setup tracker.Setup) tracker.Tracker {
	return &Tracker{setup: setup}
}

func (t *Tracker) Kind() string        { return "github" }
func (t *Tracker) DisplayName() string { return "GitHub" }

func (t *Tracker) ConfigKeys() []string {
	return []string{KeyBaseURL}
}

// SupportsRemote matches remotes hosted on github.com.
func (t *Tracker) SupportsRemote(url string) (string, string, bool) {
	parts, err := git.ParseRemoteURL(url)
	if err != nil || parts.Host != "github.com" {
		return "", "", false
	}
	return parts.Owner, parts.Repo, true
}

// Configured always reports false: GitHub is selected by matching a git
// remote, never by configuration alone.
func (t *Tracker) Configured(ctx context.Context) bool { return false }

// Connect binds the connector to the repository behind the remote URL.
// Reading works without credentials; writes need GITHUB_TOKEN (or
// GITHUB_API_TOKEN) in the environment.
func (t *Tracker) Connect(ctx context.Context, remoteURL string) error {
	owner, repo, ok := t.SupportsRemote(remoteURL)
	if !ok {
		return fmt.Errorf("github: not a github.com remote: %s", remoteURL)
	}

	token := t.setup.Env(tokenEnv)
	if token == "" {
		token = t.setup.Env(fallbackTokenEnv)
	}

	client := NewClient(token, owner, repo)
	if base, err := t.setup.Config.GetConfig(ctx, KeyBaseURL); err == nil && base != "" {
		client = client.WithBaseURL(base)
	}
	t.client = client
	return nil
}

func (t *Tracker) api() (*Client, error) {
	if t.client == nil {
		return nil, errors.New("github: not connected")
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
		return nil, fmt.Errorf("github: %s environment variable is not set", tokenEnv)
	}
	return c, nil
}

func (t *Tracker) ListIssues(ctx context.Context, opts tracker.ListOptions, yield func(*tracker.RemoteIssue) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	return c.FetchIssues(ctx, opts.State, func(issue *Issue) error {
		return yield(remoteIssue(issue))
	})
}

func (t *Tracker) GetIssue(ctx context.Context, id string) (*tracker.RemoteIssue, error) {
	c, err := t.api()
	if err != nil {
		return nil, err
	}
	number, err := issueNumber(id)
	if err != nil {
		return nil, err
	}
	issue, err := c.FetchIssue(ctx, number)
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
	// The create endpoint cannot set the state. Close in a follow-up
	// request; if that fails the next push converges the state.
	if fields.Closed {
		if updated, err := c.UpdateIssue(ctx, issue.Number, map[string]interface{}{"state": "closed"}); err == nil {
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
	number, err := issueNumber(id)
	if err != nil {
		return err
	}
	state := "open"
	if fields.Closed {
		state = "closed"
	}
	updates := map[string]interface{}{
		"title": fields.Title,
		"body":  fields.Body,
		"state": state,
	}
	if fields.Labels != nil {
		updates["labels"] = fields.Labels
	}
	_, err = c.UpdateIssue(ctx, number, updates)
	return err
}

func (t *Tracker) DeleteIssue(ctx context.Context, id string) error {
	c, err := t.requireToken()
	if err != nil {
		return err
	}
	number, err := issueNumber(id)
	if err != nil {
		return err
	}
	return c.DeleteIssue(ctx, number)
}

func (t *Tracker) ListComments(ctx context.Context, issueID string, yield func(*tracker.RemoteComment) error) error {
	c, err := t.api()
	if err != nil {
		return err
	}
	number, err := issueNumber(issueID)
	if err != nil {
		return err
	}
	return c.FetchComments(ctx, number, func(comment *IssueComment) error {
		return yield(remoteComment(comment))
	})
}

func (t *Tracker) CreateComment(ctx context.Context, issueID, text string) (*tracker.RemoteComment, error) {
	c, err := t.requireToken()
	if err != nil {
		return nil, err
	}
	number, err := issueNumber(issueID)
	if err != nil {
		return nil, err
	}
	comment, err := c.CreateComment(ctx, number, text)
	if err != nil {
		return nil, err
	}
	return remoteComment(comment), nil
}

func (t *Tracker) UpdateComment(ctx context.Context, issueID, commentID, text string) error {
	c, err := t.requireToken()
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(commentID)
	if err != nil {
		return fmt.Errorf("github: invalid comment id %q", commentID)
	}
	return c.UpdateComment(ctx, id, text)
}

func (t *Tracker) DeleteComment(ctx context.Context, issueID, commentID string) error {
	c, err := t.requireToken()
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(commentID)
	if err != nil {
		return fmt.Errorf("github: invalid comment id %q", commentID)
	}
	return c.DeleteComment(ctx, id)
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

// issueNumber parses the repository-scoped issue number trackers store in
// task links.
func issueNumber(id string) (int, error) {
	number, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("github: invalid issue number %q", id)
	}
	return number, nil
}

// labelColor normalizes a color for the GitHub API, which wants six hex
// digits without the leading "#". Anything else falls back to gray.
func labelColor(color string) string {
	hex := strings.TrimPrefix(color, "#")
	if len(hex) == 6 {
		if _, err := strconv.ParseUint(hex, 16, 32); err == nil {
			return strings.ToLower(hex)
		}
	}
	return "ededed"
}

func remoteIssue(issue *Issue) *tracker.RemoteIssue {
	ri := &tracker.RemoteIssue{
		ID:       strconv.Itoa(issue.Number),
		URL:      issue.HTMLURL,
		Title:    issue.Title,
		Body:     issue.Body,
		Closed:   issue.State == "closed",
		Labels:   LabelNames(issue.Labels),
		Comments: issue.Comments,
	}
	if issue.User != nil {
		ri.Author = issue.User.Login
	}
	if issue.CreatedAt != nil {
		ri.Created = *issue.CreatedAt
	}
	return ri
}

func remoteComment(comment *IssueComment) *tracker.RemoteComment {
	rc := &tracker.RemoteComment{
		ID:   strconv.Itoa(comment.ID),
		URL:  comment.HTMLURL,
		Body: comment.Body,
	}
	if comment.User != nil {
		rc.Author = comment.User.Login
	}
	if comment.CreatedAt != nil {
		rc.Created = *comment.CreatedAt
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
