package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tasklog/tasklog/internal/tracker"
)

// NewClient creates a new Jira client.
func NewClient(instanceURL, username, apiToken string) *Client {
	return &Client{
		URL:      strings.TrimSuffix(instanceURL, "/"),
		Username: username,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		URL:        c.URL,
		Username:   c.Username,
		APIToken:   c.APIToken,
		HTTPClient: httpClient,
	}
}

// doRequest executes an authenticated HTTP request and returns the
// response body. A 204 response yields nil, nil.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}
	if c.APIToken == "" {
		return nil, fmt.Errorf("jira API token not configured")
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tasklog-jira/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	const maxResponseSize = 50 * 1024 * 1024
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// PUT and DELETE return 204 No Content on success.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &tracker.RemoteError{
			Kind:      "jira",
			Status:    resp.StatusCode,
			Message:   strings.TrimSpace(string(respBody)),
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	return respBody, nil
}

// setAuth sets the appropriate authentication header on the request.
// Jira Cloud wants Basic auth with the account email; self-hosted
// instances without a username take a bearer token.
func (c *Client) setAuth(req *http.Request) {
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

// SearchIssues streams all issues matching a JQL query, handling
// pagination. Returning tracker.ErrStop from yield ends the search
// without error.
func (c *Client) SearchIssues(ctx context.Context, jql string, yield func(*Issue) error) error {
	startAt := 0
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := url.Values{
			"jql":        {jql},
			"fields":     {searchFields},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(MaxResults)},
		}

		apiURL := fmt.Sprintf("%s/rest/api/3/search?%s", c.URL, params.Encode())

		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return fmt.Errorf("search issues: %w", err)
		}

		var result SearchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("parse search response: %w", err)
		}

		for i := range result.Issues {
			if err := yield(&result.Issues[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		if len(result.Issues) == 0 || startAt+len(result.Issues) >= result.Total {
			return nil
		}
		startAt += len(result.Issues)

		pages++
		if pages > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// GetIssue fetches a single Jira issue by key (e.g. "PROJ-123"). A missing
// issue is nil, nil.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=%s", c.URL, url.PathEscape(key), searchFields)

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		var remoteErr *tracker.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}

	return &issue, nil
}

// CreateIssue creates a new issue in Jira. fields should include
// "project", "summary" and "issuetype". The create response only carries
// id, key and self, so the full issue is fetched afterwards.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]interface{}) (*Issue, error) {
	payload := map[string]interface{}{"fields": fields}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue", c.URL)

	body, err := c.doRequest(ctx, http.MethodPost, apiURL, data)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	var created struct {
		ID   string `json:"id"`
		Key  string `json:"key"`
		Self string `json:"self"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}

	return c.GetIssue(ctx, created.Key)
}

// UpdateIssue updates an existing Jira issue by key.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]interface{}) error {
	payload := map[string]interface{}{"fields": fields}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal update request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s", c.URL, url.PathEscape(key))

	if _, err := c.doRequest(ctx, http.MethodPut, apiURL, data); err != nil {
		return fmt.Errorf("update issue %s: %w", key, err)
	}

	return nil
}

// DeleteIssue removes an issue and its subtasks.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?deleteSubtasks=true", c.URL, url.PathEscape(key))

	if _, err := c.doRequest(ctx, http.MethodDelete, apiURL, nil); err != nil {
		return fmt.Errorf("delete issue %s: %w", key, err)
	}

	return nil
}

// FetchComments streams the comments of one issue in creation order.
func (c *Client) FetchComments(ctx context.Context, key string, yield func(*Comment) error) error {
	startAt := 0
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(MaxResults)},
		}

		apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment?%s", c.URL, url.PathEscape(key), params.Encode())

		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return fmt.Errorf("fetch comments for %s: %w", key, err)
		}

		var page CommentPage
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("parse comments response: %w", err)
		}

		for i := range page.Comments {
			if err := yield(&page.Comments[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		if len(page.Comments) == 0 || startAt+len(page.Comments) >= page.Total {
			return nil
		}
		startAt += len(page.Comments)

		pages++
		if pages > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// CreateComment adds a comment to an issue. body must be an ADF document.
func (c *Client) CreateComment(ctx context.Context, key string, body json.RawMessage) (*Comment, error) {
	data, err := json.Marshal(map[string]interface{}{"body": body})
	if err != nil {
		return nil, fmt.Errorf("marshal comment request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.URL, url.PathEscape(key))

	respBody, err := c.doRequest(ctx, http.MethodPost, apiURL, data)
	if err != nil {
		return nil, fmt.Errorf("create comment on %s: %w", key, err)
	}

	var comment Comment
	if err := json.Unmarshal(respBody, &comment); err != nil {
		return nil, fmt.Errorf("parse comment response: %w", err)
	}

	return &comment, nil
}

// UpdateComment edits a comment on an issue.
func (c *Client) UpdateComment(ctx context.Context, key, commentID string, body json.RawMessage) error {
	data, err := json.Marshal(map[string]interface{}{"body": body})
	if err != nil {
		return fmt.Errorf("marshal comment request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment/%s", c.URL, url.PathEscape(key), url.PathEscape(commentID))

	if _, err := c.doRequest(ctx, http.MethodPut, apiURL, data); err != nil {
		return fmt.Errorf("update comment %s on %s: %w", commentID, key, err)
	}

	return nil
}

// DeleteComment removes a comment from an issue.
func (c *Client) DeleteComment(ctx context.Context, key, commentID string) error {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment/%s", c.URL, url.PathEscape(key), url.PathEscape(commentID))

	if _, err := c.doRequest(ctx, http.MethodDelete, apiURL, nil); err != nil {
		return fmt.Errorf("delete comment %s on %s: %w", commentID, key, err)
	}

	return nil
}

// Transitions lists the workflow transitions available on an issue.
func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", c.URL, url.PathEscape(key))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("list transitions for %s: %w", key, err)
	}

	var result struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse transitions response: %w", err)
	}

	return result.Transitions, nil
}

// DoTransition performs a workflow transition on an issue.
func (c *Client) DoTransition(ctx context.Context, key, transitionID string) error {
	data, err := json.Marshal(map[string]interface{}{
		"transition": map[string]string{"id": transitionID},
	})
	if err != nil {
		return fmt.Errorf("marshal transition request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", c.URL, url.PathEscape(key))

	if _, err := c.doRequest(ctx, http.MethodPost, apiURL, data); err != nil {
		return fmt.Errorf("transition issue %s: %w", key, err)
	}

	return nil
}

// FetchLabels streams the instance's label names.
func (c *Client) FetchLabels(ctx context.Context, yield func(string) error) error {
	startAt := 0
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(MaxResults)},
		}

		apiURL := fmt.Sprintf("%s/rest/api/3/label?%s", c.URL, params.Encode())

		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return fmt.Errorf("fetch labels: %w", err)
		}

		var page LabelPage
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("parse labels response: %w", err)
		}

		for _, name := range page.Values {
			if err := yield(name); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		if page.IsLast || len(page.Values) == 0 {
			return nil
		}
		startAt += len(page.Values)

		pages++
		if pages > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// ParseTimestamp parses the timestamp formats Jira emits.
func ParseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	formats := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %s", ts)
}

// ADFToText extracts plain text from an ADF (Atlassian Document Format)
// document. Paragraphs join with newlines, inline text nodes with spaces.
// Non-ADF payloads (plain JSON strings from older instances) pass through.
func ADFToText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var doc struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"content"`
	}

	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}

	var parts []string
	for _, block := range doc.Content {
		var line []string
		for _, inline := range block.Content {
			if inline.Text != "" {
				line = append(line, inline.Text)
			}
		}
		if len(line) > 0 {
			parts = append(parts, strings.Join(line, " "))
		}
	}

	return strings.Join(parts, "\n")
}

// TextToADF wraps plain text into a minimal ADF document, one paragraph
// per line.
func TextToADF(text string) json.RawMessage {
	paragraphs := strings.Split(text, "\n")
	content := make([]interface{}, 0, len(paragraphs))
	for _, para := range paragraphs {
		if para == "" {
			content = append(content, map[string]interface{}{
				"type":    "paragraph",
				"content": []interface{}{},
			})
			continue
		}
		content = append(content, map[string]interface{}{
			"type": "paragraph",
			"content": []interface{}{
				map[string]interface{}{
					"type": "text",
					"text": para,
				},
			},
		})
	}

	doc := map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": content,
	}

	data, _ := json.Marshal(doc)
	return data
}
