package gitlab

import (
	"bytes"
	"context"
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

// NewClient creates a new GitLab client for one project on one instance.
func NewClient(token, baseURL, project string) *Client {
	return &Client{
		Token:   token,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Project: project,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		BaseURL:    c.BaseURL,
		Project:    c.Project,
		HTTPClient: httpClient,
	}
}

// projectPath returns the URL-encoded project identifier.
// "group/project" becomes "group%2Fproject"; numeric IDs pass through.
func (c *Client) projectPath() string {
	return url.PathEscape(c.Project)
}

// buildURL constructs a full API URL under the /api/v4 prefix.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + DefaultAPIEndpoint + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// doRequest performs an HTTP request with authentication and retry logic.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		var reqBody io.Reader
		if jsonBody != nil {
			reqBody = bytes.NewReader(jsonBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}

		if c.Token != "" {
			req.Header.Set("PRIVATE-TOKEN", c.Token)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		const maxResponseSize = 50 * 1024 * 1024
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := RetryDelay * time.Duration(1<<attempt)
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			lastErr = &tracker.RemoteError{Kind: "gitlab", Status: resp.StatusCode, Message: "rate limited", Retryable: true}
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, nil, &tracker.RemoteError{
				Kind:      "gitlab",
				Status:    resp.StatusCode,
				Message:   strings.TrimSpace(string(respBody)),
				Retryable: resp.StatusCode >= 500,
			}
		}

		return respBody, resp.Header, nil
	}

	return nil, nil, fmt.Errorf("max retries (%d) exceeded: %w", MaxRetries+1, lastErr)
}

// nextPage reads GitLab's X-Next-Page pagination header. An empty value
// means the listing is exhausted.
func nextPage(headers http.Header) (int, bool) {
	value := headers.Get("X-Next-Page")
	if value == "" {
		return 0, false
	}
	page, err := strconv.Atoi(value)
	if err != nil || page <= 0 {
		return 0, false
	}
	return page, true
}

// FetchIssues streams issues with optional state filtering ("opened",
// "closed", or "all"), one page at a time. Returning tracker.ErrStop from
// yield ends the listing without error.
func (c *Client) FetchIssues(ctx context.Context, state string, yield func(*Issue) error) error {
	page := 1
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		}
		if state != "" && state != "all" {
			params["state"] = state
		}

		urlStr := c.buildURL("/projects/"+c.projectPath()+"/issues", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch issues: %w", err)
		}

		var issues []Issue
		if err := json.Unmarshal(respBody, &issues); err != nil {
			return fmt.Errorf("failed to parse issues response: %w", err)
		}

		for i := range issues {
			if err := yield(&issues[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		next, ok := nextPage(headers)
		if !ok {
			return nil
		}
		page = next

		pages++
		if pages > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// FetchIssue retrieves a single issue by its project-scoped IID. A missing
// issue is nil, nil.
func (c *Client) FetchIssue(ctx context.Context, iid int) (*Issue, error) {
	urlStr := c.buildURL("/projects/"+c.projectPath()+"/issues/"+strconv.Itoa(iid), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		var remoteErr *tracker.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch issue !%d: %w", iid, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse issue response: %w", err)
	}

	return &issue, nil
}

// CreateIssue creates a new issue in GitLab. Labels are passed as the
// comma-separated string the API expects.
func (c *Client) CreateIssue(ctx context.Context, title, description string, labels []string) (*Issue, error) {
	reqBody := map[string]interface{}{
		"title":       title,
		"description": description,
	}
	if len(labels) > 0 {
		reqBody["labels"] = strings.Join(labels, ",")
	}

	urlStr := c.buildURL("/projects/"+c.projectPath()+"/issues", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse create response: %w", err)
	}

	return &issue, nil
}

// UpdateIssue updates an existing issue. GitLab uses PUT for issue updates;
// state changes go through the "state_event" field ("close" or "reopen").
func (c *Client) UpdateIssue(ctx context.Context, iid int, updates map[string]interface{}) (*Issue, error) {
	urlStr := c.buildURL("/projects/"+c.projectPath()+"/issues/"+strconv.Itoa(iid), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPut, urlStr, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse update response: %w", err)
	}

	return &issue, nil
}

// DeleteIssue removes an issue from the project.
func (c *Client) DeleteIssue(ctx context.Context, iid int) error {
	urlStr := c.buildURL("/projects/"+c.projectPath()+"/issues/"+strconv.Itoa(iid), nil)
	_, _, err := c.doRequest(ctx, http.MethodDelete, urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to delete issue !%d: %w", iid, err)
	}
	return nil
}

// FetchNotes streams the notes of one issue in creation order, system notes
// included; callers filter those out.
func (c *Client) FetchNotes(ctx context.Context, iid int, yield func(*Note) error) error {
	page := 1
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
			"order_by": "created_at",
			"sort":     "asc",
		}

		urlStr := c.buildURL("/projects/"+c.projectPath()+"/issues/"+strconv.Itoa(iid)+"/notes", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch notes for issue !%d: %w", iid, err)
		}

		var notes []Note
		if err := json.Unmarshal(respBody, &notes); err != nil {
			return fmt.Errorf("failed to parse notes response: %w", err)
		}

		for i := range notes {
			if err := yield(&notes[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		next, ok := nextPage(headers)
		if !ok {
			return nil
		}
		page = next

		pages++
		if pages > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// CreateNote adds a note to an issue.
func (c *Client) CreateNote(ctx context.Context, iid int, body string) (*Note, error) {
	urlStr := c.buildURL("/projects/"+c.projectPath()+"/issues/"+strconv.Itoa(iid)+"/notes", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, map[string]interface{}{"body": body})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	var note Note
	if err := json.Unmarshal(respBody, &note); err != nil {
		return nil, fmt.Errorf("failed to parse note response: %w", err)
	}

	return &note, nil
}

// FetchLabels streams the project's label definitions.
func (c *Client) FetchLabels(ctx context.Context, yield func(*Label) error) error {
	page := 1
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		}

		urlStr := c.buildURL("/projects/"+c.projectPath()+"/labels", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch labels: %w", err)
		}

		var labels []Label
		if err := json.Unmarshal(respBody, &labels); err != nil {
			return fmt.Errorf("failed to parse labels response: %w", err)
		}

		for i := range labels {
			if err := yield(&labels[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		next, ok := nextPage(headers)
		if !ok {
			return nil
		}
		page = next

		pages++
		if pages > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// CreateLabel defines a new project label. The API requires a color.
func (c *Client) CreateLabel(ctx context.Context, name, color, description string) (*Label, error) {
	reqBody := map[string]interface{}{
		"name":  name,
		"color": color,
	}
	if description != "" {
		reqBody["description"] = description
	}

	urlStr := c.buildURL("/projects/"+c.projectPath()+"/labels", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create label: %w", err)
	}

	var label Label
	if err := json.Unmarshal(respBody, &label); err != nil {
		return nil, fmt.Errorf("failed to parse label response: %w", err)
	}

	return &label, nil
}

// UpdateLabel renames or restyles a project label.
func (c *Client) UpdateLabel(ctx context.Context, name string, updates map[string]interface{}) error {
	urlStr := c.buildURL("/projects/"+c.projectPath()+"/labels/"+url.PathEscape(name), nil)
	_, _, err := c.doRequest(ctx, http.MethodPut, urlStr, updates)
	if err != nil {
		return fmt.Errorf("failed to update label %q: %w", name, err)
	}
	return nil
}
