package redmine

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

	"github.com/tasklog/tasklog/internal/tracker"
)

// NewClient creates a new Redmine client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		HTTPClient: httpClient,
	}
}

// doRequest executes an authenticated HTTP request and returns the
// response body. A 204 response yields nil, nil.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body interface{}) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("redmine URL not configured")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("redmine API key not configured")
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-Redmine-API-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")
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

	// Updates and deletes return 204 No Content on success.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &tracker.RemoteError{
			Kind:      "redmine",
			Status:    resp.StatusCode,
			Message:   strings.TrimSpace(string(respBody)),
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	return respBody, nil
}

// FetchIssues streams issues matching the state and project filters,
// handling offset pagination. state is passed straight through as the
// status_id filter ("open", "closed" or "*"); an empty project fetches
// across all projects. Returning tracker.ErrStop from yield ends the
// listing without error.
func (c *Client) FetchIssues(ctx context.Context, state, project string, yield func(*Issue) error) error {
	offset := 0
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := url.Values{
			"status_id": {state},
			"sort":      {"id:asc"},
			"offset":    {strconv.Itoa(offset)},
			"limit":     {strconv.Itoa(MaxPageSize)},
		}
		if project != "" {
			params.Set("project_id", project)
		}

		apiURL := fmt.Sprintf("%s/issues.json?%s", c.BaseURL, params.Encode())

		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return fmt.Errorf("fetch issues: %w", err)
		}

		var list IssueList
		if err := json.Unmarshal(body, &list); err != nil {
			return fmt.Errorf("parse issues response: %w", err)
		}

		for i := range list.Issues {
			if err := yield(&list.Issues[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		if len(list.Issues) == 0 || offset+len(list.Issues) >= list.TotalCount {
			return nil
		}
		offset += len(list.Issues)

		pages++
		if pages > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// FetchIssue fetches a single issue, optionally with its journals. A
// missing issue is nil, nil.
func (c *Client) FetchIssue(ctx context.Context, id int, includeJournals bool) (*Issue, error) {
	apiURL := fmt.Sprintf("%s/issues/%d.json", c.BaseURL, id)
	if includeJournals {
		apiURL += "?include=journals"
	}

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		var remoteErr *tracker.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch issue #%d: %w", id, err)
	}

	var wrapper IssueWrapper
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}

	return &wrapper.Issue, nil
}

// CreateIssue creates a new issue. fields should include "project_id" and
// "subject".
func (c *Client) CreateIssue(ctx context.Context, fields map[string]interface{}) (*Issue, error) {
	apiURL := fmt.Sprintf("%s/issues.json", c.BaseURL)

	body, err := c.doRequest(ctx, http.MethodPost, apiURL, map[string]interface{}{"issue": fields})
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	var wrapper IssueWrapper
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}

	return &wrapper.Issue, nil
}

// UpdateIssue updates an existing issue. A "notes" field adds a journal
// entry, which is how comments are created.
func (c *Client) UpdateIssue(ctx context.Context, id int, fields map[string]interface{}) error {
	apiURL := fmt.Sprintf("%s/issues/%d.json", c.BaseURL, id)

	if _, err := c.doRequest(ctx, http.MethodPut, apiURL, map[string]interface{}{"issue": fields}); err != nil {
		return fmt.Errorf("update issue #%d: %w", id, err)
	}

	return nil
}

// DeleteIssue removes an issue.
func (c *Client) DeleteIssue(ctx context.Context, id int) error {
	apiURL := fmt.Sprintf("%s/issues/%d.json", c.BaseURL, id)

	if _, err := c.doRequest(ctx, http.MethodDelete, apiURL, nil); err != nil {
		return fmt.Errorf("delete issue #%d: %w", id, err)
	}

	return nil
}

// UpdateJournal edits the notes of a journal entry.
func (c *Client) UpdateJournal(ctx context.Context, journalID int, notes string) error {
	apiURL := fmt.Sprintf("%s/journals/%d.json", c.BaseURL, journalID)

	payload := map[string]interface{}{
		"journal": map[string]string{"notes": notes},
	}
	if _, err := c.doRequest(ctx, http.MethodPut, apiURL, payload); err != nil {
		return fmt.Errorf("update journal #%d: %w", journalID, err)
	}

	return nil
}

// FetchProjects streams the projects visible to the API key.
func (c *Client) FetchProjects(ctx context.Context, yield func(*Project) error) error {
	offset := 0
	pages := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(MaxPageSize)},
		}

		apiURL := fmt.Sprintf("%s/projects.json?%s", c.BaseURL, params.Encode())

		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return fmt.Errorf("fetch projects: %w", err)
		}

		var list ProjectList
		if err := json.Unmarshal(body, &list); err != nil {
			return fmt.Errorf("parse projects response: %w", err)
		}

		for i := range list.Projects {
			if err := yield(&list.Projects[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		if len(list.Projects) == 0 || offset+len(list.Projects) >= list.TotalCount {
			return nil
		}
		offset += len(list.Projects)

		pages++
		if pages > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// FetchStatuses lists the server's issue statuses.
func (c *Client) FetchStatuses(ctx context.Context) ([]Status, error) {
	apiURL := fmt.Sprintf("%s/issue_statuses.json", c.BaseURL)

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch issue statuses: %w", err)
	}

	var list StatusList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse issue statuses response: %w", err)
	}

	return list.IssueStatuses, nil
}
