package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tasklog/tasklog/internal/tracker"
)

// NewClient creates a new GitHub client.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    c.BaseURL,
		HTTPClient: httpClient,
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing or
// GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: c.HTTPClient,
	}
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

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
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

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

		// GitHub rate limits with 429, or 403 with X-RateLimit-Remaining: 0.
		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
			delay := RetryDelay * time.Duration(1<<attempt)
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			lastErr = &tracker.RemoteError{Kind: "github", Status: resp.StatusCode, Message: "rate limited", Retryable: true}
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, nil, &tracker.RemoteError{
				Kind:      "github",
				Status:    resp.StatusCode,
				Message:   strings.TrimSpace(string(respBody)),
				Retryable: resp.StatusCode >= 500,
			}
		}

		return respBody, resp.Header, nil
	}

	return nil, nil, fmt.Errorf("max retries (%d) exceeded: %w", MaxRetries+1, lastErr)
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL and returns it.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// FetchIssues streams issues with optional state filtering ("open",
// "closed", or "all"), one page at a time. Pull requests are filtered out
// (GitHub returns them on the issues endpoint). Returning tracker.ErrStop
// from yield ends the listing without error.
func (c *Client) FetchIssues(ctx context.Context, state string, yield func(*Issue) error) error {
	page := 1

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
		} else {
			params["state"] = "all"
		}

		urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch issues: %w", err)
		}

		var issues []Issue
		if err := json.Unmarshal(respBody, &issues); err != nil {
			return fmt.Errorf("failed to parse issues response: %w", err)
		}

		for i := range issues {
			if issues[i].PullRequest != nil {
				continue
			}
			if err := yield(&issues[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		if _, ok := hasNextPage(headers); !ok {
			return nil
		}
		page++

		if page > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// FetchIssue retrieves a single issue by its number. A missing issue is
// nil, nil.
func (c *Client) FetchIssue(ctx context.Context, number int) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		var remoteErr *tracker.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch issue #%d: %w", number, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse issue response: %w", err)
	}

	return &issue, nil
}

// CreateIssue creates a new issue in GitHub.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (*Issue, error) {
	reqBody := map[string]interface{}{
		"title": title,
		"body":  body,
	}
	if len(labels) > 0 {
		reqBody["labels"] = labels
	}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues", nil)
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

// UpdateIssue updates an existing issue in GitHub.
// GitHub uses PATCH for issue updates.
func (c *Client) UpdateIssue(ctx context.Context, number int, updates map[string]interface{}) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse update response: %w", err)
	}

	return &issue, nil
}

// DeleteIssue removes an issue. The REST API cannot delete issues, so this
// resolves the node ID and runs the GraphQL deleteIssue mutation.
func (c *Client) DeleteIssue(ctx context.Context, number int) error {
	issue, err := c.FetchIssue(ctx, number)
	if err != nil {
		return err
	}
	if issue == nil {
		return &tracker.RemoteError{Kind: "github", Status: http.StatusNotFound, Message: fmt.Sprintf("issue #%d not found", number)}
	}

	query := map[string]interface{}{
		"query": `mutation($issueId: ID!) { deleteIssue(input: {issueId: $issueId}) { clientMutationId } }`,
		"variables": map[string]string{
			"issueId": issue.NodeID,
		},
	}
	respBody, _, err := c.doRequest(ctx, http.MethodPost, c.BaseURL+"/graphql", query)
	if err != nil {
		return fmt.Errorf("failed to delete issue #%d: %w", number, err)
	}

	var result struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to parse delete response: %w", err)
	}
	if len(result.Errors) > 0 {
		return &tracker.RemoteError{Kind: "github", Message: result.Errors[0].Message}
	}

	return nil
}

// FetchComments streams the comments of one issue in creation order.
func (c *Client) FetchComments(ctx context.Context, number int, yield func(*IssueComment) error) error {
	page := 1

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

		urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/comments", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch comments for issue #%d: %w", number, err)
		}

		var comments []IssueComment
		if err := json.Unmarshal(respBody, &comments); err != nil {
			return fmt.Errorf("failed to parse comments response: %w", err)
		}

		for i := range comments {
			if err := yield(&comments[i]); err != nil {
				if errors.Is(err, tracker.ErrStop) {
					return nil
				}
				return err
			}
		}

		if _, ok := hasNextPage(headers); !ok {
			return nil
		}
		page++

		if page > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// CreateComment adds a comment to an issue.
func (c *Client) CreateComment(ctx context.Context, number int, body string) (*IssueComment, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/comments", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, map[string]interface{}{"body": body})
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	var comment IssueComment
	if err := json.Unmarshal(respBody, &comment); err != nil {
		return nil, fmt.Errorf("failed to parse comment response: %w", err)
	}

	return &comment, nil
}

// UpdateComment edits an issue comment.
func (c *Client) UpdateComment(ctx context.Context, commentID int, body string) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/comments/"+strconv.Itoa(commentID), nil)
	_, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, map[string]interface{}{"body": body})
	if err != nil {
		return fmt.Errorf("failed to update comment %d: %w", commentID, err)
	}
	return nil
}

// DeleteComment removes an issue comment.
func (c *Client) DeleteComment(ctx context.Context, commentID int) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/comments/"+strconv.Itoa(commentID), nil)
	_, _, err := c.doRequest(ctx, http.MethodDelete, urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to delete comment %d: %w", commentID, err)
	}
	return nil
}

// FetchLabels streams the repository's label definitions.
func (c *Client) FetchLabels(ctx context.Context, yield func(*Label) error) error {
	page := 1

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

		urlStr := c.buildURL("/repos/"+c.repoPath()+"/labels", params)
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

		if _, ok := hasNextPage(headers); !ok {
			return nil
		}
		page++

		if page > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// CreateLabel defines a new repository label. GitHub requires the color as
// a hex code without the leading "#".
func (c *Client) CreateLabel(ctx context.Context, name, color, description string) (*Label, error) {
	reqBody := map[string]interface{}{
		"name":  name,
		"color": color,
	}
	if description != "" {
		reqBody["description"] = description
	}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/labels", nil)
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

// UpdateLabel renames or restyles a repository label.
func (c *Client) UpdateLabel(ctx context.Context, name string, updates map[string]interface{}) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/labels/"+url.PathEscape(name), nil)
	_, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, updates)
	if err != nil {
		return fmt.Errorf("failed to update label %q: %w", name, err)
	}
	return nil
}
