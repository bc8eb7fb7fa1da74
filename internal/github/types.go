// Package github provides the GitHub connector and its REST API client.
//
// Issues, comments and labels map straight onto the REST v3 endpoints.
// Issue deletion is the one exception: the REST API cannot delete issues,
// so it goes through the GraphQL deleteIssue mutation.
package github

import (
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited requests.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// MaxPageSize is the maximum number of items to fetch per page.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	// This prevents infinite loops from malformed Link headers.
	MaxPages = 1000
)

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string       // personal access token, empty for anonymous reads
	Owner      string       // repository owner (user or org)
	Repo       string       // repository name
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // optional custom HTTP client
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	ID          int        `json:"id"`      // global unique ID
	NodeID      string     `json:"node_id"` // GraphQL node ID, needed for deletion
	Number      int        `json:"number"`  // repository-scoped issue number
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"` // "open" or "closed"
	CreatedAt   *time.Time `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Comments    int        `json:"comments"`
	Labels      []Label    `json:"labels"`
	User        *User      `json:"user,omitempty"` // author
	HTMLURL     string     `json:"html_url"`
	PullRequest *PullRef   `json:"pull_request,omitempty"` // non-nil if this is a PR
}

// PullRef indicates an issue is actually a pull request.
// The GitHub Issues API returns PRs alongside issues; this field
// distinguishes them.
type PullRef struct {
	URL string `json:"url,omitempty"`
}

// User represents a GitHub user.
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// Label represents a GitHub label.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"` // hex without the leading "#"
	Description string `json:"description,omitempty"`
}

// IssueComment represents a comment from the issue comments API.
type IssueComment struct {
	ID        int        `json:"id"`
	Body      string     `json:"body"`
	User      *User      `json:"user,omitempty"`
	CreatedAt *time.Time `json:"created_at"`
	HTMLURL   string     `json:"html_url"`
}

// LabelNames extracts label name strings from a slice of Label structs.
func LabelNames(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}
