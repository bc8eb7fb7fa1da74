// Package jira provides the Jira connector and its REST API v3 client.
//
// Issues are addressed by key ("PROJ-123") and found through JQL search.
// Descriptions and comment bodies travel as ADF (Atlassian Document
// Format) documents; they are flattened to plain text on the way in and
// wrapped back into minimal ADF on the way out. Status changes go through
// the transitions endpoint since Jira has no direct status field write.
package jira

import (
	"encoding/json"
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxResults is the page size for search and comment listings.
	MaxResults = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	MaxPages = 1000
)

// searchFields is the set of fields requested in search/get queries.
const searchFields = "summary,description,status,creator,labels,created"

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL        string // instance base URL (e.g. "https://acme.atlassian.net")
	Username   string // account email for Basic auth; empty selects Bearer
	APIToken   string
	HTTPClient *http.Client
}

// Issue represents a Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue.
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"` // ADF or plain text
	Status      *StatusField    `json:"status"`
	Creator     *UserField      `json:"creator"`
	Labels      []string        `json:"labels"`
	Created     string          `json:"created"`
}

// StatusField represents a Jira issue status.
type StatusField struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory groups statuses into "new", "indeterminate" and "done".
type StatusCategory struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// UserField represents a Jira user.
type UserField struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// SearchResult represents a Jira JQL search response.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Comment represents a comment on a Jira issue.
type Comment struct {
	ID      string          `json:"id"`
	Self    string          `json:"self"`
	Body    json.RawMessage `json:"body"` // ADF
	Author  *UserField      `json:"author"`
	Created string          `json:"created"`
}

// CommentPage represents one page of an issue's comment listing.
type CommentPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Comments   []Comment `json:"comments"`
}

// Transition represents an available workflow transition.
type Transition struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	To   *StatusField `json:"to"`
}

// LabelPage represents one page of the instance-wide label listing.
type LabelPage struct {
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Total      int      `json:"total"`
	IsLast     bool     `json:"isLast"`
	Values     []string `json:"values"`
}
