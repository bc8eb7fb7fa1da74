// Package redmine provides the Redmine connector and its REST API client.
//
// Redmine has no separate comment objects: issue journals double as
// comments, and only journal entries with non-empty notes count. New
// comments go out as an issue update carrying notes, then the journal id
// is recovered from a re-fetch. Labels do not exist at all.
package redmine

import (
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the page size for issue and project listings.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	MaxPages = 1000
)

// Client provides HTTP access to a Redmine server.
type Client struct {
	BaseURL    string // server base URL (e.g. "https://redmine.example.com")
	APIKey     string
	HTTPClient *http.Client
}

// Issue represents a Redmine issue from the REST API. Journals are only
// present when the fetch asked for them.
type Issue struct {
	ID          int       `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Status      *Status   `json:"status"`
	Author      *Named    `json:"author"`
	Project     *Named    `json:"project"`
	CreatedOn   string    `json:"created_on"`
	ClosedOn    string    `json:"closed_on"`
	Journals    []Journal `json:"journals"`
}

// Status represents an issue status. is_closed only appears on newer
// servers; older ones are covered by the status name heuristic.
type Status struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsClosed bool   `json:"is_closed"`
}

// Named is the id/name pair Redmine uses for users and project references.
type Named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Journal represents one entry of an issue's change history. Entries with
// non-empty notes are the issue's comments.
type Journal struct {
	ID           int    `json:"id"`
	User         *Named `json:"user"`
	Notes        string `json:"notes"`
	CreatedOn    string `json:"created_on"`
	PrivateNotes bool   `json:"private_notes"`
}

// Project represents a Redmine project.
type Project struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// IssueList is the paginated envelope of the issues listing.
type IssueList struct {
	Issues     []Issue `json:"issues"`
	TotalCount int     `json:"total_count"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}

// IssueWrapper is the single-issue envelope.
type IssueWrapper struct {
	Issue Issue `json:"issue"`
}

// ProjectList is the paginated envelope of the projects listing.
type ProjectList struct {
	Projects   []Project `json:"projects"`
	TotalCount int       `json:"total_count"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
}

// StatusList is the envelope of the issue statuses listing.
type StatusList struct {
	IssueStatuses []Status `json:"issue_statuses"`
}
