// Package gitlab provides the GitLab connector and its REST API client.
//
// Issues are addressed by their project-scoped IID. Comments ride the notes
// API and are create-only; GitLab system notes (state changes, label edits)
// are filtered out of comment listings.
package gitlab

import (
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultInstanceURL is the gitlab.com instance.
	DefaultInstanceURL = "https://gitlab.com"

	// DefaultAPIEndpoint is the GitLab API v4 endpoint suffix.
	DefaultAPIEndpoint = "/api/v4"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited requests.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// MaxPageSize is the maximum number of items to fetch per page.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	// This prevents infinite loops from malformed X-Next-Page headers.
	MaxPages = 1000
)

// DefaultLabelColor is used when a local label has no usable color; the
// GitLab labels API requires one.
const DefaultLabelColor = "#428bca"

// Client provides methods to interact with the GitLab REST API.
type Client struct {
	Token      string       // personal access token, empty for anonymous reads
	BaseURL    string       // instance URL (e.g. "https://gitlab.com")
	Project    string       // project path ("group/project") or numeric ID
	HTTPClient *http.Client // optional custom HTTP client
}

// Issue represents an issue from the GitLab API.
type Issue struct {
	ID             int        `json:"id"`  // global issue ID
	IID            int        `json:"iid"` // project-scoped issue ID
	ProjectID      int        `json:"project_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	State          string     `json:"state"` // "opened" or "closed"
	CreatedAt      *time.Time `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	Labels         []string   `json:"labels"`
	Author         *User      `json:"author,omitempty"`
	WebURL         string     `json:"web_url"`
	UserNotesCount int        `json:"user_notes_count"`
}

// User represents a GitLab user.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Note represents a note (comment) on a GitLab issue. System notes record
// state transitions and label edits rather than user discussion.
type Note struct {
	ID        int        `json:"id"`
	Body      string     `json:"body"`
	Author    *User      `json:"author,omitempty"`
	CreatedAt *time.Time `json:"created_at"`
	System    bool       `json:"system"`
}

// Label represents a GitLab label definition.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"` // CSS color with leading "#"
	Description string `json:"description,omitempty"`
	TextColor   string `json:"text_color,omitempty"`
}

// Valid GitLab issue states.
var validStates = map[string]bool{
	"opened": true,
	"closed": true,
}

// IsValidState checks if a GitLab state string is valid.
func IsValidState(state string) bool {
	return validStates[state]
}
