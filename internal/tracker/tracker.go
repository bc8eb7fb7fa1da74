package tracker

import (
	"context"
	"os"
)

// ConfigReader gives connectors access to repository configuration.
// Satisfied by storage.Store.
type ConfigReader interface {
	GetConfig(ctx context.Context, key string) (string, error)
}

// Setup carries what a connector needs at construction time. Credentials
// come from the environment, never from repository config; only URLs and
// project identifiers live in config.
type Setup struct {
	Config ConfigReader
	// Getenv resolves credential variables. Nil means os.Getenv.
	Getenv func(string) string
}

// Env resolves an environment variable through the configured lookup.
func (s Setup) Env(name string) string {
	if s.Getenv != nil {
		return s.Getenv(name)
	}
	return os.Getenv(name)
}

// Tracker is the capability interface every remote backend implements.
// Instances are built by a registered Factory, matched against the
// repository's git remotes, and connected before any remote operation.
type Tracker interface {
	// Kind returns the lowercase identifier ("github", "jira").
	Kind() string

	// DisplayName returns the human-readable name ("GitHub", "Jira").
	DisplayName() string

	// ConfigKeys lists the git config keys this backend reads, so the
	// config command can accept them.
	ConfigKeys() []string

	// SupportsRemote reports whether this backend can serve the given git
	// remote URL, and the owner/repo it would address there. Backends that
	// are not git hosts never match a URL; they are selected through
	// Configured instead.
	SupportsRemote(url string) (owner, repo string, ok bool)

	// Configured reports whether repository config carries enough for this
	// backend to operate without a matching git remote (Jira and Redmine
	// with their base URL set).
	Configured(ctx context.Context) bool

	// Connect binds the backend to one matched remote URL (empty for
	// non-git-host backends) and resolves credentials. Must be called
	// before any remote operation.
	Connect(ctx context.Context, remoteURL string) error

	// ListIssues streams issues page by page through yield. Returning
	// ErrStop from yield ends the listing without error.
	ListIssues(ctx context.Context, opts ListOptions, yield func(*RemoteIssue) error) error

	// GetIssue fetches one issue. A missing issue is nil, nil.
	GetIssue(ctx context.Context, id string) (*RemoteIssue, error)

	CreateIssue(ctx context.Context, fields IssueFields) (*RemoteIssue, error)
	UpdateIssue(ctx context.Context, id string, fields IssueFields) error
	DeleteIssue(ctx context.Context, id string) error

	// ListComments streams the comments of one issue through yield.
	ListComments(ctx context.Context, issueID string, yield func(*RemoteComment) error) error

	CreateComment(ctx context.Context, issueID, text string) (*RemoteComment, error)
	UpdateComment(ctx context.Context, issueID, commentID, text string) error
	DeleteComment(ctx context.Context, issueID, commentID string) error

	// ListLabels streams the tracker's label definitions through yield.
	ListLabels(ctx context.Context, yield func(*RemoteLabel) error) error

	CreateLabel(ctx context.Context, label RemoteLabel) (*RemoteLabel, error)
	UpdateLabel(ctx context.Context, name string, label RemoteLabel) error
}
