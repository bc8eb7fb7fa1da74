// Package tracker provides a plugin framework for remote issue tracker
// integrations.
//
// It defines the capability interface every backend (GitHub, GitLab, Jira,
// Redmine) implements, a registry the connectors populate at init time, and
// a shared reconciliation Engine implementing the pull/push flow against
// the local store.
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ErrUnsupported is returned by operations a backend cannot perform, such
// as editing comments on GitLab or labels on Redmine.
var ErrUnsupported = errors.New("not supported by this tracker")

// ErrStop halts a List iteration early. List functions return nil when the
// yield callback returns it.
var ErrStop = errors.New("stop iteration")

// RemoteError is a failure reported by a remote tracker API.
type RemoteError struct {
	Kind      string // tracker kind, e.g. "github"
	Status    int    // HTTP status code, 0 for transport failures
	Message   string // response body or transport error text
	Retryable bool   // rate limits and 5xx responses
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Kind, e.Status, e.Message)
}

// RemoteIssue is an issue from a remote tracker in a generic form. Each
// connector converts its native wire type to and from this one.
type RemoteIssue struct {
	ID      string // tracker-scoped identifier ("42", "PROJ-123")
	URL     string // web URL
	Title   string
	Body    string
	Author  string
	Created time.Time
	Closed  bool
	Labels  []string

	// Status is the named workflow status on trackers that have one
	// (Jira, Redmine). Empty on trackers with only an open/closed state.
	Status string

	// Comments is the comment count as reported by the tracker, or -1
	// when the listing does not include one.
	Comments int
}

// RemoteComment is a comment on a remote issue.
type RemoteComment struct {
	ID      string
	URL     string
	Author  string
	Created time.Time
	Body    string
}

// RemoteLabel is a label definition on a remote tracker.
type RemoteLabel struct {
	ID          string
	Name        string
	Color       string
	Description string
}

// IssueFields is the writable subset of a remote issue for creates and
// updates. A nil Labels slice leaves labels untouched; an empty non-nil
// slice clears them.
type IssueFields struct {
	Title  string
	Body   string
	Closed bool
	Labels []string

	// Status is the local status name, passed through verbatim. Trackers
	// with named workflows move the issue to a matching status when one
	// exists; trackers with only an open/closed state use Closed alone.
	Status string
}

// ListOptions narrows a remote issue listing.
type ListOptions struct {
	// State filters by remote state: "open", "closed", or "all".
	State string
	// Limit bounds the number of issues yielded (0 = no limit).
	Limit int
}

// PullOptions configures a pull run.
type PullOptions struct {
	// IDs selects local tasks to refresh from their linked remote issues.
	// Empty means list the remote and reconcile everything it returns.
	IDs []int
	// Status filters the remote listing through the local status's
	// is_done flag ("" = all states).
	Status string
	// Limit bounds the remote listing (0 = no limit).
	Limit int
	// Comments and Labels toggle reconciliation of those records.
	Comments bool
	Labels   bool
}

// PushOptions configures a push run.
type PushOptions struct {
	// IDs selects local tasks to push. Empty means all tasks.
	IDs []int
	// Comments and Labels toggle pushing of those records.
	Comments bool
	Labels   bool
}

// Action classifies the outcome for one task in a pull or push.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
	ActionFailed  Action = "failed"

	// ActionLinkLost marks the one inconsistency push can leave behind: the
	// remote issue was created but recording the link locally failed, so a
	// later push would create a duplicate.
	ActionLinkLost Action = "link-unrecorded"
)

// ReportItem is the outcome for one task.
type ReportItem struct {
	TaskID   int
	RemoteID string
	Action   Action
	Err      error
}

// Report aggregates per-item outcomes of a pull or push, sorted by task ID.
type Report struct {
	Items []ReportItem
}

func (r *Report) add(item ReportItem) {
	r.Items = append(r.Items, item)
}

// Count returns the number of items with the given action.
func (r *Report) Count(action Action) int {
	n := 0
	for _, item := range r.Items {
		if item.Action == action {
			n++
		}
	}
	return n
}

// Failed reports whether any item carries an error. Partial successes
// (issue created, comments failed) count as failures too.
func (r *Report) Failed() bool {
	for _, item := range r.Items {
		if item.Err != nil {
			return true
		}
	}
	return false
}

func (r *Report) sort() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		if r.Items[i].TaskID != r.Items[j].TaskID {
			return r.Items[i].TaskID < r.Items[j].TaskID
		}
		return remoteIDLess(r.Items[i].RemoteID, r.Items[j].RemoteID)
	})
}

// remoteIDLess orders remote IDs numerically when both parse as numbers,
// lexically otherwise, so reports and pull batches are deterministic across
// trackers with numeric ("42") and keyed ("PROJ-42") identifiers.
func remoteIDLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
