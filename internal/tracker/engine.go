package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/types"
)

const defaultHydrators = 4

// Engine reconciles the local store with one remote tracker. Pull treats
// the remote as the owner of the reserved properties and the label set;
// everything else is local-only and never overwritten. Push mirrors local
// state outward, isolating failures per task.
type Engine struct {
	Store   storage.Store
	Tracker Tracker
	Config  *config.Config

	// User stamps pulled records that carry no author of their own.
	User string

	// Callbacks for UI feedback (optional).
	OnMessage func(msg string)
	OnWarning func(msg string)

	// Hydrators bounds concurrent comment fetches during pull; 0 means a
	// small default.
	Hydrators int
}

// Pull reconciles remote issues into the local store. All local changes
// land in a single store transaction, so a pull is one commit and
// all-or-nothing locally; the remote reads stay independently retryable.
func (e *Engine) Pull(ctx context.Context, opts PullOptions) (*Report, error) {
	kind := e.Tracker.Kind()
	report := &Report{}

	tasks, err := e.Store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	byRemote := make(map[string]*types.Task)
	for _, t := range tasks {
		if link, ok := t.LinkFor(kind); ok {
			byRemote[link.ID] = t
		}
	}

	issues, err := e.collectIssues(ctx, opts, tasks, report)
	if err != nil {
		return nil, err
	}
	sort.Slice(issues, func(i, j int) bool { return remoteIDLess(issues[i].ID, issues[j].ID) })

	comments := make([][]*RemoteComment, len(issues))
	hydrationErrs := make([]error, len(issues))
	if opts.Comments {
		e.hydrateComments(ctx, issues, comments, hydrationErrs)
	}

	schema := e.Config.Statuses(ctx)
	var muts []storage.Mutation
	var created []*storage.PutTask
	createdRemote := make(map[*storage.PutTask]string)
	changed := 0
	for i, ri := range issues {
		local := byRemote[ri.ID]
		if hydrationErrs[i] != nil {
			item := ReportItem{RemoteID: ri.ID, Action: ActionFailed, Err: hydrationErrs[i]}
			if local != nil {
				item.TaskID = local.ID
			}
			report.add(item)
			continue
		}
		if local != nil {
			ms := e.updateMutations(ctx, schema, local, ri, comments[i], opts)
			if len(ms) == 0 {
				report.add(ReportItem{TaskID: local.ID, RemoteID: ri.ID, Action: ActionSkipped})
				continue
			}
			muts = append(muts, ms...)
			changed++
			report.add(ReportItem{TaskID: local.ID, RemoteID: ri.ID, Action: ActionUpdated})
			continue
		}
		put := &storage.PutTask{Task: e.importTask(ctx, ri, comments[i], opts), AssignID: true}
		muts = append(muts, put)
		changed++
		created = append(created, put)
		createdRemote[put] = ri.ID
	}

	if len(muts) > 0 {
		noun := "tasks"
		if changed == 1 {
			noun = "task"
		}
		message := fmt.Sprintf("Pull %d %s from %s", changed, noun, e.Tracker.DisplayName())
		if err := e.Store.Apply(ctx, &storage.Batch{Message: message, Muts: muts}); err != nil {
			return nil, fmt.Errorf("recording pulled changes: %w", err)
		}
	}
	for _, put := range created {
		report.add(ReportItem{TaskID: put.Task.ID, RemoteID: createdRemote[put], Action: ActionCreated})
	}
	report.sort()
	return report, nil
}

// collectIssues gathers the remote issues a pull will reconcile. Explicit
// IDs resolve through each task's link; otherwise the remote listing
// drives the run. Per-task failures land in the report, a failed listing
// aborts the pull.
func (e *Engine) collectIssues(ctx context.Context, opts PullOptions, tasks []*types.Task, report *Report) ([]*RemoteIssue, error) {
	kind := e.Tracker.Kind()
	if len(opts.IDs) > 0 {
		byID := make(map[int]*types.Task, len(tasks))
		for _, t := range tasks {
			byID[t.ID] = t
		}
		var issues []*RemoteIssue
		for _, id := range opts.IDs {
			t, ok := byID[id]
			if !ok {
				report.add(ReportItem{TaskID: id, Action: ActionFailed, Err: fmt.Errorf("task %d: %w", id, storage.ErrNotFound)})
				continue
			}
			link, ok := t.LinkFor(kind)
			if !ok {
				e.warn("task %d is not linked to %s", id, e.Tracker.DisplayName())
				report.add(ReportItem{TaskID: id, Action: ActionSkipped})
				continue
			}
			ri, err := e.Tracker.GetIssue(ctx, link.ID)
			if err != nil {
				report.add(ReportItem{TaskID: id, RemoteID: link.ID, Action: ActionFailed, Err: err})
				continue
			}
			if ri == nil {
				e.warn("issue %s is gone from %s", link.ID, e.Tracker.DisplayName())
				report.add(ReportItem{TaskID: id, RemoteID: link.ID, Action: ActionSkipped})
				continue
			}
			issues = append(issues, ri)
		}
		return issues, nil
	}

	lo := ListOptions{State: e.remoteState(ctx, opts.Status), Limit: opts.Limit}
	var issues []*RemoteIssue
	err := e.Tracker.ListIssues(ctx, lo, func(ri *RemoteIssue) error {
		issues = append(issues, ri)
		if opts.Limit > 0 && len(issues) >= opts.Limit {
			return ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing issues on %s: %w", e.Tracker.DisplayName(), err)
	}
	e.msg("Fetched %d issues from %s", len(issues), e.Tracker.DisplayName())
	return issues, nil
}

// remoteState derives the remote listing filter from a local status: done
// statuses map to closed issues, the rest to open ones.
func (e *Engine) remoteState(ctx context.Context, status string) string {
	if status == "" {
		return "all"
	}
	schema := e.Config.Statuses(ctx)
	if schema.IsDone(schema.FullName(status)) {
		return "closed"
	}
	return "open"
}

// hydrateComments fetches comments for the given issues through a bounded
// worker pool. Failures are recorded per issue so one bad fetch does not
// sink the rest of the pull.
func (e *Engine) hydrateComments(ctx context.Context, issues []*RemoteIssue, out [][]*RemoteComment, errs []error) {
	limit := e.Hydrators
	if limit <= 0 {
		limit = defaultHydrators
	}
	var unsupported sync.Once
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i := range issues {
		if issues[i].Comments == 0 {
			continue
		}
		g.Go(func() error {
			err := e.Tracker.ListComments(ctx, issues[i].ID, func(rc *RemoteComment) error {
				out[i] = append(out[i], rc)
				return nil
			})
			if errors.Is(err, ErrUnsupported) {
				unsupported.Do(func() {
					e.warn("%s does not support listing comments; skipping them", e.Tracker.DisplayName())
				})
				err = nil
			}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()
}

// updateMutations builds the field-scoped overwrite for one linked task.
// Only the reserved properties and (when enabled) the label set and linked
// comments are remote-owned; custom properties are never touched. The
// status is only forced when the local status disagrees with the remote
// open/closed state, so a local IN_PROGRESS survives pulls of open issues.
func (e *Engine) updateMutations(ctx context.Context, schema *config.StatusSchema, local *types.Task, ri *RemoteIssue, comments []*RemoteComment, opts PullOptions) []storage.Mutation {
	var ms []storage.Mutation
	if local.Name() != ri.Title {
		ms = append(ms, &storage.SetProperty{ID: local.ID, Key: types.PropName, Value: ri.Title})
	}
	if local.Description() != ri.Body {
		ms = append(ms, &storage.SetProperty{ID: local.ID, Key: types.PropDescription, Value: ri.Body})
	}
	if ri.Author != "" && local.Author() != ri.Author {
		ms = append(ms, &storage.SetProperty{ID: local.ID, Key: types.PropAuthor, Value: ri.Author})
	}
	if schema.IsDone(local.Status()) != ri.Closed {
		ms = append(ms, &storage.SetProperty{ID: local.ID, Key: types.PropStatus, Value: e.statusFor(ctx, ri.Closed)})
	}
	if opts.Labels && !sameLabelNames(labelNames(local), ri.Labels) {
		labels := make([]types.Label, len(ri.Labels))
		for i, name := range ri.Labels {
			labels[i] = types.Label{Name: name}
		}
		ms = append(ms, &storage.ReplaceLabels{TaskID: local.ID, Labels: labels})
	}
	if opts.Comments {
		ms = append(ms, e.commentMutations(local, comments)...)
	}
	return ms
}

// commentMutations matches remote comments to local ones by link. Linked
// comments are overwritten, unlinked remote comments appended. Local
// comments absent remotely are kept; pull never deletes a comment.
func (e *Engine) commentMutations(local *types.Task, remote []*RemoteComment) []storage.Mutation {
	kind := e.Tracker.Kind()
	linked := make(map[string]*types.Comment)
	for _, c := range local.Comments {
		if link, ok := c.LinkFor(kind); ok {
			linked[link.ID] = c
		}
	}
	var ms []storage.Mutation
	for _, rc := range remote {
		if c, ok := linked[rc.ID]; ok {
			if c.Text == rc.Body && (rc.Author == "" || c.Author() == rc.Author) {
				continue
			}
			ms = append(ms, &storage.UpdateComment{TaskID: local.ID, CommentID: c.ID, Text: rc.Body, Author: rc.Author})
			continue
		}
		ms = append(ms, &storage.AddComment{
			TaskID: local.ID,
			Author: rc.Author,
			At:     rc.Created,
			Text:   rc.Body,
			Links:  types.Links{kind: {ID: rc.ID, URL: rc.URL}},
		})
	}
	return ms
}

// importTask builds a local task for a remote issue seen for the first
// time.
func (e *Engine) importTask(ctx context.Context, ri *RemoteIssue, comments []*RemoteComment, opts PullOptions) *types.Task {
	kind := e.Tracker.Kind()
	t := types.NewTask(ri.Title, ri.Body, e.statusFor(ctx, ri.Closed))
	if !ri.Created.IsZero() {
		t.SetCreated(ri.Created)
	}
	author := ri.Author
	if author == "" {
		author = e.User
	}
	if author != "" {
		t.Properties.Set(types.PropAuthor, author)
	}
	if opts.Labels {
		for _, name := range ri.Labels {
			t.AddLabel(&types.Label{Name: name})
		}
	}
	if opts.Comments {
		for _, rc := range comments {
			c := t.AddComment(rc.Author, rc.Created, rc.Body)
			c.SetLink(kind, types.Link{ID: rc.ID, URL: rc.URL})
		}
	}
	t.SetLink(kind, types.Link{ID: ri.ID, URL: ri.URL})
	return t
}

func (e *Engine) statusFor(ctx context.Context, closed bool) string {
	if closed {
		return e.Config.ClosedStatus(ctx, e.Tracker.Kind())
	}
	return e.Config.OpenStatus(ctx, e.Tracker.Kind())
}

// Push mirrors selected tasks to the remote tracker in ascending ID order,
// isolating failures per task so one bad item never blocks the rest.
func (e *Engine) Push(ctx context.Context, opts PushOptions) (*Report, error) {
	report := &Report{}

	tasks, err := e.Store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	selected := tasks
	if len(opts.IDs) > 0 {
		byID := make(map[int]*types.Task, len(tasks))
		for _, t := range tasks {
			byID[t.ID] = t
		}
		selected = selected[:0:0]
		for _, id := range opts.IDs {
			t, ok := byID[id]
			if !ok {
				report.add(ReportItem{TaskID: id, Action: ActionFailed, Err: fmt.Errorf("task %d: %w", id, storage.ErrNotFound)})
				continue
			}
			selected = append(selected, t)
		}
		sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	}

	remoteLabels := e.remoteLabelSet(ctx, opts)
	schema := e.Config.Statuses(ctx)
	for _, t := range selected {
		report.add(e.pushTask(ctx, schema, t, opts, remoteLabels))
	}
	report.sort()
	return report, nil
}

// remoteLabelSet fetches the remote label names once per push. A nil
// result disables label pushing for the run, either because labels were
// not requested or the backend has none.
func (e *Engine) remoteLabelSet(ctx context.Context, opts PushOptions) map[string]bool {
	if !opts.Labels {
		return nil
	}
	set := make(map[string]bool)
	err := e.Tracker.ListLabels(ctx, func(l *RemoteLabel) error {
		set[l.Name] = true
		return nil
	})
	if errors.Is(err, ErrUnsupported) {
		e.warn("%s does not support labels; skipping them", e.Tracker.DisplayName())
		return nil
	}
	if err != nil {
		e.warn("listing labels on %s: %v; skipping them", e.Tracker.DisplayName(), err)
		return nil
	}
	return set
}

func (e *Engine) pushTask(ctx context.Context, schema *config.StatusSchema, t *types.Task, opts PushOptions, remoteLabels map[string]bool) ReportItem {
	kind := e.Tracker.Kind()
	pushLabels := opts.Labels && remoteLabels != nil

	if pushLabels {
		e.ensureLabels(ctx, t, remoteLabels)
	}

	fields := IssueFields{
		Title:  t.Name(),
		Body:   t.Description(),
		Status: t.Status(),
		Closed: schema.IsDone(t.Status()),
	}
	if pushLabels {
		fields.Labels = labelNames(t)
	}

	link, linked := t.LinkFor(kind)
	if !linked {
		ri, err := e.Tracker.CreateIssue(ctx, fields)
		if err != nil {
			return ReportItem{TaskID: t.ID, Action: ActionFailed, Err: err}
		}
		newLink := types.Link{ID: ri.ID, URL: ri.URL}
		if err := e.Store.Apply(ctx, &storage.SetLink{TaskID: t.ID, Kind: kind, Link: newLink}); err != nil {
			return ReportItem{TaskID: t.ID, RemoteID: ri.ID, Action: ActionLinkLost,
				Err: fmt.Errorf("issue %s created on %s but the link was not recorded: %w", ri.ID, e.Tracker.DisplayName(), err)}
		}
		t.SetLink(kind, newLink)
		item := ReportItem{TaskID: t.ID, RemoteID: ri.ID, Action: ActionCreated}
		if opts.Comments {
			item.Err = e.pushComments(ctx, t, ri.ID)
		}
		return item
	}

	ri, err := e.Tracker.GetIssue(ctx, link.ID)
	if err != nil {
		return ReportItem{TaskID: t.ID, RemoteID: link.ID, Action: ActionFailed, Err: err}
	}
	if ri == nil {
		return ReportItem{TaskID: t.ID, RemoteID: link.ID, Action: ActionFailed,
			Err: fmt.Errorf("issue %s no longer exists on %s", link.ID, e.Tracker.DisplayName())}
	}

	// Named statuses compare directly; trackers with only a binary state
	// collapse to the status bound to their open or closed side.
	remoteStatus := ri.Status
	if remoteStatus == "" {
		remoteStatus = e.statusFor(ctx, ri.Closed)
	}
	changed := ri.Title != fields.Title || ri.Body != fields.Body || ri.Closed != fields.Closed ||
		!strings.EqualFold(remoteStatus, fields.Status)
	if pushLabels && !sameLabelNames(ri.Labels, fields.Labels) {
		changed = true
	}

	action := ActionSkipped
	if changed {
		if err := e.Tracker.UpdateIssue(ctx, link.ID, fields); err != nil {
			return ReportItem{TaskID: t.ID, RemoteID: link.ID, Action: ActionFailed, Err: err}
		}
		action = ActionUpdated
	} else {
		e.msg("task %d: nothing to sync", t.ID)
	}

	item := ReportItem{TaskID: t.ID, RemoteID: link.ID, Action: action}
	if opts.Comments {
		item.Err = e.pushComments(ctx, t, link.ID)
	}
	return item
}

// ensureLabels creates remote label definitions for local labels the
// remote does not know yet, carrying color and description along.
func (e *Engine) ensureLabels(ctx context.Context, t *types.Task, remote map[string]bool) {
	for _, l := range t.Labels {
		if remote[l.Name] {
			continue
		}
		created, err := e.Tracker.CreateLabel(ctx, RemoteLabel{Name: l.Name, Color: l.Color, Description: l.Description})
		if errors.Is(err, ErrUnsupported) {
			e.warn("%s does not support creating labels; %q stays local", e.Tracker.DisplayName(), l.Name)
			continue
		}
		if err != nil {
			e.warn("creating label %q on %s: %v", l.Name, e.Tracker.DisplayName(), err)
			continue
		}
		remote[created.Name] = true
	}
}

// pushComments creates remote comments for local ones not yet linked, and
// records the new links. Links recorded before a failure survive, so a
// retried push does not duplicate those comments.
func (e *Engine) pushComments(ctx context.Context, t *types.Task, issueID string) error {
	kind := e.Tracker.Kind()
	var linkMuts []storage.Mutation
	var pushErr error
	for _, c := range t.Comments {
		if _, ok := c.LinkFor(kind); ok {
			continue
		}
		rc, err := e.Tracker.CreateComment(ctx, issueID, c.Text)
		if errors.Is(err, ErrUnsupported) {
			e.warn("%s does not support creating comments", e.Tracker.DisplayName())
			break
		}
		if err != nil {
			pushErr = fmt.Errorf("pushing comment %d: %w", c.ID, err)
			break
		}
		linkMuts = append(linkMuts, &storage.SetCommentLink{
			TaskID: t.ID, CommentID: c.ID, Kind: kind,
			Link: types.Link{ID: rc.ID, URL: rc.URL},
		})
	}
	if len(linkMuts) > 0 {
		message := fmt.Sprintf("Record %s comments for task %d", kind, t.ID)
		if err := e.Store.Apply(ctx, &storage.Batch{Message: message, Muts: linkMuts}); err != nil && pushErr == nil {
			pushErr = fmt.Errorf("comments created on %s but links not recorded: %w", e.Tracker.DisplayName(), err)
		}
	}
	return pushErr
}

func labelNames(t *types.Task) []string {
	names := make([]string, 0, len(t.Labels))
	for _, l := range t.Labels {
		names = append(names, l.Name)
	}
	return names
}

func sameLabelNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, n := range a {
		seen[n]++
	}
	for _, n := range b {
		seen[n]--
		if seen[n] < 0 {
			return false
		}
	}
	return true
}

func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}
