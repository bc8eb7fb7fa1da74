package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/selector"
	"github.com/tasklog/tasklog/internal/timeparsing"
	"github.com/tasklog/tasklog/internal/types"
	"github.com/tasklog/tasklog/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list [selector]",
	GroupID: GroupViews,
	Short:   "List tasks",
	Long: `List tasks matching the given filters, one line per task.

Columns and sort order come from the task.list.columns and task.list.sort
configuration unless overridden with --columns and --sort.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runList,
}

func init() {
	f := listCmd.Flags()
	f.StringP("status", "s", "", "only tasks with one of these statuses (comma-separated)")
	f.StringP("keyword", "k", "", "only tasks with the keyword in a property value")
	f.String("from", "", "only tasks created at or after this time")
	f.String("until", "", "only tasks created up to the end of this time")
	f.StringP("author", "a", "", "only tasks by this author")
	f.IntP("limit", "l", 0, "maximum number of tasks to print")
	f.StringP("columns", "c", "", "columns to print (comma-separated)")
	f.String("sort", "", `sort order, e.g. "status asc, id desc"`)
	f.Bool("json", false, "print tasks as JSON")
	f.BoolP("watch", "w", false, "re-render the list whenever the task ref moves")
	rootCmd.AddCommand(listCmd)
}

type listFilter struct {
	ids      []int
	statuses []string
	keyword  string
	from     time.Time
	until    time.Time
	author   string
}

// match applies the list filters. Time filters only consider tasks that
// carry a created property; the author filter lets authorless tasks
// through. Keyword matching is a case-sensitive substring search over all
// property values.
func (f *listFilter) match(t *types.Task) bool {
	if len(f.ids) > 0 {
		found := false
		for _, id := range f.ids {
			if id == t.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.statuses) > 0 {
		found := false
		for _, s := range f.statuses {
			if s == t.Status() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.keyword != "" {
		found := false
		for _, key := range t.Properties.Keys() {
			value, _ := t.Properties.Get(key)
			if strings.Contains(value, f.keyword) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.from.IsZero() || !f.until.IsZero() {
		if created, ok := t.CreatedTime(); ok {
			if !f.from.IsZero() && created.Before(f.from) {
				return false
			}
			if !f.until.IsZero() && created.After(f.until) {
				return false
			}
		}
	}
	if f.author != "" && t.Author() != "" && !strings.EqualFold(t.Author(), f.author) {
		return false
	}
	return true
}

func runList(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()
	statusFlag, _ := flags.GetString("status")
	keyword, _ := flags.GetString("keyword")
	fromFlag, _ := flags.GetString("from")
	untilFlag, _ := flags.GetString("until")
	author, _ := flags.GetString("author")
	limit, _ := flags.GetInt("limit")
	columnsFlag, _ := flags.GetString("columns")
	sortFlag, _ := flags.GetString("sort")
	asJSON, _ := flags.GetBool("json")
	watch, _ := flags.GetBool("watch")

	filter := &listFilter{keyword: keyword, author: author}
	if len(args) == 1 {
		filter.ids = parseSelector(args[0])
	}

	schema := cfg.Statuses(rootCtx)
	if statusFlag != "" {
		names, err := selector.ResolveStatuses(statusFlag, schema)
		if err != nil {
			FatalError("%v", err)
		}
		filter.statuses = names
	}

	now := time.Now()
	if fromFlag != "" {
		t, err := timeparsing.ParseRelativeTime(fromFlag, now)
		if err != nil {
			FatalError("parsing --from: %v", err)
		}
		filter.from = t
	}
	if untilFlag != "" {
		t, err := timeparsing.ParseRelativeTime(untilFlag, now)
		if err != nil {
			FatalError("parsing --until: %v", err)
		}
		filter.until = timeparsing.EndOfDay(t)
	}

	props := cfg.Properties(rootCtx)
	columns := cfg.Columns(rootCtx)
	if columnsFlag != "" {
		columns = nil
		for _, c := range strings.Split(columnsFlag, ",") {
			if c = strings.TrimSpace(c); c != "" {
				columns = append(columns, c)
			}
		}
	}
	sortKeys := cfg.Sort(rootCtx)
	if sortFlag != "" {
		sortKeys = config.ParseSort(sortFlag)
	}

	render := func() {
		tasks := loadTasks(rootCtx, filter, sortKeys, props, limit)
		r := ui.NewRenderer(schema, props)
		for _, t := range tasks {
			fmt.Println(r.TaskLine(t, columns))
		}
	}

	if asJSON {
		tasks := loadTasks(rootCtx, filter, sortKeys, props, limit)
		if tasks == nil {
			tasks = []*types.Task{}
		}
		outputJSON(tasks)
		return
	}
	if watch {
		watchList(render)
		return
	}
	render()
}

func loadTasks(ctx context.Context, filter *listFilter, sortKeys []config.SortKey, props *config.PropertySchema, limit int) []*types.Task {
	tasks, err := store.ListTasks(ctx)
	if err != nil {
		FatalError("%v", err)
	}
	filtered := tasks[:0:0]
	for _, t := range tasks {
		if filter.match(t) {
			filtered = append(filtered, t)
		}
	}
	sortTasks(filtered, sortKeys, props)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// sortTasks orders tasks by the given keys. The id column and
// integer/datetime typed properties compare numerically, everything else
// as lowercase strings.
func sortTasks(tasks []*types.Task, keys []config.SortKey, props *config.PropertySchema) {
	sort.SliceStable(tasks, func(i, j int) bool {
		for _, key := range keys {
			c := compareTasks(tasks[i], tasks[j], key.Field, props)
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareTasks(a, b *types.Task, field string, props *config.PropertySchema) int {
	if field == "id" {
		return compareInts(int64(a.ID), int64(b.ID))
	}
	av := a.Properties.GetDefault(field, "")
	bv := b.Properties.GetDefault(field, "")
	if def, ok := props.Find(field); ok &&
		(def.ValueType == config.TypeInteger || def.ValueType == config.TypeDatetime) {
		an, _ := strconv.ParseInt(av, 10, 64)
		bn, _ := strconv.ParseInt(bv, 10, 64)
		return compareInts(an, bn)
	}
	return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// watchList re-renders the list whenever the task ref moves. Ref updates
// arrive as directory events on the ref's parent and on packed-refs, so
// bursts are debounced before re-reading the store.
func watchList(render func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		FatalError("starting watcher: %v", err)
	}
	defer watcher.Close()
	for _, path := range gs.Repo().RefWatchPaths(gs.Ref()) {
		if err := watcher.Add(path); err != nil {
			WarnError("watching %s: %v", path, err)
		}
	}

	render()

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	for {
		select {
		case <-rootCtx.Done():
			return
		case _, ok := <-watcher.Events:
			if !ok {
				return
			}
			debounce.Reset(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			WarnError("%v", err)
		case <-debounce.C:
			fmt.Print("\x1b[2J\x1b[H")
			render()
		}
	}
}
