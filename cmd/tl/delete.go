package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/selector"
	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/tracker"
	"github.com/tasklog/tasklog/internal/types"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [selector]",
	GroupID: GroupTasks,
	Short:   "Delete tasks",
	Long: `Delete the selected tasks in one step; either all of them are removed
or none. Alternatively --status deletes every task carrying one of the
given statuses. Deleted IDs are never reused.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDelete,
}

func init() {
	f := deleteCmd.Flags()
	f.StringP("status", "s", "", "delete tasks with one of these statuses (comma-separated)")
	f.Bool("push", false, "also delete the linked remote issues")
	f.BoolP("force", "f", false, "skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()
	statusFlag, _ := flags.GetString("status")
	push, _ := flags.GetBool("push")
	force, _ := flags.GetBool("force")

	var ids []int
	switch {
	case len(args) == 1 && statusFlag != "":
		FatalError("a selector and --status cannot be combined")
	case len(args) == 1:
		ids = parseSelector(args[0])
	case statusFlag != "":
		ids = idsByStatus(statusFlag)
	default:
		FatalError("nothing to delete; pass a selector or --status")
	}
	if len(ids) == 0 {
		fmt.Println("No tasks found")
		return
	}

	if !confirmAction(fmt.Sprintf("Delete task(s) %s?", formatIDs(ids)), force) {
		fmt.Fprintln(os.Stderr, "cancelled")
		return
	}

	// Remote identities must be captured before the local records go away.
	var tr tracker.Tracker
	links := make(map[int]types.Link)
	if push {
		tr = matchTracker(rootCtx)
		kind := tr.Kind()
		for _, id := range ids {
			t, err := store.GetTask(rootCtx, id)
			if err != nil {
				continue
			}
			if link, ok := t.LinkFor(kind); ok {
				links[id] = link
			}
		}
	}

	if err := store.Apply(rootCtx, deleteMutation(ids)); err != nil {
		FatalError("%v", err)
	}
	fmt.Printf("Task(s) %s deleted\n", formatIDs(ids))

	if push {
		deleteRemote(tr, ids, links)
	}
}

func deleteMutation(ids []int) storage.Mutation {
	if len(ids) == 1 {
		return &storage.DeleteTask{ID: ids[0]}
	}
	muts := make([]storage.Mutation, len(ids))
	for i, id := range ids {
		muts[i] = &storage.DeleteTask{ID: id}
	}
	return &storage.Batch{Message: fmt.Sprintf("Delete %d tasks", len(ids)), Muts: muts}
}

func idsByStatus(statusFlag string) []int {
	names, err := selector.ResolveStatuses(statusFlag, cfg.Statuses(rootCtx))
	if err != nil {
		FatalError("%v", err)
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	tasks, err := store.ListTasks(rootCtx)
	if err != nil {
		FatalError("%v", err)
	}
	var ids []int
	for _, t := range tasks {
		if wanted[t.Status()] {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func deleteRemote(tr tracker.Tracker, ids []int, links map[int]types.Link) {
	failed := false
	for _, id := range ids {
		link, ok := links[id]
		if !ok {
			WarnError("task %d is not linked to %s", id, tr.DisplayName())
			continue
		}
		if err := tr.DeleteIssue(rootCtx, link.ID); err != nil {
			if errors.Is(err, tracker.ErrUnsupported) {
				WarnError("%s does not support deleting issues", tr.DisplayName())
				continue
			}
			failed = true
			fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", id, err)
			continue
		}
		fmt.Printf("Sync: REMOTE task ID %s has been deleted\n", link.ID)
	}
	if failed {
		os.Exit(1)
	}
}
