package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tasklog/tasklog/internal/tracker"
)

// matchTracker resolves and connects the tracker backend serving this
// command. Flags win over user preferences; with neither set, the git
// remotes decide.
func matchTracker(ctx context.Context) tracker.Tracker {
	remotes, err := repo.Remotes(ctx)
	if err != nil {
		WarnError("listing git remotes: %v", err)
	}
	name := remoteName
	if name == "" {
		name = prefs.GetString("default-remote")
	}
	kind := connectorKind
	if kind == "" {
		kind = prefs.GetString("default-connector")
	}
	tr, err := tracker.Match(ctx, tracker.Setup{Config: store}, remotes, name, kind)
	if err != nil {
		FatalError("%v", err)
	}
	return tr
}

func newEngine(ctx context.Context, tr tracker.Tracker) *tracker.Engine {
	return &tracker.Engine{
		Store:   store,
		Tracker: tr,
		Config:  cfg,
		User:    repo.AuthorName(ctx),
		OnMessage: func(msg string) {
			fmt.Println(msg)
		},
		OnWarning: func(msg string) {
			WarnError("%s", msg)
		},
	}
}

// pushTasks mirrors the given tasks to the matched tracker. Commands with
// a --push flag funnel through here after their local mutation.
func pushTasks(ctx context.Context, ids []int, comments, labels bool) {
	tr := matchTracker(ctx)
	eng := newEngine(ctx, tr)
	report, err := eng.Push(ctx, tracker.PushOptions{IDs: ids, Comments: comments, Labels: labels})
	if err != nil {
		FatalError("%v", err)
	}
	printPushReport(report)
	if report.Failed() {
		os.Exit(1)
	}
}

func printPushReport(report *tracker.Report) {
	for _, item := range report.Items {
		switch item.Action {
		case tracker.ActionCreated:
			fmt.Printf("Sync: Created REMOTE task ID %s\n", item.RemoteID)
			if item.Err != nil {
				fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", item.TaskID, item.Err)
			}
		case tracker.ActionUpdated:
			fmt.Printf("Sync: REMOTE task ID %s has been updated\n", item.RemoteID)
			if item.Err != nil {
				fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", item.TaskID, item.Err)
			}
		case tracker.ActionFailed:
			fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", item.TaskID, item.Err)
		case tracker.ActionLinkLost:
			fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", item.TaskID, item.Err)
		}
	}
}

func printPullReport(report *tracker.Report) {
	for _, item := range report.Items {
		switch item.Action {
		case tracker.ActionCreated:
			fmt.Printf("Task ID %d created\n", item.TaskID)
		case tracker.ActionUpdated:
			fmt.Printf("Task ID %d updated\n", item.TaskID)
		case tracker.ActionSkipped:
			fmt.Printf("Task ID %d skipped, nothing to update\n", item.TaskID)
		case tracker.ActionFailed:
			if item.TaskID > 0 {
				fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", item.TaskID, item.Err)
			} else {
				fmt.Fprintf(os.Stderr, "Issue %s: %v\n", item.RemoteID, item.Err)
			}
		}
	}
}
