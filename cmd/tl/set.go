package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/timeparsing"
)

var setCmd = &cobra.Command{
	Use:     "set <selector> <property> <value>",
	GroupID: GroupTasks,
	Short:   "Set a property on one or more tasks",
	Long: `Set a property on the selected tasks, creating it when absent.

Setting "id" renumbers a single task. Values for datetime typed
properties accept human expressions like "yesterday" or "2w" and are
stored as unix seconds.`,
	Args: cobra.ExactArgs(3),
	Run:  runSet,
}

func init() {
	setCmd.Flags().Bool("push", false, "push updated tasks to the remote tracker")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) {
	push, _ := cmd.Flags().GetBool("push")
	ids := parseSelector(args[0])
	prop, value := args[1], args[2]

	if prop == "id" {
		if len(ids) != 1 {
			FatalError("property \"id\" can only be set on a single task")
		}
		newID, err := strconv.Atoi(value)
		if err != nil {
			FatalError("invalid task ID %q", value)
		}
		id := ids[0]
		if err := store.Apply(rootCtx, &storage.RenameTask{ID: id, NewID: newID}); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("Task ID %d -> %d updated\n", id, newID)
		if push {
			pushTasks(rootCtx, []int{newID}, false, false)
		}
		return
	}

	value = normalizePropertyValue(rootCtx, prop, value)

	var done []int
	failed := false
	for _, id := range ids {
		if err := store.Apply(rootCtx, &storage.SetProperty{ID: id, Key: prop, Value: value}); err != nil {
			failed = true
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "Task ID %d not found\n", id)
			} else {
				fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", id, err)
			}
			continue
		}
		fmt.Printf("Task ID %d updated\n", id)
		done = append(done, id)
	}
	if push && len(done) > 0 {
		pushTasks(rootCtx, done, false, false)
	}
	if failed {
		os.Exit(1)
	}
}

// normalizePropertyValue converts human time expressions to unix seconds
// for datetime typed properties. Values that already parse as integers
// pass through unchanged.
func normalizePropertyValue(ctx context.Context, prop, value string) string {
	def, ok := cfg.Properties(ctx).Find(prop)
	if !ok || def.ValueType != config.TypeDatetime {
		return value
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return value
	}
	t, err := timeparsing.ParseRelativeTime(value, time.Now())
	if err != nil {
		FatalError("parsing %s value: %v", prop, err)
	}
	return strconv.FormatInt(t.Unix(), 10)
}
