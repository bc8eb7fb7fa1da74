package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/types"
)

var statusCmd = &cobra.Command{
	Use:     "status <selector> <status>",
	GroupID: GroupTasks,
	Short:   "Set the status of one or more tasks",
	Long: `Set the status of the selected tasks. The status may be given by name
or by its shortcut and must exist in the status schema.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		push, _ := cmd.Flags().GetBool("push")

		ids := parseSelector(args[0])
		schema := cfg.Statuses(rootCtx)
		status := schema.FullName(args[1])
		if !schema.Valid(status) {
			FatalError("unknown status %q", args[1])
		}

		var done []int
		failed := false
		for _, id := range ids {
			mut := &storage.SetProperty{ID: id, Key: types.PropStatus, Value: status}
			if err := store.Apply(rootCtx, mut); err != nil {
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
	},
}

func init() {
	statusCmd.Flags().Bool("push", false, "push updated tasks to the remote tracker")
	rootCmd.AddCommand(statusCmd)
}
