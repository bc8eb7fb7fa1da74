package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
)

var unsetCmd = &cobra.Command{
	Use:     "unset <selector> <property>",
	GroupID: GroupTasks,
	Short:   "Remove a property from one or more tasks",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ids := parseSelector(args[0])
		prop := args[1]

		failed := false
		for _, id := range ids {
			t, err := store.GetTask(rootCtx, id)
			if err != nil {
				failed = true
				if errors.Is(err, storage.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "Task ID %d not found\n", id)
				} else {
					fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", id, err)
				}
				continue
			}
			if !t.Properties.Has(prop) {
				failed = true
				fmt.Fprintf(os.Stderr, "Task ID %d: property not found\n", id)
				continue
			}
			if err := store.Apply(rootCtx, &storage.UnsetProperty{ID: id, Key: prop}); err != nil {
				failed = true
				fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", id, err)
				continue
			}
			fmt.Printf("Task ID %d updated\n", id)
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(unsetCmd)
}
