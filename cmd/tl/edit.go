package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
)

var editCmd = &cobra.Command{
	Use:     "edit <id> <property>",
	GroupID: GroupTasks,
	Short:   "Edit a task property in the editor",
	Long: `Open the configured editor on the current value of a property and
store the result. Editing "id" renumbers the task.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task ID %q", args[0])
		}
		task := mustTask(rootCtx, id)
		prop := args[1]

		if prop == "id" {
			text, err := editText(rootCtx, strconv.Itoa(task.ID))
			if err != nil {
				FatalError("Editing failed: %v", err)
			}
			newID, err := strconv.Atoi(text)
			if err != nil {
				FatalError("invalid task ID %q", text)
			}
			if err := store.Apply(rootCtx, &storage.RenameTask{ID: id, NewID: newID}); err != nil {
				FatalError("%v", err)
			}
			fmt.Printf("Task ID %d -> %d updated\n", id, newID)
			return
		}

		value, ok := task.Properties.Get(prop)
		if !ok {
			FatalError("Task property %s not found", prop)
		}
		text, err := editText(rootCtx, value)
		if err != nil {
			FatalError("Editing failed: %v", err)
		}
		if err := store.Apply(rootCtx, &storage.SetProperty{ID: id, Key: prop, Value: text}); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("Task ID %d updated\n", id)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
