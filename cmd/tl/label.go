package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/types"
)

var labelCmd = &cobra.Command{
	Use:     "label",
	GroupID: GroupTasks,
	Short:   "Add or delete task labels",
}

var labelAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Add a label to a task",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		color, _ := flags.GetString("color")
		description, _ := flags.GetString("description")
		push, _ := flags.GetBool("push")

		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task ID %q", args[0])
		}
		name := args[1]

		mut := &storage.AddLabel{
			TaskID: id,
			Label:  types.Label{Name: name, Color: color, Description: description},
		}
		if err := store.Apply(rootCtx, mut); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				FatalError("Task ID %d not found", id)
			}
			FatalError("%v", err)
		}
		fmt.Printf("Task ID %d updated\n", id)

		if push {
			pushTasks(rootCtx, []int{id}, false, true)
			fmt.Printf("Added REMOTE label %s\n", name)
		}
	},
}

var labelDeleteCmd = &cobra.Command{
	Use:   "delete <id> <name>",
	Short: "Delete a label from a task",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		push, _ := cmd.Flags().GetBool("push")

		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task ID %q", args[0])
		}
		name := args[1]
		mustTask(rootCtx, id)

		if err := store.Apply(rootCtx, &storage.DeleteLabel{TaskID: id, Name: name}); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("Task ID %d updated\n", id)

		if push {
			pushTasks(rootCtx, []int{id}, false, true)
			fmt.Printf("Sync: REMOTE label '%s' has been deleted\n", name)
		}
	},
}

func init() {
	labelAddCmd.Flags().String("color", "", "label color")
	labelAddCmd.Flags().String("description", "", "label description")
	labelAddCmd.Flags().Bool("push", false, "push the task's labels to the remote tracker")
	labelDeleteCmd.Flags().Bool("push", false, "push the task's labels to the remote tracker")
	labelCmd.AddCommand(labelAddCmd, labelDeleteCmd)
	rootCmd.AddCommand(labelCmd)
}
