package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:     "get <id> <property>",
	GroupID: GroupTasks,
	Short:   "Print a single task property",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task ID %q", args[0])
		}
		task := mustTask(rootCtx, id)

		prop := args[1]
		if prop == "id" {
			fmt.Println(task.ID)
			return
		}
		value, ok := task.Properties.Get(prop)
		if !ok {
			FatalError("Task property %s not found", prop)
		}
		fmt.Println(value)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
