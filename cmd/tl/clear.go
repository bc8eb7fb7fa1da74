package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
)

var clearCmd = &cobra.Command{
	Use:     "clear",
	GroupID: GroupTasks,
	Short:   "Delete all tasks",
	Long: `Delete every task in one step. ID allocation is kept, so new tasks
continue numbering where the old ones left off.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		tasks, err := store.ListTasks(rootCtx)
		if err != nil {
			FatalError("%v", err)
		}
		count := len(tasks)

		if count > 0 && !confirmAction(fmt.Sprintf("Delete all %d task(s)?", count), force) {
			fmt.Fprintln(os.Stderr, "cancelled")
			return
		}

		if err := store.Apply(rootCtx, &storage.DeleteAll{}); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%d task(s) deleted\n", count)
	},
}

func init() {
	clearCmd.Flags().BoolP("force", "f", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}
