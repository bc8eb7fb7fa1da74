package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/tracker"
)

var pushCmd = &cobra.Command{
	Use:     "push <selector>",
	GroupID: GroupSync,
	Short:   "Push tasks to the remote tracker",
	Long: `Mirror the selected tasks to the remote tracker. Unlinked tasks are
created remotely and linked; linked tasks are updated when their remote
counterpart differs.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		noComments, _ := cmd.Flags().GetBool("no-comments")
		noLabels, _ := cmd.Flags().GetBool("no-labels")

		ids := parseSelector(args[0])
		tr := matchTracker(rootCtx)
		report, err := newEngine(rootCtx, tr).Push(rootCtx, tracker.PushOptions{
			IDs:      ids,
			Comments: !noComments,
			Labels:   !noLabels,
		})
		if err != nil {
			FatalError("%v", err)
		}
		printPushReport(report)
		if report.Failed() {
			os.Exit(1)
		}
	},
}

func init() {
	pushCmd.Flags().Bool("no-comments", false, "skip pushing comments")
	pushCmd.Flags().Bool("no-labels", false, "skip pushing labels")
	rootCmd.AddCommand(pushCmd)
}
