package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/tracker"
)

var pullCmd = &cobra.Command{
	Use:     "pull [selector]",
	GroupID: GroupSync,
	Short:   "Pull issues from the remote tracker",
	Long: `Reconcile remote issues into the local store. Linked tasks are
refreshed, unknown issues become new tasks. A selector limits the pull
to the remote counterparts of the given tasks.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		statusFlag, _ := flags.GetString("status")
		limit, _ := flags.GetInt("limit")
		noComments, _ := flags.GetBool("no-comments")
		noLabels, _ := flags.GetBool("no-labels")

		opts := tracker.PullOptions{
			Limit:    limit,
			Comments: !noComments,
			Labels:   !noLabels,
		}
		if len(args) == 1 {
			opts.IDs = parseSelector(args[0])
		}
		if statusFlag != "" {
			schema := cfg.Statuses(rootCtx)
			status := schema.FullName(statusFlag)
			if !schema.Valid(status) {
				FatalError("unknown status %q", statusFlag)
			}
			opts.Status = status
		}

		tr := matchTracker(rootCtx)
		fmt.Printf("Pulling tasks from %s...\n", tr.DisplayName())

		report, err := newEngine(rootCtx, tr).Pull(rootCtx, opts)
		if err != nil {
			FatalError("%v", err)
		}
		if len(report.Items) == 0 {
			fmt.Println("No tasks found")
			return
		}
		printPullReport(report)
		if report.Failed() {
			os.Exit(1)
		}
	},
}

func init() {
	f := pullCmd.Flags()
	f.StringP("status", "s", "", "only issues matching this local status's remote state")
	f.IntP("limit", "l", 0, "maximum number of issues to pull")
	f.Bool("no-comments", false, "skip pulling comments")
	f.Bool("no-labels", false, "skip pulling labels")
	rootCmd.AddCommand(pullCmd)
}
