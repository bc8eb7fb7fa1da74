package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/selector"
	"github.com/tasklog/tasklog/internal/transfer"
)

var exportCmd = &cobra.Command{
	Use:     "export [selector]",
	GroupID: GroupSync,
	Short:   "Export tasks as JSON",
	Long: `Write tasks to stdout as a JSON array in ascending ID order. A
selector and the status and limit flags narrow the output.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		statusFlag, _ := flags.GetString("status")
		limit, _ := flags.GetInt("limit")
		pretty, _ := flags.GetBool("pretty")
		format, _ := flags.GetString("format")
		if format != "json" {
			FatalError("Only JSON format is supported")
		}

		opts := transfer.ExportOptions{Limit: limit, Pretty: pretty}
		if len(args) == 1 {
			opts.IDs = parseSelector(args[0])
		}
		if statusFlag != "" {
			names, err := selector.ResolveStatuses(statusFlag, cfg.Statuses(rootCtx))
			if err != nil {
				FatalError("%v", err)
			}
			opts.Statuses = names
		}

		if _, err := transfer.Export(rootCtx, store, os.Stdout, opts); err != nil {
			FatalError("%v", err)
		}
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringP("status", "s", "", "only tasks with one of these statuses (comma-separated)")
	f.IntP("limit", "l", 0, "maximum number of tasks to export")
	f.Bool("pretty", false, "indent the JSON output")
	f.String("format", "json", "output format (only json)")
	rootCmd.AddCommand(exportCmd)
}
