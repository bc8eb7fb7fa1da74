package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/transfer"
	"github.com/tasklog/tasklog/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import [selector]",
	GroupID: GroupSync,
	Short:   "Import tasks from piped JSON",
	Long: `Import tasks from JSON piped to stdin, keeping their IDs. Tasks that
already exist locally are reported and skipped. A selector restricts the
import to the given IDs.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		if format != "json" {
			FatalError("Only JSON format is supported")
		}

		var ids []int
		if len(args) == 1 {
			ids = parseSelector(args[0])
		}

		if ui.StdinIsTerminal() {
			FatalError("Can't read from pipe")
		}
		results, err := transfer.Import(rootCtx, store, os.Stdin, transfer.ImportOptions{IDs: ids})
		if err != nil {
			if errors.Is(err, storage.ErrEncoding) {
				FatalError("Can't deserialize input")
			}
			FatalError("%v", err)
		}

		failed := false
		for _, r := range results {
			if r.Err != nil {
				failed = true
				fmt.Fprintf(os.Stderr, "%v\n", r.Err)
				continue
			}
			fmt.Printf("Task ID %d imported\n", r.ID)
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	importCmd.Flags().String("format", "json", "input format (only json)")
	rootCmd.AddCommand(importCmd)
}
