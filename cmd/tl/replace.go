package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
)

var replaceCmd = &cobra.Command{
	Use:     "replace <selector> <property> <search> <replace>",
	GroupID: GroupTasks,
	Short:   "Replace text in a property across tasks",
	Long: `Replace all occurrences of the search string in a property of the
selected tasks. With --regex the search term is an RE2 pattern and the
replacement may reference capture groups ($1, ${name}).`,
	Args: cobra.ExactArgs(4),
	Run:  runReplace,
}

func init() {
	f := replaceCmd.Flags()
	f.Bool("regex", false, "treat the search term as a regular expression")
	f.Bool("push", false, "push updated tasks to the remote tracker")
	rootCmd.AddCommand(replaceCmd)
}

func runReplace(cmd *cobra.Command, args []string) {
	regex, _ := cmd.Flags().GetBool("regex")
	push, _ := cmd.Flags().GetBool("push")

	ids := parseSelector(args[0])
	prop, search, replacement := args[1], args[2], args[3]

	var re *regexp.Regexp
	if regex {
		var err error
		re, err = regexp.Compile(search)
		if err != nil {
			FatalError("%v", err)
		}
	}

	var done []int
	failed := false
	for _, id := range ids {
		t, err := store.GetTask(rootCtx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", id, err)
			continue
		}
		value, ok := t.Properties.Get(prop)
		if !ok {
			failed = true
			fmt.Fprintf(os.Stderr, "Task ID %d: property not found\n", id)
			continue
		}

		newValue := strings.ReplaceAll(value, search, replacement)
		if re != nil {
			newValue = re.ReplaceAllString(value, replacement)
		}
		if newValue == value {
			continue
		}

		if err := store.Apply(rootCtx, &storage.SetProperty{ID: id, Key: prop, Value: newValue}); err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "Task ID %d: %v\n", id, err)
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
}
