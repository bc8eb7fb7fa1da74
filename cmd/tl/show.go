package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/types"
	"github.com/tasklog/tasklog/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: GroupViews,
	Short:   "Show a task with all its properties and comments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task ID %q", args[0])
		}
		task := mustTask(rootCtx, id)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			outputJSON(task)
			return
		}
		printTask(task)
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "print the task as JSON")
	rootCmd.AddCommand(showCmd)
}

func printField(title, value string) {
	fmt.Printf("%s: %s\n", ui.RenderMuted(title), value)
}

// printTask renders the task detail view: reserved fields in a fixed
// order, then custom properties, the description last, and comments below
// a separator each.
func printTask(task *types.Task) {
	r := ui.NewRenderer(cfg.Statuses(rootCtx), cfg.Properties(rootCtx))
	bindings := ui.TaskBindings(task)

	printField("ID", strconv.Itoa(task.ID))
	if created, ok := task.Properties.Get(types.PropCreated); ok && created != "" {
		printField("Created", ui.FormatTimestamp(created))
	}
	if author := task.Author(); author != "" {
		printField("Author", r.FormatValue(types.PropAuthor, author, bindings))
	}
	printField("Name", r.FormatValue(types.PropName, task.Name(), bindings))
	if len(task.Labels) > 0 {
		parts := make([]string, len(task.Labels))
		for i, l := range task.Labels {
			parts[i] = ui.Stylize(l.Name, l.Color, "")
		}
		printField("Labels", strings.Join(parts, " "))
	}
	printField("Status", r.FormatStatus(task.Status()))

	for _, key := range task.Properties.Keys() {
		if types.IsReservedProp(key) {
			continue
		}
		value, _ := task.Properties.Get(key)
		printField(capitalize(key), r.FormatValue(key, value, bindings))
	}

	if desc := task.Description(); desc != "" {
		rendered := ui.RenderMarkdown(desc)
		if rendered == desc {
			printField("Description", desc)
		} else {
			fmt.Printf("%s:\n%s", ui.RenderMuted("Description"), rendered)
		}
	}

	for _, c := range task.Comments {
		printComment(r, c)
	}
}

func printComment(r *ui.Renderer, c *types.Comment) {
	bindings := make(map[string]string, c.Properties.Len())
	for _, key := range c.Properties.Keys() {
		bindings[key], _ = c.Properties.Get(key)
	}

	fmt.Println(ui.RenderMuted("---------------"))
	fmt.Printf("%s: %d\n", ui.RenderMuted("Comment ID"), c.ID)
	if created, ok := c.Properties.Get(types.PropCreated); ok && created != "" {
		printField("Created", ui.FormatTimestamp(created))
	}
	if author, ok := c.Properties.Get(types.PropAuthor); ok && author != "" {
		printField("Author", r.FormatValue(types.PropAuthor, author, bindings))
	}
	fmt.Println(c.Text)
}
