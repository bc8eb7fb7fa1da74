package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: GroupViews,
	Short:   "Show task counts by status and author",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		tasks, err := store.ListTasks(rootCtx)
		if err != nil {
			FatalError("%v", err)
		}

		byStatus := make(map[string]int)
		byAuthor := make(map[string]int)
		for _, t := range tasks {
			byStatus[t.Status()]++
			if author := t.Author(); author != "" {
				byAuthor[author]++
			}
		}

		schema := cfg.Statuses(rootCtx)
		statuses := make([]statusCount, 0, len(byStatus))
		for _, st := range schema.All() {
			if n := byStatus[st.Name]; n > 0 {
				statuses = append(statuses, statusCount{Status: st.Name, Count: n})
			}
		}

		authors := make([]authorCount, 0, len(byAuthor))
		for author, n := range byAuthor {
			authors = append(authors, authorCount{Author: author, Count: n})
		}
		sort.Slice(authors, func(i, j int) bool {
			if authors[i].Count != authors[j].Count {
				return authors[i].Count > authors[j].Count
			}
			return authors[i].Author < authors[j].Author
		})
		if len(authors) > 10 {
			authors = authors[:10]
		}

		if asJSON {
			outputJSON(taskStats{Total: len(tasks), Statuses: statuses, Authors: authors})
			return
		}

		r := ui.NewRenderer(schema, cfg.Properties(rootCtx))
		fmt.Printf("Total tasks: %d\n", len(tasks))
		fmt.Println()
		for _, sc := range statuses {
			fmt.Printf("%s: %d\n", r.FormatStatus(sc.Status), sc.Count)
		}
		if len(authors) > 0 {
			fmt.Println()
			fmt.Println("Top 10 authors:")
			for _, ac := range authors {
				fmt.Printf("%s: %d\n", ac.Author, ac.Count)
			}
		}
	},
}

type taskStats struct {
	Total    int           `json:"total"`
	Statuses []statusCount `json:"statuses"`
	Authors  []authorCount `json:"authors"`
}

type statusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type authorCount struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
}

func init() {
	statsCmd.Flags().Bool("json", false, "print the stats as JSON")
	rootCmd.AddCommand(statsCmd)
}
