package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/storage"
)

var configStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Manage the status schema",
}

var configStatusAddCmd = &cobra.Command{
	Use:   "add <name> <shortcut> <color>",
	Short: "Add a status",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		isDone, _ := cmd.Flags().GetBool("is-done")

		schema := cfg.Statuses(rootCtx)
		st := config.Status{Name: args[0], Shortcut: args[1], Color: args[2], IsDone: isDone}
		if err := schema.Add(st); err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveStatuses(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Status has been added")
	},
}

var configStatusDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		schema := cfg.Statuses(rootCtx)
		name := schema.FullName(args[0])
		if !force && statusInUse(name) {
			FatalError("Can't delete a status, some tasks still have it. Use --force option to override.")
		}
		if err := schema.Delete(name); err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveStatuses(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Status has been deleted")
	},
}

var configStatusGetCmd = &cobra.Command{
	Use:   "get <name> <param>",
	Short: "Print one field of a status",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		schema := cfg.Statuses(rootCtx)
		name := schema.FullName(args[0])
		value, err := schema.Get(name, args[1])
		if err != nil {
			FatalError("Unknown status %s or property: %s", name, args[1])
		}
		fmt.Println(value)
	},
}

var configStatusSetCmd = &cobra.Command{
	Use:   "set <name> <param> <value>",
	Short: "Update one field of a status",
	Long: `Update one field of a status: name, shortcut, color, style or
is_done. Renaming a status rewrites every task that carries the old
name.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		schema := cfg.Statuses(rootCtx)
		name := schema.FullName(args[0])
		param, value := args[1], args[2]

		prev, err := schema.Set(name, param, value)
		if err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveStatuses(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s %s has been updated\n", name, param)

		if param == "name" && prev != "" && prev != value {
			if err := store.Apply(rootCtx, &storage.ReplaceStatusValue{Old: prev, New: value}); err != nil {
				FatalError("%v", err)
			}
		}
	},
}

var configStatusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the statuses",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Name\tShortcut\tColor\tStyle\tIs DONE")
		for _, st := range cfg.Statuses(rootCtx).All() {
			fmt.Printf("%s\t%s\t%s\t%s\t%t\n", st.Name, st.Shortcut, st.Color, st.Style, st.IsDone)
		}
	},
}

var configStatusImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the status schema from piped JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		input, ok := readPipe()
		if !ok {
			FatalError("Can't read from pipe")
		}
		schema, err := config.ParseStatusSchema(input)
		if err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveStatuses(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Import successful")
	},
}

var configStatusExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the status schema as JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		pretty, _ := cmd.Flags().GetBool("pretty")
		schema := cfg.Statuses(rootCtx)
		if pretty {
			outputJSON(schema)
			return
		}
		raw, err := json.Marshal(schema)
		if err != nil {
			FatalError("%v", err)
		}
		fmt.Println(string(raw))
	},
}

var configStatusResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the status schema to the defaults",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.ResetStatuses(rootCtx); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Statuses have been reset")
	},
}

func statusInUse(name string) bool {
	tasks, err := store.ListTasks(rootCtx)
	if err != nil {
		return false
	}
	for _, t := range tasks {
		if t.Status() == name {
			return true
		}
	}
	return false
}

func init() {
	configStatusAddCmd.Flags().Bool("is-done", false, "mark the status as finished work")
	configStatusDeleteCmd.Flags().BoolP("force", "f", false, "delete even when tasks still carry the status")
	configStatusExportCmd.Flags().Bool("pretty", false, "indent the JSON output")
	configStatusCmd.AddCommand(
		configStatusAddCmd,
		configStatusDeleteCmd,
		configStatusGetCmd,
		configStatusSetCmd,
		configStatusListCmd,
		configStatusImportCmd,
		configStatusExportCmd,
		configStatusResetCmd,
	)
	configCmd.AddCommand(configStatusCmd)
}
