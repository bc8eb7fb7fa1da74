package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/storage"
)

var configPropsCmd = &cobra.Command{
	Use:   "props",
	Short: "Manage the property schema",
}

var configPropsAddCmd = &cobra.Command{
	Use:   "add <name> <value_type> <color>",
	Short: "Add a property definition",
	Long: `Add a property definition. The value type is one of string, integer,
datetime or text. Enum values and conditional format rules are given as
"name,color[,style]" and "expr,color[,style]" respectively.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		style, _ := flags.GetString("style")
		enumSpecs, _ := flags.GetStringArray("enum")
		condSpecs, _ := flags.GetStringArray("cond-format")

		def := config.PropertyDef{Name: args[0], ValueType: args[1], Color: args[2], Style: style}
		for _, spec := range enumSpecs {
			ev, err := parseEnumSpec(spec)
			if err != nil {
				FatalError("%v", err)
			}
			def.EnumValues = append(def.EnumValues, ev)
		}
		for _, spec := range condSpecs {
			rule, err := parseCondFormatSpec(spec)
			if err != nil {
				FatalError("%v", err)
			}
			def.CondFormat = append(def.CondFormat, rule)
		}

		schema := cfg.Properties(rootCtx)
		if err := schema.Add(def); err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("Property %s has been added\n", def.Name)
	},
}

var configPropsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a property definition",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		name := args[0]
		if !force && propertyInUse(name) {
			FatalError("Can't delete a property, some tasks still have it. Use --force option to override.")
		}
		schema := cfg.Properties(rootCtx)
		if err := schema.Delete(name); err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("Property %s has been deleted\n", name)
	},
}

var configPropsGetCmd = &cobra.Command{
	Use:   "get <name> <param>",
	Short: "Print one field of a property definition",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := cfg.Properties(rootCtx).Get(args[0], args[1])
		if err != nil {
			FatalError("Unknown property %s or parameter: %s", args[0], args[1])
		}
		fmt.Println(value)
	},
}

var configPropsSetCmd = &cobra.Command{
	Use:   "set <name> <param> <value>",
	Short: "Update one field of a property definition",
	Long: `Update one field of a property definition: name, value_type, color or
style. Renaming a property migrates the key on every task that carries
it.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		name, param, value := args[0], args[1], args[2]

		schema := cfg.Properties(rootCtx)
		prev, err := schema.Set(name, param, value)
		if err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s %s has been updated\n", name, param)

		if param == "name" && prev != "" && prev != value {
			migratePropertyKey(prev, value)
		}
	},
}

var configPropsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the property definitions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Name\tValue type\tColor\tStyle\tEnum values")
		for _, def := range cfg.Properties(rootCtx).All() {
			enums := make([]string, 0, len(def.EnumValues))
			for _, ev := range def.EnumValues {
				spec := ev.Name + "," + ev.Color
				if ev.Style != "" {
					spec += "," + ev.Style
				}
				enums = append(enums, spec)
			}
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
				def.Name, def.ValueType, def.Color, def.Style, strings.Join(enums, ";"))
		}
	},
}

var configPropsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the property schema from piped JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		input, ok := readPipe()
		if !ok {
			FatalError("Can't read from pipe")
		}
		schema, err := config.ParsePropertySchema(input)
		if err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Import successful")
	},
}

var configPropsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the property schema as JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		pretty, _ := cmd.Flags().GetBool("pretty")
		schema := cfg.Properties(rootCtx)
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

var configPropsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the property schema to the defaults",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.ResetProperties(rootCtx); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Properties have been reset")
	},
}

var configPropsEnumCmd = &cobra.Command{
	Use:   "enum",
	Short: "Manage enum values of a property",
}

var configPropsEnumListCmd = &cobra.Command{
	Use:   "list <property>",
	Short: "List a property's enum values",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		def, ok := cfg.Properties(rootCtx).Find(args[0])
		if !ok {
			FatalError("Property not found")
		}
		if len(def.EnumValues) == 0 {
			FatalError("Property has no enum values")
		}
		for _, ev := range def.EnumValues {
			fmt.Printf("%s %s %s\n", ev.Name, ev.Color, ev.Style)
		}
	},
}

var configPropsEnumAddCmd = &cobra.Command{
	Use:   "add <property> <name> <color>",
	Short: "Add an enum value to a property",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		style, _ := cmd.Flags().GetString("style")

		schema := cfg.Properties(rootCtx)
		ev := config.EnumValue{Name: args[1], Color: args[2], Style: style}
		if err := schema.AddEnum(args[0], ev); err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Property enum has been added")
	},
}

var configPropsEnumGetCmd = &cobra.Command{
	Use:   "get <property> <name> <param>",
	Short: "Print one field of an enum value",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := cfg.Properties(rootCtx).GetEnum(args[0], args[1], args[2])
		if err != nil {
			FatalError("%v", err)
		}
		fmt.Println(value)
	},
}

var configPropsEnumSetCmd = &cobra.Command{
	Use:   "set <property> <name> <color>",
	Short: "Update an enum value's color and style",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		schema := cfg.Properties(rootCtx)
		if _, err := schema.SetEnum(args[0], args[1], "color", args[2]); err != nil {
			FatalError("%v", err)
		}
		if cmd.Flags().Changed("style") {
			style, _ := cmd.Flags().GetString("style")
			if _, err := schema.SetEnum(args[0], args[1], "style", style); err != nil {
				FatalError("%v", err)
			}
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Property enum has been updated")
	},
}

var configPropsEnumDeleteCmd = &cobra.Command{
	Use:   "delete <property> <name>",
	Short: "Delete an enum value from a property",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		schema := cfg.Properties(rootCtx)
		if err := schema.DeleteEnum(args[0], args[1]); err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Property enum has been deleted")
	},
}

var configPropsCondCmd = &cobra.Command{
	Use:   "cond_format",
	Short: "Manage conditional formatting of a property",
}

var configPropsCondListCmd = &cobra.Command{
	Use:   "list <property>",
	Short: "List a property's conditional format rules",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		def, ok := cfg.Properties(rootCtx).Find(args[0])
		if !ok {
			FatalError("Property not found")
		}
		if len(def.CondFormat) == 0 {
			FatalError("Property has no conditional formatting")
		}
		for _, rule := range def.CondFormat {
			fmt.Printf("%s %s %s\n", rule.Expr, rule.Color, rule.Style)
		}
	},
}

var configPropsCondAddCmd = &cobra.Command{
	Use:   "add <property> <expr> <color>",
	Short: "Add a conditional format rule to a property",
	Long: `Add a conditional format rule. The expression has the form
"<property> <op> <value>" with ops ==, !=, >, >=, < and <=.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		style, _ := cmd.Flags().GetString("style")

		schema := cfg.Properties(rootCtx)
		rule := config.CondFormat{Expr: args[1], Color: args[2], Style: style}
		if err := schema.AddCondFormat(args[0], rule); err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Property conditional formatting has been added")
	},
}

var configPropsCondClearCmd = &cobra.Command{
	Use:   "clear <property>",
	Short: "Remove all conditional format rules from a property",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		schema := cfg.Properties(rootCtx)
		if err := schema.ClearCondFormat(args[0]); err != nil {
			FatalError("%v", err)
		}
		if err := cfg.SaveProperties(rootCtx, schema); err != nil {
			FatalError("%v", err)
		}
		fmt.Println("Property conditional formatting has been cleared")
	},
}

func parseEnumSpec(spec string) (config.EnumValue, error) {
	parts := strings.SplitN(spec, ",", 3)
	if len(parts) < 2 || parts[0] == "" {
		return config.EnumValue{}, fmt.Errorf("invalid enum value %q, want \"name,color[,style]\"", spec)
	}
	ev := config.EnumValue{Name: parts[0], Color: parts[1]}
	if len(parts) == 3 {
		ev.Style = parts[2]
	}
	return ev, nil
}

func parseCondFormatSpec(spec string) (config.CondFormat, error) {
	parts := strings.SplitN(spec, ",", 3)
	if len(parts) < 2 || parts[0] == "" {
		return config.CondFormat{}, fmt.Errorf("invalid conditional format %q, want \"expr,color[,style]\"", spec)
	}
	rule := config.CondFormat{Expr: parts[0], Color: parts[1]}
	if len(parts) == 3 {
		rule.Style = parts[2]
	}
	return rule, nil
}

func propertyInUse(name string) bool {
	tasks, err := store.ListTasks(rootCtx)
	if err != nil {
		return false
	}
	for _, t := range tasks {
		if t.Properties.Has(name) {
			return true
		}
	}
	return false
}

// migratePropertyKey moves a renamed property's values on every task
// carrying it, in a single store transaction.
func migratePropertyKey(oldName, newName string) {
	tasks, err := store.ListTasks(rootCtx)
	if err != nil {
		FatalError("%v", err)
	}
	var muts []storage.Mutation
	for _, t := range tasks {
		value, ok := t.Properties.Get(oldName)
		if !ok {
			continue
		}
		muts = append(muts,
			&storage.SetProperty{ID: t.ID, Key: newName, Value: value},
			&storage.UnsetProperty{ID: t.ID, Key: oldName},
		)
	}
	if len(muts) == 0 {
		return
	}
	batch := &storage.Batch{
		Message: fmt.Sprintf("Rename property %s to %s", oldName, newName),
		Muts:    muts,
	}
	if err := store.Apply(rootCtx, batch); err != nil {
		FatalError("%v", err)
	}
}

func init() {
	configPropsAddCmd.Flags().String("style", "", "text style (bold, italic, dimmed, strikethrough, underline)")
	configPropsAddCmd.Flags().StringArray("enum", nil, "enum value as \"name,color[,style]\" (repeatable)")
	configPropsAddCmd.Flags().StringArray("cond-format", nil, "conditional format as \"expr,color[,style]\" (repeatable)")
	configPropsDeleteCmd.Flags().BoolP("force", "f", false, "delete even when tasks still carry the property")
	configPropsExportCmd.Flags().Bool("pretty", false, "indent the JSON output")
	configPropsEnumAddCmd.Flags().String("style", "", "text style")
	configPropsEnumSetCmd.Flags().String("style", "", "text style")
	configPropsCondAddCmd.Flags().String("style", "", "text style")

	configPropsEnumCmd.AddCommand(
		configPropsEnumListCmd,
		configPropsEnumAddCmd,
		configPropsEnumGetCmd,
		configPropsEnumSetCmd,
		configPropsEnumDeleteCmd,
	)
	configPropsCondCmd.AddCommand(
		configPropsCondListCmd,
		configPropsCondAddCmd,
		configPropsCondClearCmd,
	)
	configPropsCmd.AddCommand(
		configPropsAddCmd,
		configPropsDeleteCmd,
		configPropsGetCmd,
		configPropsSetCmd,
		configPropsListCmd,
		configPropsImportCmd,
		configPropsExportCmd,
		configPropsResetCmd,
		configPropsEnumCmd,
		configPropsCondCmd,
	)
	configCmd.AddCommand(configPropsCmd)
}
