package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/git"
	"github.com/tasklog/tasklog/internal/storage"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupSetup,
	Short:   "Read and write tasklog configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := cfg.Get(rootCtx, args[0])
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				FatalError("%s is not set", args[0])
			}
			FatalError("%v", err)
		}
		if args[0] == config.KeyRef && value == "" {
			value = gs.Ref()
		}
		fmt.Println(value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, value := args[0], args[1]
		if key == config.KeyRef {
			moveRef, _ := cmd.Flags().GetBool("move")
			deleteOld, _ := cmd.Flags().GetBool("delete-old")
			runConfigSetRef(value, moveRef, deleteOld)
		} else if err := cfg.Set(rootCtx, key, value); err != nil {
			FatalError("%v", err)
		}
		fmt.Printf("%s has been updated\n", key)
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		if !cfg.IsKnownKey(key) {
			FatalError("unknown parameter: %s", key)
		}
		if err := store.UnsetConfig(rootCtx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			FatalError("%v", err)
		}
		fmt.Printf("%s has been updated\n", key)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configuration keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, key := range cfg.KnownKeys() {
			fmt.Println(key)
		}
	},
}

func init() {
	configSetCmd.Flags().Bool("move", false, "carry the task history over to the new ref")
	configSetCmd.Flags().Bool("delete-old", false, "delete the old ref after moving (requires --move)")
	configCmd.AddCommand(configGetCmd, configSetCmd, configUnsetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigSetRef repoints the task ref. The new name is recorded in git
// config; --move also carries the task history over, and --delete-old
// drops the old ref afterwards.
func runConfigSetRef(value string, moveRef, deleteOld bool) {
	if deleteOld && !moveRef {
		FatalError("--delete-old requires --move")
	}
	newRef := config.NormalizeRef(value)

	switch {
	case moveRef && deleteOld:
		if err := gs.MoveRef(rootCtx, newRef); err != nil {
			FatalError("%v", err)
		}
	case moveRef:
		sha, err := repo.ResolveRef(rootCtx, gs.Ref())
		if errors.Is(err, git.ErrRefNotFound) {
			break // no history to carry over yet
		}
		if err != nil {
			FatalError("%v", err)
		}
		if err := repo.UpdateRefCAS(rootCtx, newRef, sha, ""); err != nil {
			if errors.Is(err, git.ErrRefConflict) {
				FatalError("ref %s already exists", newRef)
			}
			FatalError("%v", err)
		}
	}

	if err := store.SetConfig(rootCtx, config.KeyRef, newRef); err != nil {
		FatalError("%v", err)
	}
}
