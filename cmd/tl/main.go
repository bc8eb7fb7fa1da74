package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/config"
	"github.com/tasklog/tasklog/internal/git"
	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/storage/gitstore"
	"github.com/tasklog/tasklog/internal/telemetry"
	"github.com/tasklog/tasklog/internal/tracker"
	"github.com/tasklog/tasklog/internal/ui"

	// Connector backends register themselves with the tracker registry.
	_ "github.com/tasklog/tasklog/internal/github"
	_ "github.com/tasklog/tasklog/internal/gitlab"
	_ "github.com/tasklog/tasklog/internal/jira"
	_ "github.com/tasklog/tasklog/internal/redmine"
)

var (
	noColor       bool
	remoteName    string
	connectorKind string

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	repo *git.Repo
	gs   *gitstore.Store
	cfg  *config.Config

	// store wraps gs with telemetry; all task and config operations go
	// through it so instrumentation sees every call.
	store storage.Store
)

// Command groups for organized help output.
const (
	GroupTasks = "tasks"
	GroupViews = "views"
	GroupSync  = "sync"
	GroupSetup = "setup"
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&remoteName, "remote", "", "Git remote to reconcile against (default: the only matching remote)")
	rootCmd.PersistentFlags().StringVar(&connectorKind, "connector", "", "Tracker backend to use (github, gitlab, jira, redmine)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupTasks, Title: "Working With Tasks:"},
		&cobra.Group{ID: GroupViews, Title: "Views & Reports:"},
		&cobra.Group{ID: GroupSync, Title: "Sync & Data:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup & Configuration:"},
	)
}

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "tl - Git-native task tracker",
	Long:  `A local-first task tracker that lives inside your git repository. Tasks are stored as git objects under their own ref, travel with clones and fetches, and reconcile against GitHub, GitLab, Jira and Redmine.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("tl version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		initPrefs()
		if err := telemetry.Init(rootCtx, "tl", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}

		if isNoRepoCommand(cmd) {
			applyColorPrefs()
			return
		}

		openStore()
		applyColorSetting()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(context.Background())
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// isNoRepoCommand reports whether cmd works without a git repository.
func isNoRepoCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// openStore opens the enclosing git repository and the task store under
// the configured ref. The ref is resolved from git config first, then the
// committed .tasklog.toml, then the built-in default; the config layer
// itself reads through the store, so the ref has to be resolved before the
// store exists.
func openStore() {
	r, err := git.Open(".")
	if err != nil {
		FatalErrorWithHint(err.Error(), "tl works inside a git repository")
	}
	repo = r

	var local *config.LocalFile
	if wd := repo.WorkDir(); wd != "" {
		local, err = config.LoadLocalFile(wd)
		if err != nil {
			WarnError("reading %s: %v", config.LocalFileName, err)
		}
	}

	ref := gitstore.DefaultRef
	if value, err := repo.ConfigGet(rootCtx, config.KeyRef); err == nil && value != "" {
		ref = config.NormalizeRef(value)
	} else if local != nil && local.Ref != "" {
		ref = config.NormalizeRef(local.Ref)
	}

	gs = gitstore.Open(repo, ref)
	store = telemetry.WrapStore(gs)
	cfg = config.New(store, local)

	setup := tracker.Setup{Config: store}
	for _, kind := range tracker.List() {
		if tr, err := tracker.New(kind, setup); err == nil {
			cfg.RegisterKeys(tr.ConfigKeys()...)
		}
	}
}

// applyColorSetting resolves whether output gets ANSI styling. Precedence:
// the --no-color flag, then the repository's color.ui git config, then the
// per-user preference. When none of them decide, terminal detection does.
func applyColorSetting() {
	if noColor {
		ui.SetColorEnabled(false)
		return
	}
	if value, err := store.GetConfig(rootCtx, config.KeyColorUI); err == nil {
		if strings.EqualFold(value, "always") {
			ui.SetColorEnabled(true)
			return
		}
		if !cfg.ColorUI(rootCtx) {
			ui.SetColorEnabled(false)
			return
		}
	}
	applyColorPrefs()
}

func applyColorPrefs() {
	if noColor {
		ui.SetColorEnabled(false)
		return
	}
	switch strings.ToLower(prefs.GetString("color")) {
	case "always":
		ui.SetColorEnabled(true)
	case "never":
		ui.SetColorEnabled(false)
	}
}

func main() {
	// Credentials like GITHUB_TOKEN may live in a .env next to the repo.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
