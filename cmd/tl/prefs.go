package main

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/tasklog/tasklog/internal/config"
)

// prefs layers the per-user preferences: values from the XDG config file
// are the defaults, TASKLOG_* environment variables override them, and
// command-line flags override both (handled at the call sites).
var prefs *viper.Viper

func initPrefs() {
	prefs = viper.New()
	p := config.LoadUserPrefs()
	prefs.SetDefault("color", p.Color)
	prefs.SetDefault("default-remote", p.DefaultRemote)
	prefs.SetDefault("default-connector", p.DefaultConnector)
	prefs.SetEnvPrefix("TASKLOG")
	prefs.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	prefs.AutomaticEnv()
}
