package main

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestIsNoRepoCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		want bool
	}{
		{"version", "version", true},
		{"help", "help", true},
		{"completion", "completion", true},
		{"shell completion request", cobra.ShellCompRequestCmd, true},
		{"list needs a repo", "list", false},
		{"create needs a repo", "create", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isNoRepoCommand(&cobra.Command{Use: tt.cmd})
			if got != tt.want {
				t.Errorf("isNoRepoCommand(%q) = %v, want %v", tt.cmd, got, tt.want)
			}
		})
	}
}

func TestIsNoRepoCommandWalksParents(t *testing.T) {
	parent := &cobra.Command{Use: "completion"}
	child := &cobra.Command{Use: "bash"}
	parent.AddCommand(child)
	if !isNoRepoCommand(child) {
		t.Error("completion subcommands should not require a repo")
	}
}
