package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// editText opens the user's editor on a temp file seeded with initial and
// returns the saved content with trailing newlines stripped. The editor is
// resolved the way git resolves it and may carry arguments, so it runs
// through the shell.
func editText(ctx context.Context, initial string) (string, error) {
	f, err := os.CreateTemp("", "tl-edit-*.md")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(initial); err != nil {
		f.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}

	editor := repo.Editor(ctx)
	cmd := exec.CommandContext(ctx, "sh", "-c", editor+` "$1"`, "sh", path) // #nosec G204 - editor comes from the user's own config
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %s: %w", editor, err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is our own temp file
	if err != nil {
		return "", fmt.Errorf("reading edited file: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
