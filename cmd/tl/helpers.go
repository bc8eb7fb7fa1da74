package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/huh"

	"github.com/tasklog/tasklog/internal/selector"
	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/types"
	"github.com/tasklog/tasklog/internal/ui"
)

// parseSelector expands a task selector ("3", "2..5", "1,4,9") into IDs.
func parseSelector(expr string) []int {
	ids, err := selector.ParseIDs(expr)
	if err != nil {
		FatalError("%v", err)
	}
	return ids
}

// mustTask loads one task or exits with the standard not-found message.
func mustTask(ctx context.Context, id int) *types.Task {
	t, err := store.GetTask(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		FatalError("Task ID %d not found", id)
	}
	if err != nil {
		FatalError("%v", err)
	}
	return t
}

// confirmAction prompts before a destructive step. Forced and
// non-interactive runs proceed without asking.
func confirmAction(title string, force bool) bool {
	if force || !ui.StdinIsTerminal() {
		return true
	}
	confirmed := false
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()
	if err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			WarnError("%v", err)
		}
		return false
	}
	return confirmed
}

// readPipe drains stdin when input is piped in. The second return is
// false when stdin is a terminal.
func readPipe() (string, bool) {
	if ui.StdinIsTerminal() {
		return "", false
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		FatalError("reading stdin: %v", err)
	}
	return string(data), true
}

// formatIDs joins task IDs for summary lines ("1, 2, 5").
func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

// capitalize upper-cases the first rune, for property titles in task
// detail output.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
