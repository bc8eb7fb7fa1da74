package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var colorOverride *bool

// SetColorEnabled forces color on or off for the rest of the process,
// overriding environment and terminal detection. Used by the --no-color
// flag and the color.ui config key.
func SetColorEnabled(enabled bool) {
	colorOverride = &enabled
	if enabled {
		lipgloss.SetColorProfile(termenv.ANSI256)
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// ShouldUseColor reports whether output should carry ANSI styling.
// Precedence: the explicit override, then NO_COLOR, then CLICOLOR_FORCE,
// then CLICOLOR=0, then a TTY check on stdout. NO_COLOR wins over
// CLICOLOR_FORCE.
func ShouldUseColor() bool {
	if colorOverride != nil {
		return *colorOverride
	}
	if termenv.EnvNoColor() {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	return IsTerminal()
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// StdinIsTerminal reports whether stdin is attached to a terminal.
// Interactive prompts are only offered when it is.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// TerminalWidth returns the width of the terminal attached to stdout,
// or 80 when the size cannot be determined.
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
