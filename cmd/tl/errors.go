package main

import (
	"fmt"
	"os"

	"github.com/tasklog/tasklog/internal/ui"
)

// FatalError prints an error message to stderr and exits with status 1.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("Error:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// FatalErrorWithHint prints an error with a follow-up hint and exits with
// status 1. The hint tells the user what to try next.
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("Error:"), message)
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderMuted("Hint:"), hint)
	os.Exit(1)
}

// WarnError prints a warning to stderr and keeps going.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn("Warning:"), fmt.Sprintf(format, args...))
}
