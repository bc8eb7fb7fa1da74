package ui

import (
	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders markdown text using glamour.
// Returns the rendered markdown or the original text if rendering fails.
// Word wraps at terminal width (or 80 columns if width can't be detected).
func RenderMarkdown(markdown string) string {
	// Skip glamour if colors are disabled
	if !ShouldUseColor() {
		return markdown
	}

	// Detect terminal width for word wrap
	// Cap at 100 chars for readability - wider lines cause eye-tracking fatigue
	const maxReadableWidth = 100
	wrapWidth := TerminalWidth()
	if wrapWidth > maxReadableWidth {
		wrapWidth = maxReadableWidth
	}

	// Create renderer with auto-detected style (respects terminal light/dark mode)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		// fallback to raw markdown on error
		return markdown
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		// fallback to raw markdown on error
		return markdown
	}

	return rendered
}
