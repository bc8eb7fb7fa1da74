// Package ui provides terminal styling for tl command output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// HeaderStyle for section headers - bold with accent color
var HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// RenderWarn renders text with warning (yellow) styling
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderHeader renders a section header in bold accent color
func RenderHeader(s string) string {
	return HeaderStyle.Render(s)
}

// ansiByName maps the color names accepted in status and property
// definitions to ANSI palette indexes. The light variants are the bright
// half of the palette.
var ansiByName = map[string]string{
	"black":        "0",
	"red":          "1",
	"green":        "2",
	"yellow":       "3",
	"blue":         "4",
	"purple":       "5",
	"magenta":      "5",
	"cyan":         "6",
	"white":        "7",
	"darkgray":     "8",
	"darkgrey":     "8",
	"lightred":     "9",
	"lightgreen":   "10",
	"lightyellow":  "11",
	"lightblue":    "12",
	"lightpurple":  "13",
	"lightmagenta": "13",
	"lightcyan":    "14",
	"lightgray":    "15",
	"lightgrey":    "15",
}

// ColorByName resolves a configured color name to a terminal color.
// Accepts the named palette (case-insensitive), 256-color indexes
// ("214") and hex values ("#d73a4a"). Anything else, including the
// conventional "Default", maps to the terminal's default color.
func ColorByName(name string) lipgloss.TerminalColor {
	name = strings.TrimSpace(name)
	if idx, ok := ansiByName[strings.ToLower(name)]; ok {
		return lipgloss.Color(idx)
	}
	if hex, ok := strings.CutPrefix(name, "#"); ok {
		if len(hex) == 6 {
			if _, err := strconv.ParseUint(hex, 16, 32); err == nil {
				return lipgloss.Color(name)
			}
		}
		return lipgloss.NoColor{}
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 0 && n <= 255 {
		return lipgloss.Color(name)
	}
	return lipgloss.NoColor{}
}

// StyleFor builds a style from a configured color and a comma-separated
// style list (bold, dimmed, italic, strikethrough, underline). Unknown
// style entries are ignored.
func StyleFor(color, style string) lipgloss.Style {
	st := lipgloss.NewStyle().Foreground(ColorByName(color))
	for _, name := range strings.Split(style, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "bold":
			st = st.Bold(true)
		case "dimmed":
			st = st.Faint(true)
		case "italic":
			st = st.Italic(true)
		case "strikethrough":
			st = st.Strikethrough(true)
		case "underline":
			st = st.Underline(true)
		}
	}
	return st
}

// Stylize renders text with a configured color and style, or returns it
// unchanged when color output is disabled.
func Stylize(text, color, style string) string {
	if !ShouldUseColor() {
		return text
	}
	return StyleFor(color, style).Render(text)
}
