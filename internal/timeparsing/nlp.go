package timeparsing

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// absoluteLayouts are tried in order before natural language kicks in, so
// an exact date is never reinterpreted as a casual phrase.
var absoluteLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{"2006-01-02", true},
	{"2006-01-02 15:04", false},
	{"2006-01-02 15:04:05", false},
	{time.RFC3339, false},
}

var nlParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseNaturalLanguage parses casual date expressions ("tomorrow",
// "next monday at 2pm", "3 days ago") relative to now.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date expression")
	}
	r, err := nlParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
	}
	return r.Time, nil
}

// ParseRelativeTime resolves a date expression through the layered
// parsers: compact duration first, then absolute timestamps, then
// natural language. Date-only input resolves to local midnight.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	for _, l := range absoluteLayouts {
		if t, err := time.ParseInLocation(l.layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return ParseNaturalLanguage(s, now)
}

// EndOfDay extends a midnight timestamp to the last instant of its
// calendar day. Timestamps carrying a clock reading pass through, so an
// inclusive "until 2026-08-25" bound covers the whole day while
// "until tomorrow 9am" stays exact.
func EndOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t
}
