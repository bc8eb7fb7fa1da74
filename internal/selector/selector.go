// Package selector parses the task ID selector expressions accepted on the
// command line: single IDs, comma-separated lists, and inclusive ranges,
// freely combined ("7", "1,4,6", "2..5,10,12"). It also resolves status
// filter tokens against the configured status table.
package selector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseIDs expands a selector expression into task IDs: the union of all
// singles and inclusive ranges, deduplicated and sorted ascending. A range
// with inverted bounds is rejected.
func ParseIDs(expr string) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if low, high, ok := strings.Cut(part, ".."); ok {
			from, err := parseID(low)
			if err != nil {
				return nil, fmt.Errorf("invalid ID range %q: %v", part, err)
			}
			to, err := parseID(high)
			if err != nil {
				return nil, fmt.Errorf("invalid ID range %q: %v", part, err)
			}
			if from > to {
				return nil, fmt.Errorf("invalid ID range %q: bounds are inverted", part)
			}
			for id := from; id <= to; id++ {
				seen[id] = true
			}
			continue
		}
		id, err := parseID(part)
		if err != nil {
			return nil, err
		}
		seen[id] = true
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func parseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task ID %q", s)
	}
	return id, nil
}

// StatusTable is the status-definition lookup ResolveStatuses works
// against. *config.StatusSchema implements it.
type StatusTable interface {
	FullName(token string) string
	Valid(name string) bool
}

// ResolveStatuses expands comma-separated status filter tokens into
// canonical status names. A token matches a full name or a configured
// shortcut, case-sensitively; unknown tokens are rejected.
func ResolveStatuses(expr string, table StatusTable) ([]string, error) {
	var names []string
	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		name := table.FullName(token)
		if !table.Valid(name) {
			return nil, fmt.Errorf("unknown status %s", token)
		}
		names = append(names, name)
	}
	return names, nil
}
