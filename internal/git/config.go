package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrConfigNotFound is returned when a config key is not set in any scope.
var ErrConfigNotFound = errors.New("config key not found")

// ConfigGet reads a config value, honoring the usual local/global/system
// precedence. A missing key yields ErrConfigNotFound.
func (r *Repo) ConfigGet(ctx context.Context, key string) (string, error) {
	stdout, stderr, code, err := r.runExit(ctx, nil, "config", "--get", key)
	if err != nil {
		return "", fmt.Errorf("git config --get %s: %w", key, err)
	}
	if code == 1 {
		return "", fmt.Errorf("%s: %w", key, ErrConfigNotFound)
	}
	if code != 0 {
		return "", fmt.Errorf("git config --get %s: exit status %d: %s", key, code, strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(stdout), nil
}

// ConfigSet writes a key into the repository-local config.
func (r *Repo) ConfigSet(ctx context.Context, key, value string) error {
	_, err := r.run(ctx, nil, "config", "--local", key, value)
	return err
}

// ConfigUnset removes a key from the repository-local config. Unsetting a
// key that is not set yields ErrConfigNotFound.
func (r *Repo) ConfigUnset(ctx context.Context, key string) error {
	_, stderr, code, err := r.runExit(ctx, nil, "config", "--local", "--unset", key)
	if err != nil {
		return fmt.Errorf("git config --unset %s: %w", key, err)
	}
	switch code {
	case 0:
		return nil
	case 5, 1:
		// 5 is git's "you try to unset an option which does not exist".
		return fmt.Errorf("%s: %w", key, ErrConfigNotFound)
	}
	return fmt.Errorf("git config --unset %s: exit status %d: %s", key, code, strings.TrimSpace(stderr))
}

// ConfigList returns all config entries whose keys start with prefix,
// across all scopes. No matches is not an error.
func (r *Repo) ConfigList(ctx context.Context, prefix string) (map[string]string, error) {
	stdout, stderr, code, err := r.runExit(ctx, nil, "config", "--get-regexp", "^"+strings.ReplaceAll(prefix, ".", `\.`))
	if err != nil {
		return nil, fmt.Errorf("git config --get-regexp: %w", err)
	}
	if code == 1 {
		return map[string]string{}, nil
	}
	if code != 0 {
		return nil, fmt.Errorf("git config --get-regexp: exit status %d: %s", code, strings.TrimSpace(stderr))
	}
	values := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		values[key] = value
	}
	return values, nil
}
