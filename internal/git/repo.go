// Package git shells out to the git binary for every repository interaction:
// object plumbing (hash-object, mktree, commit-tree, cat-file), ref updates,
// config access, and remote discovery. No libgit bindings.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Repo is a handle on one git repository. All methods run git with the
// repository's working directory, so a Repo works from any subdirectory.
type Repo struct {
	workDir string
	gitDir  string
}

// Open locates the repository containing dir. In a normal repo the git dir
// is ".git"; in a worktree it is resolved through rev-parse.
func Open(dir string) (*Repo, error) {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	gitDir := strings.TrimSpace(string(output))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(dir, gitDir)
	}
	return &Repo{workDir: dir, gitDir: gitDir}, nil
}

// WorkDir returns the directory the repo was opened from.
func (r *Repo) WorkDir() string { return r.workDir }

// GitDir returns the resolved .git directory path.
func (r *Repo) GitDir() string { return r.gitDir }

// TopLevel returns the working tree root.
func (r *Repo) TopLevel(ctx context.Context) (string, error) {
	return r.run(ctx, nil, "rev-parse", "--show-toplevel")
}

// run executes git with args, returning trimmed stdout. stderr is folded
// into the returned error.
func (r *Repo) run(ctx context.Context, stdin []byte, args ...string) (string, error) {
	stdout, stderr, code, err := r.runExit(ctx, stdin, args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	if code != 0 {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			return "", fmt.Errorf("git %s: exit status %d", args[0], code)
		}
		return "", fmt.Errorf("git %s: exit status %d: %s", args[0], code, msg)
	}
	return strings.TrimSpace(stdout), nil
}

// runExit executes git and reports the exit code instead of turning it into
// an error. err is non-nil only when the process could not run at all.
// Several git subcommands use exit codes as answers (rev-parse --verify,
// config --get), so callers need the code.
func (r *Repo) runExit(ctx context.Context, stdin []byte, args ...string) (stdout, stderr string, code int, err error) {
	var out, errbuf bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.workDir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	cmd.Stdout = &out
	cmd.Stderr = &errbuf
	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return out.String(), errbuf.String(), exitErr.ExitCode(), nil
		}
		return "", "", -1, runErr
	}
	return out.String(), errbuf.String(), 0, nil
}

// AuthorName returns the configured committer identity (user.name), falling
// back to $USER. Empty when neither is available.
func (r *Repo) AuthorName(ctx context.Context) string {
	if name, err := r.ConfigGet(ctx, "user.name"); err == nil && name != "" {
		return name
	}
	return os.Getenv("USER")
}

// Editor returns the editor to use for interactive text editing, resolved
// the way git itself does: GIT_EDITOR, core.editor, VISUAL, EDITOR, vi.
func (r *Repo) Editor(ctx context.Context) string {
	if e := os.Getenv("GIT_EDITOR"); e != "" {
		return e
	}
	if e, err := r.ConfigGet(ctx, "core.editor"); err == nil && e != "" {
		return e
	}
	if e := os.Getenv("VISUAL"); e != "" {
		return e
	}
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "vi"
}

// Remote is one configured git remote.
type Remote struct {
	Name string
	URL  string
}

// Remotes lists the repository's remotes with their fetch URLs, sorted by
// name.
func (r *Repo) Remotes(ctx context.Context) ([]Remote, error) {
	out, err := r.run(ctx, nil, "remote", "-v")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasSuffix(line, "(fetch)") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		seen[fields[0]] = fields[1]
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	remotes := make([]Remote, 0, len(names))
	for _, name := range names {
		remotes = append(remotes, Remote{Name: name, URL: seen[name]})
	}
	return remotes, nil
}

// RefWatchPaths returns the filesystem paths whose modification signals a
// change of ref: the loose ref file's directory and packed-refs.
func (r *Repo) RefWatchPaths(ref string) []string {
	return []string{
		filepath.Dir(filepath.Join(r.gitDir, filepath.FromSlash(ref))),
		filepath.Join(r.gitDir, "packed-refs"),
	}
}
