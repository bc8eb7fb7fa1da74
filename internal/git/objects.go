package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrRefNotFound is returned when a ref does not exist in the repository.
	ErrRefNotFound = errors.New("ref not found")

	// ErrRefConflict is returned when a compare-and-swap ref update loses to
	// a concurrent writer.
	ErrRefConflict = errors.New("ref update conflicted")
)

// TreeEntry is one line of ls-tree output.
type TreeEntry struct {
	Mode string
	Type string
	SHA  string
	Name string
}

// ResolveRef resolves ref to a commit SHA. A missing ref yields ErrRefNotFound.
func (r *Repo) ResolveRef(ctx context.Context, ref string) (string, error) {
	stdout, stderr, code, err := r.runExit(ctx, nil, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("git rev-parse %s: %w", ref, err)
	}
	if code == 1 {
		return "", fmt.Errorf("%s: %w", ref, ErrRefNotFound)
	}
	if code != 0 {
		return "", fmt.Errorf("git rev-parse %s: exit status %d: %s", ref, code, strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(stdout), nil
}

// RefExists reports whether ref resolves to a commit.
func (r *Repo) RefExists(ctx context.Context, ref string) (bool, error) {
	_, err := r.ResolveRef(ctx, ref)
	if errors.Is(err, ErrRefNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TreeOf returns the tree SHA of a commit.
func (r *Repo) TreeOf(ctx context.Context, commit string) (string, error) {
	return r.run(ctx, nil, "rev-parse", commit+"^{tree}")
}

// ListTree lists the entries of a tree object. Entries are returned in git's
// own order (byte-sorted by name).
func (r *Repo) ListTree(ctx context.Context, tree string) ([]TreeEntry, error) {
	out, err := r.run(ctx, nil, "ls-tree", tree)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var entries []TreeEntry
	for _, line := range strings.Split(out, "\n") {
		// <mode> SP <type> SP <sha> TAB <name>
		meta, name, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("git ls-tree: malformed line %q", line)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, fmt.Errorf("git ls-tree: malformed line %q", line)
		}
		entries = append(entries, TreeEntry{Mode: fields[0], Type: fields[1], SHA: fields[2], Name: name})
	}
	return entries, nil
}

// ReadBlob returns the contents of a single blob.
func (r *Repo) ReadBlob(ctx context.Context, sha string) ([]byte, error) {
	blobs, err := r.ReadBlobs(ctx, []string{sha})
	if err != nil {
		return nil, err
	}
	return blobs[sha], nil
}

// ReadBlobs reads many blobs in one cat-file --batch invocation and returns
// them keyed by SHA.
func (r *Repo) ReadBlobs(ctx context.Context, shas []string) (map[string][]byte, error) {
	blobs := make(map[string][]byte, len(shas))
	if len(shas) == 0 {
		return blobs, nil
	}
	var stdin bytes.Buffer
	for _, sha := range shas {
		stdin.WriteString(sha)
		stdin.WriteByte('\n')
	}
	stdout, stderr, code, err := r.runExit(ctx, stdin.Bytes(), "cat-file", "--batch")
	if err != nil {
		return nil, fmt.Errorf("git cat-file: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("git cat-file: exit status %d: %s", code, strings.TrimSpace(stderr))
	}
	if err := parseCatFileBatch([]byte(stdout), blobs); err != nil {
		return nil, err
	}
	return blobs, nil
}

// parseCatFileBatch decodes cat-file --batch output: for each object a header
// line "<sha> <type> <size>" followed by <size> bytes of content and a
// newline. Missing objects report "<sha> missing".
func parseCatFileBatch(out []byte, blobs map[string][]byte) error {
	rest := out
	for len(rest) > 0 {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			if len(bytes.TrimSpace(rest)) == 0 {
				return nil
			}
			return fmt.Errorf("git cat-file: truncated header %q", rest)
		}
		header := string(rest[:nl])
		rest = rest[nl+1:]
		fields := strings.Fields(header)
		if len(fields) == 2 && fields[1] == "missing" {
			return fmt.Errorf("git cat-file: object %s missing", fields[0])
		}
		if len(fields) != 3 {
			return fmt.Errorf("git cat-file: malformed header %q", header)
		}
		size, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("git cat-file: malformed size in %q", header)
		}
		if len(rest) < size+1 {
			return fmt.Errorf("git cat-file: truncated object %s", fields[0])
		}
		content := make([]byte, size)
		copy(content, rest[:size])
		blobs[fields[0]] = content
		rest = rest[size+1:]
	}
	return nil
}

// HashBlob writes content into the object database and returns its SHA.
func (r *Repo) HashBlob(ctx context.Context, content []byte) (string, error) {
	return r.run(ctx, content, "hash-object", "-w", "--stdin")
}

// MakeTree builds a tree object from entries and returns its SHA. Entries
// need not be pre-sorted.
func (r *Repo) MakeTree(ctx context.Context, entries []TreeEntry) (string, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	var stdin bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&stdin, "%s %s %s\t%s\n", e.Mode, e.Type, e.SHA, e.Name)
	}
	return r.run(ctx, stdin.Bytes(), "mktree")
}

// CommitTree creates a commit object for tree with the given message.
// parent may be empty for a root commit.
func (r *Repo) CommitTree(ctx context.Context, tree, parent, message string) (string, error) {
	args := []string{"commit-tree", tree}
	if parent != "" {
		args = append(args, "-p", parent)
	}
	args = append(args, "-m", message)
	return r.run(ctx, nil, args...)
}

// UpdateRefCAS points ref at newSHA only if it currently equals oldSHA.
// An empty oldSHA asserts the ref must not exist yet. A lost race is
// reported as ErrRefConflict.
func (r *Repo) UpdateRefCAS(ctx context.Context, ref, newSHA, oldSHA string) error {
	_, stderr, code, err := r.runExit(ctx, nil, "update-ref", ref, newSHA, oldSHA)
	if err != nil {
		return fmt.Errorf("git update-ref %s: %w", ref, err)
	}
	if code == 0 {
		return nil
	}
	// update-ref does not distinguish a stale expected value from other
	// failures in its exit code, so re-read the ref to find out.
	current, rerr := r.ResolveRef(ctx, ref)
	switch {
	case oldSHA == "" && rerr == nil:
		return fmt.Errorf("%s: %w", ref, ErrRefConflict)
	case oldSHA != "" && rerr == nil && current != oldSHA:
		return fmt.Errorf("%s: %w", ref, ErrRefConflict)
	case oldSHA != "" && errors.Is(rerr, ErrRefNotFound):
		return fmt.Errorf("%s: %w", ref, ErrRefConflict)
	}
	return fmt.Errorf("git update-ref %s: exit status %d: %s", ref, code, strings.TrimSpace(stderr))
}

// DeleteRef removes ref. Deleting a missing ref is an error.
func (r *Repo) DeleteRef(ctx context.Context, ref string) error {
	_, err := r.run(ctx, nil, "update-ref", "-d", ref)
	return err
}
