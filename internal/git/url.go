package git

import (
	"fmt"
	"strings"
)

// RemoteParts is a remote URL broken into the pieces trackers match on.
// Owner may contain slashes for hosts with nested namespaces.
type RemoteParts struct {
	Host  string
	Owner string
	Repo  string
}

// Path returns "owner/repo", the project path trackers address.
func (p RemoteParts) Path() string {
	return p.Owner + "/" + p.Repo
}

// ParseRemoteURL extracts host, owner and repo from a git remote URL.
// Supports the common transport forms:
//   - git@host:owner/repo.git
//   - ssh://git@host[:port]/owner/repo.git
//   - https://host/owner/repo.git
//   - https://host/owner/repo
//   - git://host/owner/repo.git
func ParseRemoteURL(remoteURL string) (RemoteParts, error) {
	raw := strings.TrimSpace(remoteURL)
	rest := raw

	// Handle scp-like SSH format: git@host:owner/repo.git
	if !strings.Contains(rest, "://") {
		if at := strings.Index(rest, "@"); at != -1 {
			rest = rest[at+1:]
		}
		host, path, ok := strings.Cut(rest, ":")
		if !ok {
			return RemoteParts{}, fmt.Errorf("unrecognized remote URL: %s", raw)
		}
		return splitRemotePath(raw, host, path)
	}

	// Handle URL formats: scheme://[user@]host[:port]/owner/repo.git
	_, rest, _ = strings.Cut(rest, "://")
	if at := strings.Index(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	host, path, ok := strings.Cut(rest, "/")
	if !ok {
		return RemoteParts{}, fmt.Errorf("unrecognized remote URL: %s", raw)
	}
	// Drop an explicit port; trackers match on the bare host name.
	if colon := strings.Index(host, ":"); colon != -1 {
		host = host[:colon]
	}
	return splitRemotePath(raw, host, path)
}

func splitRemotePath(raw, host, path string) (RemoteParts, error) {
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	slash := strings.LastIndex(path, "/")
	if host == "" || slash <= 0 || slash == len(path)-1 {
		return RemoteParts{}, fmt.Errorf("unrecognized remote URL: %s", raw)
	}
	return RemoteParts{Host: host, Owner: path[:slash], Repo: path[slash+1:]}, nil
}
