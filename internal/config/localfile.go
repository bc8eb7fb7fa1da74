package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LocalFileName is the repo-committed team defaults file, looked up at the
// worktree root.
const LocalFileName = ".tasklog.toml"

// LocalFile carries team-wide defaults shared through the repository
// itself. Git config still overrides every field.
type LocalFile struct {
	Ref      string   `toml:"ref,omitempty"`
	Columns  []string `toml:"columns,omitempty"`
	Sort     string   `toml:"sort,omitempty"`
	Statuses []Status `toml:"statuses,omitempty"`
}

// LoadLocalFile reads .tasklog.toml from dir if it exists. A missing file
// is not an error and yields a nil LocalFile.
func LoadLocalFile(dir string) (*LocalFile, error) {
	path := filepath.Join(dir, LocalFileName)
	data, err := os.ReadFile(path) // #nosec G304 - path is constructed from the worktree root
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", LocalFileName, err)
	}

	var local LocalFile
	if err := toml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("parse %s: %w", LocalFileName, err)
	}
	return &local, nil
}
