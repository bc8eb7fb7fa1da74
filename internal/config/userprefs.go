package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserPrefs are per-user defaults read from the XDG config directory.
// They never override repository config; they only fill gaps like which
// remote to reconcile against by default.
type UserPrefs struct {
	Color            string `yaml:"color"`
	DefaultRemote    string `yaml:"default-remote"`
	DefaultConnector string `yaml:"default-connector"`
}

// UserPrefsPath returns the location of the per-user config file.
func UserPrefsPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "tasklog", "config.yaml"), nil
}

// LoadUserPrefs reads the per-user config file. Missing or unreadable
// files yield zero-value prefs so startup never fails on them.
func LoadUserPrefs() UserPrefs {
	path, err := UserPrefsPath()
	if err != nil {
		return UserPrefs{}
	}
	return loadUserPrefsFrom(path)
}

func loadUserPrefsFrom(path string) UserPrefs {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from os.UserConfigDir
	if err != nil {
		return UserPrefs{}
	}

	var prefs UserPrefs
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return UserPrefs{}
	}
	return prefs
}
