// Package xdg resolves XDG base directories.
package xdg

import (
	"os"
	"path/filepath"
)

// Dirs holds the user-specific base directories.
type Dirs struct {
	DataHome   string
	ConfigHome string
	StateHome  string
	CacheHome  string
}

// New reads XDG_* variables, falling back to the defaults under $HOME.
func New() *Dirs {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
		if home == "" {
			home = os.TempDir()
		}
	}
	return &Dirs{
		DataHome:   dirFromEnv("XDG_DATA_HOME", filepath.Join(home, ".local", "share")),
		ConfigHome: dirFromEnv("XDG_CONFIG_HOME", filepath.Join(home, ".config")),
		StateHome:  dirFromEnv("XDG_STATE_HOME", filepath.Join(home, ".local", "state")),
		CacheHome:  dirFromEnv("XDG_CACHE_HOME", filepath.Join(home, ".cache")),
	}
}

// relative paths are invalid per the base directory rules and are ignored
func dirFromEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" && filepath.IsAbs(v) {
		return v
	}
	return fallback
}

func (d *Dirs) AppData(app string) string   { return filepath.Join(d.DataHome, app) }
func (d *Dirs) AppConfig(app string) string { return filepath.Join(d.ConfigHome, app) }
func (d *Dirs) AppState(app string) string  { return filepath.Join(d.StateHome, app) }
func (d *Dirs) AppCache(app string) string  { return filepath.Join(d.CacheHome, app) }

// EnsureDir creates path if it is missing.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
