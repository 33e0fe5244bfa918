// Package session owns the on-disk layout of the wadesk data directory:
// the whatsmeow credential store, the app-owned metadata database, logs and
// the daemon lock all live under one directory.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wadesk unless overridden.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wadesk")
}

// Paths resolves every file location from a single data directory.
type Paths struct {
	DataDir string
}

// Resolve returns Paths for the given data dir, defaulting to BaseDir.
func Resolve(dataDir string) Paths {
	if dataDir == "" {
		dataDir = BaseDir()
	}
	return Paths{DataDir: dataDir}
}

// MetadataDB returns the app-owned metadata database path.
func (p Paths) MetadataDB() string {
	return filepath.Join(p.DataDir, "wadesk.db")
}

// SessionDB returns the whatsmeow credential store path.
func (p Paths) SessionDB() string {
	return filepath.Join(p.DataDir, "session.db")
}

// LogFile returns the daemon log file path.
func (p Paths) LogFile() string {
	return filepath.Join(p.DataDir, "logs", "wadeskd.log")
}

// ConfigFile returns the config file path.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.DataDir, "config.toml")
}

// Ensure creates the data directory tree with owner-only permissions.
func (p Paths) Ensure() error {
	for _, d := range []string{p.DataDir, filepath.Dir(p.LogFile())} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
