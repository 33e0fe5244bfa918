package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wadesk/config.toml.
type Config struct {
	// Port the HTTP/websocket server listens on.
	Port int `toml:"port"`
	// HistoryLimit bounds the recent-message window per conversation.
	HistoryLimit int `toml:"history_limit"`
	// ActivityWindowHours is the trailing window a read conversation must
	// have activity within to stay on the dashboard.
	ActivityWindowHours int `toml:"activity_window_hours"`
	// DataDir overrides the default ~/.wadesk data directory.
	DataDir string `toml:"data_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                3000,
		HistoryLimit:        3,
		ActivityWindowHours: 24,
	}
}

// Load reads config from the given path, filling unset fields with
// defaults. A missing file is not an error: the daemon must come up on a
// fresh machine, so it yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), err
	}
	if cfg.Port <= 0 {
		cfg.Port = 3000
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 3
	}
	if cfg.ActivityWindowHours <= 0 {
		cfg.ActivityWindowHours = 24
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
