package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.inbox/config.toml.
type Config struct {
	BackendURL  string `toml:"backend_url"`
	RealtimeURL string `toml:"realtime_url"`
	AccessToken string `toml:"access_token"`
	UserID      string `toml:"user_id"`

	DefaultProfile string `toml:"default_profile"`
	DefaultChannel string `toml:"default_channel"`

	ReconnectAttempts int `toml:"reconnect_attempts"`
	ReconnectDelayMS  int `toml:"reconnect_delay_ms"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
// The file carries the access token, hence the 0600 mode.
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
