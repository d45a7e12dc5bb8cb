package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		BackendURL:     "https://api.example.com",
		RealtimeURL:    "wss://rt.example.com",
		AccessToken:    "tok-123",
		UserID:         "42",
		DefaultProfile: "work",
		DefaultChannel: "Email",
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.BackendURL != "https://api.example.com" {
		t.Errorf("BackendURL = %q", loaded.BackendURL)
	}
	if loaded.AccessToken != "tok-123" {
		t.Errorf("AccessToken = %q", loaded.AccessToken)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.DefaultChannel != "Email" {
		t.Errorf("DefaultChannel = %q, want %q", loaded.DefaultChannel, "Email")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{AccessToken: "secret"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
