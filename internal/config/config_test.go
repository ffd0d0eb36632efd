package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "tasks.db" {
		t.Errorf("unexpected default db path %q", cfg.DBPath)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("unexpected default flush interval %v", cfg.FlushInterval)
	}
	if cfg.SyncInterval != 3*time.Minute {
		t.Errorf("unexpected default sync interval %v", cfg.SyncInterval)
	}
	if cfg.Remote.BaseURL != "" {
		t.Errorf("expected local mode by default, got %q", cfg.Remote.BaseURL)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
db_path: /var/lib/quadrant/tasks.db
log_path: /var/log/quadrant.log
flush_interval: 10s
sync_interval: 1m
remote:
  base_url: https://tasks.example.com
  token: secret
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/var/lib/quadrant/tasks.db" {
		t.Errorf("db_path not read: %q", cfg.DBPath)
	}
	if cfg.LogPath != "/var/log/quadrant.log" {
		t.Errorf("log_path not read: %q", cfg.LogPath)
	}
	if cfg.FlushInterval != 10*time.Second || cfg.SyncInterval != time.Minute {
		t.Errorf("intervals not read: %v / %v", cfg.FlushInterval, cfg.SyncInterval)
	}
	if cfg.Remote.BaseURL != "https://tasks.example.com" || cfg.Remote.Token != "secret" {
		t.Errorf("remote not read: %+v", cfg.Remote)
	}
	if cfg.Path != path {
		t.Errorf("config path not recorded: %q", cfg.Path)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("db_path: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoadClampsNonPositiveIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("flush_interval: 0s\nsync_interval: 0s\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FlushInterval <= 0 || cfg.SyncInterval <= 0 {
		t.Errorf("non-positive intervals not clamped: %v / %v", cfg.FlushInterval, cfg.SyncInterval)
	}
}

func TestDefaultPathHonorsEnv(t *testing.T) {
	t.Setenv("QD_CONFIG", "/tmp/custom.yaml")
	if got := DefaultPath(); got != "/tmp/custom.yaml" {
		t.Errorf("QD_CONFIG not honored: %q", got)
	}
}
