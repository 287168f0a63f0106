package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/recobro/collections-engine/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[database]
path = "/tmp/collections-test.db"

[aging]
schedule = ""
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/collections-test.db" {
		t.Errorf("Database path = %q", cfg.Database.Path)
	}
	if cfg.Aging.Schedule != "" {
		t.Errorf("Schedule = %q, want empty (scheduler disabled)", cfg.Aging.Schedule)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.ReadTimeoutSeconds != 15 {
		t.Errorf("ReadTimeoutSeconds = %d, want the default 15", cfg.Server.ReadTimeoutSeconds)
	}
}

func TestLoad_RejectsBadPort(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 700000
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("out-of-range port accepted")
	}
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestDefault_IsValidOutOfTheBox(t *testing.T) {
	cfg := config.Default()
	if cfg.Server.Port != 8080 || cfg.Database.Path == "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
