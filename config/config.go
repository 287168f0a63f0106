/*
Package config loads server configuration from a TOML file.

PURPOSE:
  One place for everything the server needs at startup: listen address,
  database path, CORS origins, and the daily aging schedule. Flags in
  cmd/server override file values so local runs stay a one-liner.

FILE FORMAT (TOML):
  [server]
  port = 8080
  read_timeout_seconds = 15
  write_timeout_seconds = 15

  [database]
  path = "./data/collections.db"

  [cors]
  allowed_origins = ["http://localhost:5173"]

  [aging]
  # cron expression for the daily due-amount recalculation
  schedule = "0 6 * * *"

SEE ALSO:
  - cmd/server/main.go: flag overrides and wiring
  - api/scheduler.go: consumer of the aging schedule
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	CORS     CORSConfig     `toml:"cors"`
	Aging    AgingConfig    `toml:"aging"`
}

type ServerConfig struct {
	Port                int `toml:"port"`
	ReadTimeoutSeconds  int `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `toml:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file; ":memory:" for in-memory.
	Path string `toml:"path"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type AgingConfig struct {
	// Schedule is a standard 5-field cron expression. Empty disables the
	// scheduled run; aging can still be triggered over the API.
	Schedule string `toml:"schedule"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                8080,
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
		},
		Database: DatabaseConfig{Path: "collections.db"},
		CORS:     CORSConfig{AllowedOrigins: []string{"*"}},
		Aging:    AgingConfig{Schedule: "0 6 * * *"},
	}
}

// Load reads a TOML file over the defaults. A missing file is an error;
// callers that want pure defaults pass an empty path and use Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}
