package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the server settings. Values come from an optional YAML
// file, then environment variables, then command line flags.
type Config struct {
	Addr        string `yaml:"addr"`
	LogLevel    string `yaml:"log_level"`
	DownloadDir string `yaml:"download_dir"`

	// Autostart starts the engine at boot instead of waiting for
	// POST /api/session/start. Only safe when the registry is complete
	// at boot, otherwise stored assignments are purged.
	Autostart bool `yaml:"autostart"`

	Store      StoreConfig      `yaml:"store"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type StoreConfig struct {
	// Driver is "duckdb", "sqlite" or "memory".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type ClickHouseConfig struct {
	Host               string `yaml:"host"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Database           string `yaml:"database"`
	Table              string `yaml:"table"`
	Secure             bool   `yaml:"secure"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		LogLevel:    "info",
		DownloadDir: "./downloads",
		Store: StoreConfig{
			Driver: DriverDuckDB,
			Path:   "./labeltree.db",
		},
		ClickHouse: ClickHouseConfig{
			User:     "default",
			Database: "default",
			Table:    "label_activity",
		},
	}
}

// LoadConfigFile decodes path on top of cfg. Keys missing from the file
// keep their current values.
func LoadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables that are set.
// DUCKDB_PATH and the CLICKHOUSE_* names are kept for existing setups.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}
	setBool := func(dst *bool, key string) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	setString(&cfg.Addr, "LABELTREE_ADDR")
	setString(&cfg.LogLevel, "LABELTREE_LOG_LEVEL")
	setString(&cfg.DownloadDir, "LABELTREE_DOWNLOAD_DIR")
	setString(&cfg.Store.Driver, "LABELTREE_STORE")
	setString(&cfg.Store.Path, "LABELTREE_DB_PATH", "DUCKDB_PATH")

	setString(&cfg.ClickHouse.Host, "CLICKHOUSE_HOST")
	setString(&cfg.ClickHouse.User, "CLICKHOUSE_USER")
	setString(&cfg.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	setString(&cfg.ClickHouse.Database, "CLICKHOUSE_DATABASE")
	setString(&cfg.ClickHouse.Table, "CLICKHOUSE_ACTIVITY_TABLE")

	if err := setBool(&cfg.Autostart, "LABELTREE_AUTOSTART"); err != nil {
		return err
	}
	return setBool(&cfg.ClickHouse.Secure, "CLICKHOUSE_SECURE")
}

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverDuckDB, DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required for %s", c.Store.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.DownloadDir) == "" {
		return fmt.Errorf("download dir is required")
	}
	if c.ClickHouse.Host != "" && c.ClickHouse.Table == "" {
		return fmt.Errorf("clickhouse table is required")
	}
	return nil
}
