package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labeltree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
download_dir: /from-file
store:
  driver: sqlite
  path: /var/lib/labeltree.db
clickhouse:
  host: ch.local:9000
  table: events
`), 0o600))

	tests := []struct {
		name  string
		args  []string
		env   map[string]string
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "file over defaults",
			args: []string{"--config", path},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, ":9000", cfg.Addr)
				assert.Equal(t, "/from-file", cfg.DownloadDir)
				assert.Equal(t, DriverSQLite, cfg.Store.Driver)
				assert.Equal(t, "events", cfg.ClickHouse.Table)
				assert.Equal(t, "default", cfg.ClickHouse.User)
				assert.Equal(t, "info", cfg.LogLevel)
			},
		},
		{
			name: "env over file",
			args: []string{"--config", path},
			env: map[string]string{
				"LABELTREE_DOWNLOAD_DIR": "/from-env",
				"DUCKDB_PATH":            "/legacy.db",
				"CLICKHOUSE_SECURE":      "true",
				"LABELTREE_AUTOSTART":    "1",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "/from-env", cfg.DownloadDir)
				assert.Equal(t, "/legacy.db", cfg.Store.Path)
				assert.True(t, cfg.ClickHouse.Secure)
				assert.True(t, cfg.Autostart)
				assert.Equal(t, ":9000", cfg.Addr)
			},
		},
		{
			name: "flags over env",
			args: []string{"--config", path, "--download-dir", "/from-flag", "--store", "memory", "--autostart=false"},
			env:  map[string]string{"LABELTREE_DOWNLOAD_DIR": "/from-env", "LABELTREE_AUTOSTART": "true"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "/from-flag", cfg.DownloadDir)
				assert.Equal(t, "memory", cfg.Store.Driver)
				assert.False(t, cfg.Autostart)
			},
		},
		{
			name: "unset flags keep lower layers",
			args: []string{},
			env:  map[string]string{"LABELTREE_ADDR": ":7000"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, ":7000", cfg.Addr)
				assert.Equal(t, DriverDuckDB, cfg.Store.Driver)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newServeCommand()
			require.NoError(t, cmd.ParseFlags(tt.args))

			cfg, err := resolveConfig(cmd, envFrom(tt.env))
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestResolveConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "missing file", args: []string{"--config", "/does/not/exist.yaml"}},
		{name: "bad bool", env: map[string]string{"CLICKHOUSE_SECURE": "maybe"}},
		{name: "unknown driver", args: []string{"--store", "postgres"}},
		{name: "bad log level", args: []string{"--log-level", "loud"}},
		{name: "empty download dir", args: []string{"--download-dir", " "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newServeCommand()
			require.NoError(t, cmd.ParseFlags(tt.args))
			_, err := resolveConfig(cmd, envFrom(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestClickHouseOptions(t *testing.T) {
	cfg := DefaultConfig().ClickHouse
	cfg.Host = "ch.local:9000"
	cfg.Password = "secret"

	opts := clickHouseOptions(cfg)
	assert.Equal(t, []string{"ch.local:9000"}, opts.Addr)
	assert.Equal(t, "default", opts.Auth.Database)
	assert.Equal(t, "secret", opts.Auth.Password)
	assert.Nil(t, opts.TLS)

	cfg.Host = "ch.local:9440"
	assert.NotNil(t, clickHouseOptions(cfg).TLS)

	cfg.Host = "ch.local:9000"
	cfg.Secure = true
	assert.NotNil(t, clickHouseOptions(cfg).TLS)
}

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		password string
		want     string
	}{
		{password: "", want: "<empty>"},
		{password: "a", want: "*"},
		{password: "ab", want: "**"},
		{password: "secret", want: "s****t"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maskPassword(tt.password))
	}
}
