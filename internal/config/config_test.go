package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadClientConfig_Defaults(t *testing.T) {
	cfg, err := LoadClientConfig("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8096", cfg.Addr())
	require.Equal(t, DefaultCatalogPath, cfg.CatalogPath)
	require.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadClientConfig_YAML(t *testing.T) {
	path := writeConfig(t, "client.yaml", `
host: sim.local
port: 50000
user: alice
algorithm: bf
read_timeout: 30s
dial_retries: 3
log:
  level: debug
`)
	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.Equal(t, "sim.local:50000", cfg.Addr())
	require.Equal(t, "alice", cfg.User)
	require.Equal(t, "bf", cfg.Algorithm)
	require.Equal(t, 30*time.Second, cfg.ReadTimeout)
	require.Equal(t, 3, cfg.DialRetries)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format, "unset fields keep defaults")
	require.Equal(t, DefaultCatalogPath, cfg.CatalogPath)
}

func TestLoadClientConfig_TOML(t *testing.T) {
	path := writeConfig(t, "client.toml", `
port = 50001
algorithm = "wf"
catalog-path = "/tmp/ds-system.xml"
dial-timeout = "2s"

[log]
format = "json"
`)
	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.Equal(t, 50001, cfg.Port)
	require.Equal(t, "wf", cfg.Algorithm)
	require.Equal(t, "/tmp/ds-system.xml", cfg.CatalogPath)
	require.Equal(t, 2*time.Second, cfg.DialTimeout)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoadClientConfig_Errors(t *testing.T) {
	_, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadClientConfig(writeConfig(t, "bad.yaml", "port: [1"))
	require.Error(t, err)

	_, err = LoadClientConfig(writeConfig(t, "bad.toml", "port = "))
	require.Error(t, err)

	_, err = LoadClientConfig(writeConfig(t, "range.yaml", "port: 70000"))
	require.ErrorContains(t, err, "out of range")

	_, err = LoadClientConfig(writeConfig(t, "retries.yaml", "dial_retries: -1"))
	require.Error(t, err)
}
