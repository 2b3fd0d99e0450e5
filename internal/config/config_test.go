package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("BRIDGE_TEST_TOKEN", "secret-token")
	dir := t.TempDir()
	path := writeConfig(t, `
api:
  base_url: https://api.brainbridge.test/api
  timeout_seconds: 5
  rate_per_second: 2.5
  burst: 3
auth:
  token: ${BRIDGE_TEST_TOKEN}
cache:
  ttl_seconds: 60
ledger:
  path: `+filepath.Join(dir, "nested", "ledger.db")+`
support:
  chat_ids: [100, 200]
timezone: Europe/Moscow
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.brainbridge.test/api", cfg.API.BaseURL)
	assert.Equal(t, "secret-token", cfg.Auth.Token)
	assert.Equal(t, 5*time.Second, cfg.APITimeout())
	assert.Equal(t, 2.5, cfg.API.RatePerSecond)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, []int64{100, 200}, cfg.Support.ChatIDs)
	assert.Equal(t, "Europe/Moscow", cfg.Location().String())

	_, err = os.Stat(filepath.Join(dir, "nested"))
	assert.NoError(t, err)
}

func TestDefaults(t *testing.T) {
	var cfg Config

	assert.Equal(t, 10*time.Second, cfg.APITimeout())
	assert.Zero(t, cfg.CacheTTL())
	assert.Equal(t, "brainbridge:", cfg.CachePrefix())
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 90*24*time.Hour, cfg.LedgerRetention())
	assert.Equal(t, 8090, cfg.HealthCheckPort())
	assert.Equal(t, 9090, cfg.PrometheusPort())
	assert.Equal(t, time.Local, cfg.Location())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "api: [broken"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "auth:\n  token: x\n"))
	assert.EqualError(t, err, "api.base_url is required")

	_, err = Load(writeConfig(t, "api:\n  base_url: http://x\ntimezone: Mars/Olympus\n"))
	assert.Error(t, err)
}
