package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func unsetAfter(t *testing.T, keys ...string) {
	t.Cleanup(func() {
		for _, key := range keys {
			_ = os.Unsetenv(key)
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, int32(-1), cfg.LedgerForexScale)
	assert.Equal(t, 30*time.Second, cfg.LockLease)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	path := writeFile(t, "ledger.env", "LEDGER_CACHE_TTL=2m\nWORKER_CONCURRENCY=3\nOPS_ADDR=:1\n")
	unsetAfter(t, "LEDGER_CACHE_TTL", "WORKER_CONCURRENCY")
	t.Setenv("OPS_ADDR", ":7000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.WorkerConcurrency)
	assert.Equal(t, ":7000", cfg.OpsAddr, "process environment wins over the file")
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "WORKER_CONCURRENCY")
}

func TestLedgerSettingsScaleOverride(t *testing.T) {
	path := writeFile(t, "ledger.toml", "forex_scale = 6\n")

	cfg := &Config{LedgerSettingsFile: path, LedgerForexScale: -1}
	settings, err := cfg.LedgerSettings()
	require.NoError(t, err)
	assert.Equal(t, int32(6), settings.ForexScale)

	cfg.LedgerForexScale = 2
	settings, err = cfg.LedgerSettings()
	require.NoError(t, err)
	assert.Equal(t, int32(2), settings.ForexScale)

	cfg.LedgerSettingsFile = filepath.Join(t.TempDir(), "absent.toml")
	_, err = cfg.LedgerSettings()
	require.Error(t, err)
}
