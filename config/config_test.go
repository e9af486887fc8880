package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONConfigGroupedSections(t *testing.T) {
	var c AppConfig
	require.NoError(t, loadJSONConfig("config.example.json", &c))

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, "podstreak", c.DBUser)
	assert.Equal(t, 6379, c.RedisPort)
	assert.False(t, c.CacheEnabled)
	assert.Equal(t, "logs/gin.log", c.GinPath)
	assert.Equal(t, []int{100, 500, 1000}, c.RetryBackoffMS)
	assert.Equal(t, 10, c.RestoreHistoryLimit)
}

func TestLoadJSONConfigFlatKeysAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"JWTSecret":"flat","CronSecret":"tick","DatabaseURI":"file:x.db"}`), 0o600))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))
	assert.Equal(t, "flat", c.JWTSecret)
	assert.Equal(t, "tick", c.CronSecret)
	assert.Equal(t, "file:x.db", c.DatabaseURI)

	require.NoError(t, loadJSONConfig(filepath.Join(dir, "missing.json"), &c))

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	assert.Error(t, loadJSONConfig(path, &c))
}

func TestDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("RETRY_BACKOFF_MS", "50, 250")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CRON_SECRET", "env-secret")

	var c AppConfig
	applyDefaults(&c)
	applyEnvOverrides(&c)

	assert.Equal(t, "sqlite", c.DBDriver)
	assert.True(t, c.CacheEnabled)
	assert.Equal(t, []int{50, 250}, c.RetryBackoffMS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, "env-secret", c.CronSecret)
	assert.Equal(t, 500, c.SweepBatchSize)
	assert.Equal(t, 60, c.StatusCacheTTLSeconds)
}

func TestOverrideFillsDefaults(t *testing.T) {
	c := Override(AppConfig{JWTSecret: "t", SweepBatchSize: 25})
	assert.Equal(t, 25, c.SweepBatchSize)
	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, c, Get())
}
