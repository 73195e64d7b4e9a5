package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParseEnv_AllFields(t *testing.T) {
	cfg := defaults()
	parseEnv(&cfg, mapEnv(map[string]string{
		"DOCDASH_SERVER_URL":             "https://api.example",
		"DOCDASH_REQUEST_TIMEOUT":        "5s",
		"DOCDASH_DB_PATH":                "x.db",
		"DOCDASH_PROFILE_CHECK_INTERVAL": "2m",
		"DOCDASH_STALENESS_WINDOW":       "1m",
		"DOCDASH_READ_RETRIES":           "5",
		"DOCDASH_MUTATION_RETRIES":       "0",
		"DOCDASH_AGGREGATOR_CONCURRENCY": "16",
		"DOCDASH_CATEGORY_CACHE_TTL":     "1m30s",
		"DOCDASH_DOWNLOAD_DIR":           "/tmp/dl",
		"DOCDASH_LOG_FILE":               "client.log",
		"DOCDASH_METRICS_ADDR":           ":9100",
		"DOCDASH_TRACING_ENABLED":        "true",
	}))

	assert.Equal(t, "https://api.example", cfg.ServerBaseURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "x.db", cfg.DatabasePath)
	assert.Equal(t, 2*time.Minute, cfg.ProfileCheckInterval)
	assert.Equal(t, time.Minute, cfg.StalenessWindow)
	assert.Equal(t, 5, cfg.ReadRetries)
	assert.Equal(t, 0, cfg.MutationRetries)
	assert.Equal(t, 16, cfg.AggregatorConcurrency)
	assert.Equal(t, 90*time.Second, cfg.CategoryCacheTTL)
	assert.Equal(t, "/tmp/dl", cfg.DownloadDir)
	assert.Equal(t, "client.log", cfg.LogFile)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.True(t, cfg.TracingEnabled)
}

func TestParseEnv_InvalidValuesPanic(t *testing.T) {
	for _, kv := range [][2]string{
		{"DOCDASH_REQUEST_TIMEOUT", "soon"},
		{"DOCDASH_READ_RETRIES", "many"},
		{"DOCDASH_TRACING_ENABLED", "maybe"},
	} {
		t.Run(kv[0], func(t *testing.T) {
			cfg := defaults()
			require.Panics(t, func() { parseEnv(&cfg, mapEnv(map[string]string{kv[0]: kv[1]})) })
		})
	}
}

func TestEnvSource_EnvironmentWinsOverDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=file\nB=file\n"), 0o600))

	get := envSource(path, mapEnv(map[string]string{"A": "env"}))

	v, ok := get("A")
	assert.True(t, ok)
	assert.Equal(t, "env", v)
	v, ok = get("B")
	assert.True(t, ok)
	assert.Equal(t, "file", v)
	_, ok = get("C")
	assert.False(t, ok)
}

func TestEnvSource_MissingFile(t *testing.T) {
	get := envSource(filepath.Join(t.TempDir(), "nope"), nil)
	_, ok := get("DOCDASH_SERVER_URL")
	assert.False(t, ok)
}
