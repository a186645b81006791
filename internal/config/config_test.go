package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, 5*time.Minute, cfg.Detection.RiskCacheTTL.Std())
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  allowed_origins:
    - https://app.example.edu
storage:
  data_dir: /var/lib/contrib
detection:
  schedule: "0 4 * * 1"
  risk_cache_ttl: 10m
rate_limit:
  requests_per_minute: 60
  burst: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.edu"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/var/lib/contrib", cfg.Storage.DataDir)
	assert.Equal(t, "0 4 * * 1", cfg.Detection.Schedule)
	assert.Equal(t, 10*time.Minute, cfg.Detection.RiskCacheTTL.Std())
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RISK_CACHE_TTL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Detection.RiskCacheTTL.Std())
}

func TestValidation(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := Load("")
	assert.Error(t, err)
}
