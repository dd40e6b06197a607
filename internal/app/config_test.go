package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, "certificates", cfg.Auth.JWT.Issuer)
	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.CacheSchedule)
	require.Zero(t, cfg.Maintenance.IssueRetentionDays)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 9090
  log_level: debug
auth:
  jwt:
    secret: file-secret
    access_token_ttl: 1h
verification:
  base_url: https://certs.example.com/verify
maintenance:
  issue_retention_days: 30
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "file-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, "https://certs.example.com/verify", cfg.Verification.BaseURL)
	require.Equal(t, 30, cfg.Maintenance.IssueRetentionDays)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CERTIFICATE_SERVER_PORT", "7001")
	t.Setenv("CERTIFICATE_AUTH_JWT_ACCESS_TOKEN_TTL", "45m")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7001, cfg.Server.Port)
	require.Equal(t, 45*time.Minute, cfg.Auth.JWT.TTL)
}
