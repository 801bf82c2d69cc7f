package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  hmac_secret: topsecret\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7085", cfg.ListenAddress)
	require.Equal(t, "sqlite", cfg.Audit.Driver)
	require.NotEmpty(t, cfg.Audit.DSN)
	require.Equal(t, 2*time.Minute, cfg.Auth.ClockSkew.Duration)
	require.Equal(t, time.Hour, cfg.Quota.Window.Duration)
	require.Equal(t, float64(600), cfg.RateLimit.RequestsPerMinute)
}

func TestLoadParsesDurationsAndOverrides(t *testing.T) {
	path := writeConfig(t, `listen: "127.0.0.1:9000"
ledger_config: /etc/pangivault/config.toml
auth:
  hmac_secret: s
  issuer: issuer.example
  clock_skew: 30s
audit:
  driver: Postgres
  dsn: postgres://audit
quota:
  max_requests: 10
  max_amount: 5000000
  window: 15m
log:
  file: /var/log/vaultd.log
telemetry:
  enabled: true
  sample_ratio: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, "postgres", cfg.Audit.Driver)
	require.Equal(t, 30*time.Second, cfg.Auth.ClockSkew.Duration)
	require.Equal(t, 15*time.Minute, cfg.Quota.Window.Duration)
	require.Equal(t, uint32(10), cfg.Quota.MaxRequests)
	require.True(t, cfg.Telemetry.Enabled)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load(writeConfig(t, "listen: \":1\"\n"))
	require.ErrorContains(t, err, "hmac_secret")
}

func TestSecretPrefersEnvironment(t *testing.T) {
	t.Setenv("VAULTD_TEST_SECRET", "from-env")
	auth := AuthConfig{HMACSecret: "inline", HMACSecretEnv: "VAULTD_TEST_SECRET"}
	require.Equal(t, "from-env", auth.Secret())

	auth.HMACSecretEnv = "VAULTD_TEST_UNSET"
	require.Equal(t, "inline", auth.Secret())
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "auth:\n  hmac_secret: s\naudit:\n  driver: mysql\n  dsn: x\n"))
	require.ErrorContains(t, err, "audit.driver")

	_, err = Load(writeConfig(t, "auth:\n  hmac_secret: s\nquota:\n  window: nope\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "auth:\n  hmac_secret: s\nunknown: 1\n"))
	require.Error(t, err)
}
