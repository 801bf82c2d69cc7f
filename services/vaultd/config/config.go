package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for vaultd.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	LedgerConfig  string          `yaml:"ledger_config"`
	Auth          AuthConfig      `yaml:"auth"`
	Audit         AuditConfig     `yaml:"audit"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Quota         QuotaConfig     `yaml:"quota"`
	Log           LogConfig       `yaml:"log"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// AuthConfig configures bearer JWT verification.
type AuthConfig struct {
	HMACSecret    string   `yaml:"hmac_secret"`
	HMACSecretEnv string   `yaml:"hmac_secret_env"`
	Issuer        string   `yaml:"issuer"`
	Audience      string   `yaml:"audience"`
	ClockSkew     Duration `yaml:"clock_skew"`
}

// Secret resolves the signing secret, preferring the environment variable.
func (a AuthConfig) Secret() string {
	if env := strings.TrimSpace(a.HMACSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(a.HMACSecret)
}

// AuditConfig selects the audit log database.
type AuditConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Buffer int    `yaml:"buffer"`
}

// RateLimitConfig bounds request rates per client address.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// QuotaConfig bounds mutating requests per authenticated caller.
type QuotaConfig struct {
	MaxRequests uint32   `yaml:"max_requests"`
	MaxAmount   uint64   `yaml:"max_amount"`
	Window      Duration `yaml:"window"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig toggles OTLP exporters.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7085"
	}
	if cfg.LedgerConfig == "" {
		cfg.LedgerConfig = "./vault-data/config.toml"
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = "sqlite"
	}
	cfg.Audit.Driver = strings.ToLower(strings.TrimSpace(cfg.Audit.Driver))
	if cfg.Audit.DSN == "" && cfg.Audit.Driver == "sqlite" {
		cfg.Audit.DSN = "./vault-data/audit.sqlite"
	}
	if cfg.Audit.Buffer <= 0 {
		cfg.Audit.Buffer = 1024
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 60
	}
	if cfg.Quota.Window.Duration == 0 {
		cfg.Quota.Window.Duration = time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
}

func validate(cfg Config) error {
	if cfg.Auth.Secret() == "" {
		return fmt.Errorf("auth.hmac_secret or auth.hmac_secret_env must be configured")
	}
	switch cfg.Audit.Driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("audit.driver %q is not supported", cfg.Audit.Driver)
	}
	if strings.TrimSpace(cfg.Audit.DSN) == "" {
		return fmt.Errorf("audit.dsn must be configured")
	}
	if cfg.Quota.Window.Duration < time.Second {
		return fmt.Errorf("quota.window must be at least one second")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	return nil
}
