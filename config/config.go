package config

import (
	"fmt"
	"time"

	"github.com/kbukum/apiclient/encryption"
	"github.com/kbukum/apiclient/httpclient"
	"github.com/kbukum/apiclient/logger"
	"github.com/kbukum/apiclient/observability"
	"github.com/kbukum/apiclient/redis"
	"github.com/kbukum/apiclient/refresh"
	"github.com/kbukum/apiclient/resilience"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "APICLIENT"

// Credential backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the complete client configuration.
type Config struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string `yaml:"version" mapstructure:"version"`

	Logging     logger.Config          `yaml:"logging" mapstructure:"logging"`
	HTTP        httpclient.Config      `yaml:"http" mapstructure:"http"`
	Retry       resilience.RetryPolicy `yaml:"retry" mapstructure:"retry"`
	Auth        AuthConfig             `yaml:"auth" mapstructure:"auth"`
	Credentials CredentialsConfig      `yaml:"credentials" mapstructure:"credentials"`
	Telemetry   TelemetryConfig        `yaml:"telemetry" mapstructure:"telemetry"`
}

// AuthConfig configures the token endpoints.
type AuthConfig struct {
	LoginPath    string        `yaml:"login_path" mapstructure:"login_path" validate:"startswith=/"`
	RefreshPath  string        `yaml:"refresh_path" mapstructure:"refresh_path" validate:"startswith=/"`
	RenewTimeout time.Duration `yaml:"renew_timeout" mapstructure:"renew_timeout" validate:"gt=0"`
}

// CredentialsConfig selects where the credential pair is stored.
type CredentialsConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=memory file redis"`
	// Dir is the file backend directory. Defaults to the user config dir.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// Key overrides the record key.
	Key string `yaml:"key" mapstructure:"key"`
	// EncryptionKey seals the record at rest when set.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
	// Algorithm is the sealing algorithm.
	Algorithm string       `yaml:"algorithm" mapstructure:"algorithm" validate:"omitempty,oneof=aes-256-gcm chacha20-poly1305"`
	Redis     redis.Config `yaml:"redis" mapstructure:"redis"`
}

// TelemetryConfig enables OTLP export.
type TelemetryConfig struct {
	Enabled bool                       `yaml:"enabled" mapstructure:"enabled"`
	Tracer  observability.TracerConfig `yaml:"tracer" mapstructure:"tracer"`
	Meter   observability.MeterConfig  `yaml:"meter" mapstructure:"meter"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "apiclient"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()
	c.HTTP.ApplyDefaults()
	c.Retry.ApplyDefaults()

	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = "/auth/token/"
	}
	if c.Auth.RefreshPath == "" {
		c.Auth.RefreshPath = refresh.DefaultRenewPath
	}
	if c.Auth.RenewTimeout <= 0 {
		c.Auth.RenewTimeout = refresh.DefaultRenewTimeout
	}

	if c.Credentials.Backend == "" {
		c.Credentials.Backend = BackendFile
	}
	if c.Credentials.Algorithm == "" {
		c.Credentials.Algorithm = string(encryption.AlgorithmAESGCM)
	}
	if c.Credentials.Backend == BackendRedis {
		c.Credentials.Redis.Enabled = true
	}
	c.Credentials.Redis.ApplyDefaults()

	defTracer := observability.DefaultTracerConfig(c.Name)
	if c.Telemetry.Tracer.ServiceName == "" {
		c.Telemetry.Tracer.ServiceName = c.Name
	}
	if c.Telemetry.Tracer.Endpoint == "" {
		c.Telemetry.Tracer.Endpoint = defTracer.Endpoint
	}
	if c.Telemetry.Tracer.Environment == "" {
		c.Telemetry.Tracer.Environment = c.Environment
	}
	defMeter := observability.DefaultMeterConfig(c.Name)
	if c.Telemetry.Meter.ServiceName == "" {
		c.Telemetry.Meter.ServiceName = c.Name
	}
	if c.Telemetry.Meter.Endpoint == "" {
		c.Telemetry.Meter.Endpoint = defMeter.Endpoint
	}
	if c.Telemetry.Meter.Environment == "" {
		c.Telemetry.Meter.Environment = c.Environment
	}
	if c.Telemetry.Meter.Interval <= 0 {
		c.Telemetry.Meter.Interval = defMeter.Interval
	}
	if c.Version != "" {
		c.Telemetry.Tracer.ServiceVersion = c.Version
		c.Telemetry.Meter.ServiceVersion = c.Version
	}
}

// Validate checks struct tags, then each section.
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return err
	}
	if c.HTTP.BaseURL == "" {
		return fmt.Errorf("config.http.base_url is required")
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("config.http: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("config.retry: %w", err)
	}
	if err := c.Credentials.Redis.Validate(); err != nil {
		return fmt.Errorf("config.credentials.redis: %w", err)
	}
	return nil
}

// Load resolves config.yml and .env for name, applies APICLIENT_* overrides,
// defaults and validation.
func Load(name string, opts ...LoaderOption) (*Config, error) {
	cfg := &Config{Name: name, Retry: resilience.DefaultRetryPolicy()}
	opts = append([]LoaderOption{WithEnvPrefix(EnvPrefix)}, opts...)
	if err := LoadConfig(name, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
