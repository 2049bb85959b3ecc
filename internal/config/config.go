package config

import (
	"encoding/base64"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"production"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Redis is optional: when unset the in-process rate limiter is used,
	// which is fine for a single-instance deployment.
	RedisURL string `env:"REDIS_URL"`

	// Admin session cookie (Base64-encoded HMAC secret, >= 32 bytes decoded)
	SessionSecret     string `env:"SESSION_SECRET,required"`
	SessionCookieName string `env:"SESSION_COOKIE_NAME" envDefault:"admin_session"`
	SessionTTLHours   int    `env:"SESSION_TTL_HOURS" envDefault:"12"`

	// Single admin operator credentials; the hash is bcrypt.
	AdminEmail        string `env:"ADMIN_EMAIL,required"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH,required"`

	// Uploads
	UploadDir      string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Rate limiting
	AdminRatePerMin  int `env:"ADMIN_RATE_PER_MIN" envDefault:"120"`
	IntakeRatePerMin int `env:"INTAKE_RATE_PER_MIN" envDefault:"5"`

	// When set, /metrics requires this token via X-Metrics-Token or Bearer auth.
	MetricsToken string `env:"METRICS_TOKEN"`

	// OpenTelemetry (opt-in)
	OTELEnabled          bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"timberline-crm"`
	OTELSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"0.1"`

	// Server
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if _, err := c.SessionSecretBytes(); err != nil {
		return err
	}

	if c.AdminEmail == "" || c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD_HASH are required")
	}

	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if c.AdminRatePerMin <= 0 || c.IntakeRatePerMin <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if c.OTELSamplingRatio < 0 || c.OTELSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}

	return nil
}

// SessionSecretBytes decodes and checks the session HMAC secret.
func (c *Config) SessionSecretBytes() ([]byte, error) {
	secret, err := base64.StdEncoding.DecodeString(c.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("SESSION_SECRET must be valid Base64: %w", err)
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must decode to at least 32 bytes, got %d", len(secret))
	}
	return secret, nil
}

// TelemetryEnabled reports whether the OTLP exporters should be started.
func (c *Config) TelemetryEnabled() bool {
	return c.OTELEnabled && c.OTELExporterEndpoint != ""
}
