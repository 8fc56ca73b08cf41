// Package config loads the gocred-server configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/jwt"
)

// Directory drivers accepted in DIRECTORY_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds server configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development", "production", ...).
	Env string `mapstructure:"APP_ENV"`
	// HTTPAddr is the address the HTTP server listens on.
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// DirectoryDriver selects the account store: memory, sqlite or postgres.
	DirectoryDriver string `mapstructure:"DIRECTORY_DRIVER"`
	// DatabaseURL is the Postgres DSN. Never logged.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	// TokenSecret signs every token; at least 32 bytes.
	TokenSecret          string        `mapstructure:"TOKEN_SECRET"`
	TokenSigningMethod   string        `mapstructure:"TOKEN_SIGNING_METHOD"`
	TokenIssuer          string        `mapstructure:"TOKEN_ISSUER"`
	AccessTTL            time.Duration `mapstructure:"ACCESS_TTL"`
	VerifyMaxAge         time.Duration `mapstructure:"VERIFY_MAX_AGE"`
	ResetMaxAge          time.Duration `mapstructure:"RESET_MAX_AGE"`
	ActionSingleUse      bool          `mapstructure:"ACTION_SINGLE_USE"`
	RequireVerifiedLogin bool          `mapstructure:"REQUIRE_VERIFIED_LOGIN"`
	RevocationPrefix     string        `mapstructure:"REVOCATION_PREFIX"`

	VerifyEmailURL   string `mapstructure:"VERIFY_EMAIL_URL"`
	ResetPasswordURL string `mapstructure:"RESET_PASSWORD_URL"`
	// CookieInsecure drops the Secure cookie attribute for plain HTTP development.
	CookieInsecure bool `mapstructure:"COOKIE_INSECURE"`

	// SMTP settings; an empty SMTPHost logs messages instead of sending them.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DIRECTORY_DRIVER", DriverMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "gocred.db")
	v.SetDefault("TOKEN_SECRET", "")
	v.SetDefault("TOKEN_SIGNING_METHOD", string(jwt.MethodHS256))
	v.SetDefault("TOKEN_ISSUER", "gocred")
	v.SetDefault("ACCESS_TTL", "15m")
	v.SetDefault("VERIFY_MAX_AGE", "5m")
	v.SetDefault("RESET_MAX_AGE", "5m")
	v.SetDefault("ACTION_SINGLE_USE", false)
	v.SetDefault("REQUIRE_VERIFIED_LOGIN", true)
	v.SetDefault("REVOCATION_PREFIX", "gocred")
	v.SetDefault("VERIFY_EMAIL_URL", "http://localhost:8080/verify-email")
	v.SetDefault("RESET_PASSWORD_URL", "http://localhost:8080/reset-password")
	v.SetDefault("COOKIE_INSECURE", false)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("METRICS_ENABLED", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if len(c.TokenSecret) < jwt.MinSecretBytes {
		return fmt.Errorf("config: TOKEN_SECRET must be at least %d bytes", jwt.MinSecretBytes)
	}
	switch c.DirectoryDriver {
	case DriverMemory:
		if c.Env == "production" {
			return errors.New("config: DIRECTORY_DRIVER=memory must not be used when APP_ENV=production")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown DIRECTORY_DRIVER %q", c.DirectoryDriver)
	}
	if c.CookieInsecure && c.Env == "production" {
		return errors.New("config: COOKIE_INSECURE must not be true when APP_ENV=production")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// EngineConfig maps the server settings onto goCred.DefaultConfig and
// validates the result.
func (c *Config) EngineConfig() (goCred.Config, error) {
	cfg := goCred.DefaultConfig()
	cfg.Token.Secret = []byte(c.TokenSecret)
	cfg.Token.SigningMethod = jwt.SigningMethod(strings.ToLower(c.TokenSigningMethod))
	cfg.Token.Issuer = c.TokenIssuer
	cfg.Token.AccessTTL = c.AccessTTL
	cfg.ActionTokens.VerifyMaxAge = c.VerifyMaxAge
	cfg.ActionTokens.ResetMaxAge = c.ResetMaxAge
	cfg.ActionTokens.SingleUse = c.ActionSingleUse
	cfg.RequireVerifiedLogin = c.RequireVerifiedLogin
	cfg.Revocation.Prefix = c.RevocationPrefix
	cfg.Links.VerifyEmailURL = c.VerifyEmailURL
	cfg.Links.ResetPasswordURL = c.ResetPasswordURL
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled

	if err := cfg.Validate(); err != nil {
		return goCred.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
