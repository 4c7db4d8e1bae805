// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string `env:"ENV" envDefault:"development"`

	// Port is the HTTP listen port (default: 3000).
	Port int `env:"PORT" envDefault:"3000"`

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string `env:"LOG_LEVEL" envDefault:"debug"`

	// SessionSecret signs session and challenge tokens. Required in
	// production. When empty elsewhere an ephemeral secret is generated,
	// which invalidates all tokens on restart.
	SessionSecret string `env:"SESSION_SECRET"`

	// UsersFile is the path of the JSON file store used when no
	// DATABASE_URL is configured.
	UsersFile string `env:"AUTH_USERS_FILE" envDefault:"data/users.json"`

	// DatabaseURL selects the SQL credential store when set. Postgres
	// (postgres://) and MySQL (mysql://) URLs are recognized.
	DatabaseURL string `env:"DATABASE_URL"`

	// AuthProxyBaseURL, when set, forwards register/login/session/logout
	// to an upstream auth service instead of handling them locally.
	AuthProxyBaseURL string `env:"AUTH_PROXY_BASE_URL"`

	// CORSOrigins is the allow-list of origins permitted to make
	// credentialed cross-origin requests.
	CORSOrigins []string `env:"CORS_ORIGIN" envSeparator:","`

	// CrossSiteCookie forces SameSite=None; Secure cookies even without
	// a CORS allow-list.
	CrossSiteCookie bool `env:"CROSS_SITE_COOKIE" envDefault:"false"`

	// RedisURL selects the Redis-backed rate limiter when set. Counters
	// are then shared across instances.
	RedisURL string `env:"REDIS_URL"`

	// Email holds verification-code delivery settings.
	Email EmailConfig

	// AllowUnsafeCodeFallback returns verification codes in the response
	// body when email delivery is unconfigured. Development only.
	AllowUnsafeCodeFallback bool `env:"ALLOW_UNSAFE_CODE_FALLBACK" envDefault:"false"`

	// ephemeralSecret records that SessionSecret was generated at startup.
	ephemeralSecret bool
}

// EmailConfig holds Resend API settings for verification-code delivery.
type EmailConfig struct {
	// APIBase is the Resend API base URL.
	APIBase string `env:"RESEND_API_BASE" envDefault:"https://api.resend.com"`

	// APIKey is the Resend API key. Empty means delivery is unconfigured.
	APIKey string `env:"RESEND_API_KEY"`

	// From is the sender address for verification-code emails.
	From string `env:"EMAIL_FROM"`
}

// Configured returns true if email delivery can be attempted.
func (e EmailConfig) Configured() bool {
	return e.APIKey != "" && e.From != ""
}

// Load reads configuration from environment variables. It fails closed on a
// missing session secret in production; in development an ephemeral secret
// is generated instead.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.AuthProxyBaseURL = strings.TrimRight(strings.TrimSpace(cfg.AuthProxyBaseURL), "/")
	cfg.Email.APIBase = strings.TrimRight(strings.TrimSpace(cfg.Email.APIBase), "/")

	for i, origin := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(origin)
	}

	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("SESSION_SECRET is required in production")
		}
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generating ephemeral secret: %w", err)
		}
		cfg.SessionSecret = secret
		cfg.ephemeralSecret = true
	}

	return cfg, nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

// UseProxy returns true when auth requests are forwarded upstream.
func (c *Config) UseProxy() bool {
	return c.AuthProxyBaseURL != ""
}

// UseCrossSiteCookie returns true when cookies must be usable from another
// origin. Any configured CORS origin implies cross-site cookies.
func (c *Config) UseCrossSiteCookie() bool {
	return c.CrossSiteCookie || len(c.CORSOrigins) > 0
}

// EphemeralSecret reports whether the session secret was generated at
// startup rather than configured. Tokens will not survive a restart.
func (c *Config) EphemeralSecret() bool {
	return c.ephemeralSecret
}

// randomSecret generates a 32-byte hex secret from a cryptographically
// secure source.
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
