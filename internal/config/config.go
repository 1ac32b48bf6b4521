// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Push transports understood by internal/push.
const (
	PushSocketIO = "socketio"
	PushRedis    = "redis"
	PushNone     = "none"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links and redirects.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Brand selects the brand variant: "innohedge" or "innohed".
	Brand string

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds session settings.
	Auth AuthConfig

	// API holds settings for the backend REST API the console talks to.
	API APIConfig

	// Push holds settings for the live traffic channel.
	Push PushConfig

	// Dashboard holds orchestrator lifecycle settings.
	Dashboard DashboardConfig

	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP headers
	// are believed when resolving the client IP. Empty trusts nobody.
	TrustedProxies []string

	// RecaptchaSiteKey is the public reCAPTCHA key rendered on the contact form.
	// Empty disables the widget; the backend still decides whether a token is required.
	RecaptchaSiteKey string
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds session settings.
type AuthConfig struct {
	// SessionTTL is how long a regular session lives in Redis.
	SessionTTL time.Duration

	// RememberMeTTL is the session lifetime when "remember me" was ticked.
	RememberMeTTL time.Duration
}

// APIConfig holds backend API settings.
type APIConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:5000/api".
	BaseURL string

	// Timeout bounds each API request. Zero means no timeout.
	Timeout time.Duration
}

// PushConfig holds push channel settings.
type PushConfig struct {
	// Transport is one of "socketio", "redis" or "none".
	Transport string

	// URL is the socket.io server URL (socketio transport only).
	URL string

	// RedisChannel is the pub/sub channel name (redis transport only).
	RedisChannel string

	// ReconnectAttempts is how many times a dropped socket.io channel tries
	// to reconnect before giving up. Zero disables reconnecting.
	ReconnectAttempts int
}

// DashboardConfig holds orchestrator lifecycle settings.
type DashboardConfig struct {
	// LoadTimeout bounds the six-way initial load. Zero means no timeout.
	LoadTimeout time.Duration

	// IdleTimeout is how long an unused orchestrator is kept mounted.
	IdleTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if a value is present but unusable.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),
		Brand:    strings.ToLower(getEnv("BRAND", "innohedge")),

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
			RememberMeTTL: getEnvDuration("REMEMBER_ME_TTL", 720*time.Hour),
		},

		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
			Timeout: getEnvDuration("API_TIMEOUT", 0),
		},

		Push: PushConfig{
			Transport:    strings.ToLower(getEnv("PUSH_TRANSPORT", PushSocketIO)),
			URL:          getEnv("PUSH_URL", "http://localhost:5000"),
			RedisChannel: getEnv("PUSH_REDIS_CHANNEL", "newTraffic"),

			ReconnectAttempts: getEnvInt("PUSH_RECONNECT_ATTEMPTS", 5),
		},

		Dashboard: DashboardConfig{
			LoadTimeout: getEnvDuration("DASHBOARD_LOAD_TIMEOUT", 0),
			IdleTimeout: getEnvDuration("DASHBOARD_IDLE_TIMEOUT", 30*time.Minute),
		},

		TrustedProxies:   getEnvList("TRUSTED_PROXIES"),
		RecaptchaSiteKey: getEnv("RECAPTCHA_SITE_KEY", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects combinations the rest of the application cannot run with.
func (c *Config) validate() error {
	switch c.Brand {
	case "innohedge", "innohed":
	default:
		return fmt.Errorf("BRAND must be one of: innohedge, innohed")
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL is invalid: %w", err)
	}
	if c.API.Timeout < 0 || c.Dashboard.LoadTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	if c.Push.ReconnectAttempts < 0 {
		return fmt.Errorf("PUSH_RECONNECT_ATTEMPTS must not be negative")
	}

	switch c.Push.Transport {
	case PushSocketIO:
		if c.Push.URL == "" {
			return fmt.Errorf("PUSH_URL is required for the socketio transport")
		}
	case PushRedis:
		if c.Push.RedisChannel == "" {
			return fmt.Errorf("PUSH_REDIS_CHANNEL is required for the redis transport")
		}
	case PushNone:
	default:
		return fmt.Errorf("PUSH_TRANSPORT must be one of: socketio, redis, none")
	}

	if c.Auth.SessionTTL <= 0 || c.Auth.RememberMeTTL <= 0 {
		return fmt.Errorf("session TTLs must be positive")
	}
	if c.Dashboard.IdleTimeout <= 0 {
		return fmt.Errorf("DASHBOARD_IDLE_TIMEOUT must be positive")
	}
	return nil
}

// IsSecure reports whether BaseURL is served over HTTPS.
func (c *Config) IsSecure() bool {
	return strings.HasPrefix(strings.ToLower(c.BaseURL), "https://")
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
