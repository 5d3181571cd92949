// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration populated from environment variables.
type Config struct {
	// Core
	ServerHost string
	ServerPort int
	ServerEnv  string // "development" or "production"

	// Database
	DatabaseURL     string
	DatabaseMaxConn int
	DatabaseMinConn int

	// Valkey (optional presence mirror; disabled when empty)
	ValkeyURL string

	// JWT / sessions
	JWTSecretKey string
	SessionTTL   time.Duration

	// Argon2 password hashing
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32

	// Rate limiting
	RateLimitAPIRequests       int
	RateLimitAPIWindowSeconds  int
	RateLimitAuthCount         int
	RateLimitAuthWindowSeconds int

	// Message limits
	MaxMessageLength int
}

// Load reads configuration from environment variables. It returns an error if any variable is set but cannot be
// parsed, or if required values are missing.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		ServerHost: envStr("SERVER_HOST", "0.0.0.0"),
		ServerPort: p.int("SERVER_PORT", 3000),
		ServerEnv:  envStr("SERVER_ENV", "production"),

		DatabaseURL:     envStr("DATABASE_URL", ""),
		DatabaseMaxConn: p.int("DATABASE_MAX_CONNS", 25),
		DatabaseMinConn: p.int("DATABASE_MIN_CONNS", 5),

		ValkeyURL: envStr("VALKEY_URL", ""),

		JWTSecretKey: envStr("JWT_SECRET_KEY", ""),
		SessionTTL:   p.duration("SESSION_TTL", 24*time.Hour),

		Argon2Memory:      p.uint32("ARGON2_MEMORY", 65536),
		Argon2Iterations:  p.uint32("ARGON2_ITERATIONS", 3),
		Argon2Parallelism: p.uint8("ARGON2_PARALLELISM", 2),
		Argon2SaltLength:  p.uint32("ARGON2_SALT_LENGTH", 16),
		Argon2KeyLength:   p.uint32("ARGON2_KEY_LENGTH", 32),

		RateLimitAPIRequests:       p.int("RATE_LIMIT_API_REQUESTS", 120),
		RateLimitAPIWindowSeconds:  p.int("RATE_LIMIT_API_WINDOW_SECONDS", 60),
		RateLimitAuthCount:         p.int("RATE_LIMIT_AUTH_COUNT", 10),
		RateLimitAuthWindowSeconds: p.int("RATE_LIMIT_AUTH_WINDOW_SECONDS", 300),

		MaxMessageLength: p.int("MAX_MESSAGE_LENGTH", 2000),
	}

	if parseErr := errors.Join(p.errs...); parseErr != nil {
		return nil, parseErr
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment returns true when running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.ServerEnv == "development"
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

func (c *Config) validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	if c.JWTSecretKey == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET_KEY is required"))
	} else if len(c.JWTSecretKey) < 32 {
		errs = append(errs, fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters"))
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535"))
	}

	if c.DatabaseMaxConn < 1 {
		errs = append(errs, fmt.Errorf("DATABASE_MAX_CONNS must be at least 1"))
	}
	if c.DatabaseMinConn < 0 {
		errs = append(errs, fmt.Errorf("DATABASE_MIN_CONNS must not be negative"))
	}
	if c.DatabaseMinConn > c.DatabaseMaxConn {
		errs = append(errs, fmt.Errorf("DATABASE_MIN_CONNS (%d) must not exceed DATABASE_MAX_CONNS (%d)", c.DatabaseMinConn, c.DatabaseMaxConn))
	}

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be at least 1m"))
	}

	if c.Argon2Memory == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_MEMORY must be greater than 0"))
	}
	if c.Argon2Iterations == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_ITERATIONS must be greater than 0"))
	}
	if c.Argon2Parallelism == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_PARALLELISM must be greater than 0"))
	}

	if c.RateLimitAPIRequests < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_API_REQUESTS must be at least 1"))
	}
	if c.RateLimitAPIWindowSeconds < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_API_WINDOW_SECONDS must be at least 1"))
	}
	if c.RateLimitAuthCount < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_AUTH_COUNT must be at least 1"))
	}
	if c.RateLimitAuthWindowSeconds < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_AUTH_WINDOW_SECONDS must be at least 1"))
	}

	if c.MaxMessageLength < 1 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_LENGTH must be at least 1"))
	}

	return errors.Join(errs...)
}

// parser collects parse errors so Load can report all invalid values at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected integer)", key, v))
		return fallback
	}
	return n
}

func (p *parser) uint32(key string, fallback uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected unsigned 32-bit integer)", key, v))
		return fallback
	}
	return uint32(n)
}

func (p *parser) uint8(key string, fallback uint8) uint8 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected unsigned 8-bit integer)", key, v))
		return fallback
	}
	return uint8(n)
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected duration like \"24h\" or \"30m\")", key, v))
		return fallback
	}
	return d
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
