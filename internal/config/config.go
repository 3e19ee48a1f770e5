// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads socmon settings from SOCMON_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"SOCMON_DB_PATH" envDefault:"./data/socmon.db"`
	SessionSecret string `env:"SOCMON_SESSION_SECRET,required"`
	ServerHost    string `env:"SOCMON_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"SOCMON_SERVER_PORT" envDefault:"3000"`
	Env           string `env:"SOCMON_ENV" envDefault:"development"`
	LogLevel      string `env:"SOCMON_LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"SOCMON_LOG_FORMAT" envDefault:"text"`

	// Detection
	BruteForceThreshold int  `env:"SOCMON_BRUTE_FORCE_THRESHOLD" envDefault:"3"`
	ResetOnSuccess      bool `env:"SOCMON_RESET_ON_SUCCESS" envDefault:"false"` // successful login restarts the failure run

	// Admin seeding, skipped while the password is empty
	AdminUsername string `env:"SOCMON_ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"SOCMON_ADMIN_PASSWORD"`

	// Per-IP limiter on POST /login
	LoginRateLimit float64 `env:"SOCMON_LOGIN_RATE_LIMIT" envDefault:"2"`
	LoginBurst     int     `env:"SOCMON_LOGIN_BURST" envDefault:"20"`

	// Incident notifications
	RedisURL      string `env:"SOCMON_REDIS_URL"`
	RedisChannel  string `env:"SOCMON_REDIS_CHANNEL" envDefault:"socmon:incidents"`
	WebhookURL    string `env:"SOCMON_WEBHOOK_URL"`
	WebhookSecret string `env:"SOCMON_WEBHOOK_SECRET"`

	// GeoIP configuration
	GeoIPDBPath string `env:"SOCMON_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	DigestSchedule string `env:"SOCMON_DIGEST_SCHEDULE" envDefault:"0 * * * *"`
	MetricsEnabled bool   `env:"SOCMON_METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// RedisEnabled returns true if incident pub/sub is configured.
func (c Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

// WebhookEnabled returns true if the incident webhook is configured.
func (c Config) WebhookEnabled() bool {
	return c.WebhookURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// DigestEnabled returns true unless the digest schedule is "off".
func (c Config) DigestEnabled() bool {
	s := strings.TrimSpace(c.DigestSchedule)
	return s != "" && !strings.EqualFold(s, "off")
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("SOCMON_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("SOCMON_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return errors.New("SOCMON_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("SOCMON_ENV must be development or production, got %q", c.Env)
	}
	if c.BruteForceThreshold < 1 {
		return fmt.Errorf("SOCMON_BRUTE_FORCE_THRESHOLD must be at least 1, got %d", c.BruteForceThreshold)
	}
	if c.LoginRateLimit <= 0 || c.LoginBurst < 1 {
		return fmt.Errorf("SOCMON_LOGIN_RATE_LIMIT and SOCMON_LOGIN_BURST must be positive")
	}

	if c.WebhookEnabled() {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("SOCMON_WEBHOOK_URL must be an absolute http(s) URL, got %q", c.WebhookURL)
		}
		if c.WebhookSecret == "" {
			return errors.New("SOCMON_WEBHOOK_SECRET is required when SOCMON_WEBHOOK_URL is set")
		}
	}

	if c.DigestEnabled() {
		if _, err := cron.ParseStandard(c.DigestSchedule); err != nil {
			return fmt.Errorf("SOCMON_DIGEST_SCHEDULE: %w", err)
		}
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
