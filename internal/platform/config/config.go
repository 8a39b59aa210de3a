// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token issuer) via constructors.
  - Fail Fast: Malformed token lifetimes abort startup instead of being guessed.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/taibuivan/admitly/internal/platform/sec"
)

// # Configuration Schema

// Config holds all runtime configuration for the Admitly API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath overrides the embedded SQL migrations with a directory on disk.
	MigrationPath string `env:"MIGRATION_PATH"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing. Lifetimes use the "<integer><s|m|h|d>" form.
	AccessTokenSecret    string       `env:"ACCESS_TOKEN_SECRET,required"`
	RefreshTokenSecret   string       `env:"REFRESH_TOKEN_SECRET,required"`
	AccessTokenLifetime  sec.Lifetime `env:"ACCESS_TOKEN_LIFETIME"  envDefault:"15m"`
	RefreshTokenLifetime sec.Lifetime `env:"REFRESH_TOKEN_LIFETIME" envDefault:"7d"`
	CookieAllowInsecure  bool         `env:"COOKIE_ALLOW_INSECURE"  envDefault:"false"`

	// Password reset
	FrontendBaseURL      string        `env:"FRONTEND_BASE_URL"      envDefault:"http://localhost:3000"`
	ResetRevokesSessions bool          `env:"RESET_REVOKES_SESSIONS" envDefault:"false"`
	ResetThrottleLimit   int           `env:"RESET_THROTTLE_LIMIT"   envDefault:"5"`
	ResetThrottleWindow  time.Duration `env:"RESET_THROTTLE_WINDOW"  envDefault:"15m"`

	// Outbound mail (RabbitMQ). Empty AMQPURL selects the log mailer.
	AMQPURL   string `env:"AMQP_URL"`
	MailQueue string `env:"MAIL_QUEUE" envDefault:"mail.outbound"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing, or if a
	// lifetime does not match the expected grammar.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.ResetThrottleLimit < 0 {
		return errors.New("RESET_THROTTLE_LIMIT must not be negative")
	}
	if c.CookieAllowInsecure && c.IsProduction() {
		return errors.New("COOKIE_ALLOW_INSECURE cannot be enabled in production")
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// InsecureCookies reports whether the refresh cookie may drop the Secure flag.
// Only honoured in development.
func (c *Config) InsecureCookies() bool {
	return c.CookieAllowInsecure && c.IsDevelopment()
}

// AllowedOrigins returns the CORS allow-list: the frontend plus EXTRA_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	origins := []string{strings.TrimRight(c.FrontendBaseURL, "/")}
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, strings.TrimRight(origin, "/"))
		}
	}
	return origins
}

// TokenConfig projects the signing settings for [sec.NewTokenIssuer].
func (c *Config) TokenConfig(issuer string) sec.TokenConfig {
	return sec.TokenConfig{
		AccessSecret:    c.AccessTokenSecret,
		RefreshSecret:   c.RefreshTokenSecret,
		AccessLifetime:  c.AccessTokenLifetime,
		RefreshLifetime: c.RefreshTokenLifetime,
		Issuer:          issuer,
	}
}
