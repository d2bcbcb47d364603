// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

// Package config loads the pressroom configuration from defaults, an optional
// YAML file, command-line flags and secret environment variables, in that
// order of precedence.
package config

import (
	"time"

	"github.com/samber/oops"

	"github.com/pressroom/pressroom/internal/auth"
	"github.com/pressroom/pressroom/internal/logging"
	"github.com/pressroom/pressroom/internal/mail"
	"github.com/pressroom/pressroom/internal/store"
)

// Config is the complete runtime configuration.
type Config struct {
	Database  DatabaseConfig  `koanf:"database" json:"database,omitempty"`
	Auth      AuthConfig      `koanf:"auth" json:"auth,omitempty"`
	RateLimit RateLimitConfig `koanf:"rate_limit" json:"rate_limit,omitempty"`
	Sweeper   SweeperConfig   `koanf:"sweeper" json:"sweeper,omitempty"`
	SMTP      SMTPConfig      `koanf:"smtp" json:"smtp,omitempty"`
	Log       LogConfig       `koanf:"log" json:"log,omitempty"`
	Metrics   MetricsConfig   `koanf:"metrics" json:"metrics,omitempty"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	// URL is normally supplied through DATABASE_URL rather than the file.
	URL             string        `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL; prefer the DATABASE_URL environment variable"`
	MaxConns        int32         `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=1"`
	ConnectAttempts uint64        `koanf:"connect_attempts" json:"connect_attempts,omitempty" jsonschema:"minimum=1"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff" json:"connect_backoff,omitempty"`
}

// AuthConfig holds token, session and hashing settings.
type AuthConfig struct {
	TokenSecret       string        `koanf:"token_secret" json:"token_secret,omitempty" jsonschema:"description=HS256 signing secret; prefer the PRESSROOM_TOKEN_SECRET environment variable"`
	TokenIssuer       string        `koanf:"token_issuer" json:"token_issuer,omitempty"`
	AccessTokenTTL    time.Duration `koanf:"access_token_ttl" json:"access_token_ttl,omitempty"`
	SessionTTL        time.Duration `koanf:"session_ttl" json:"session_ttl,omitempty"`
	RememberMeTTL     time.Duration `koanf:"remember_me_ttl" json:"remember_me_ttl,omitempty"`
	ResetTokenTTL     time.Duration `koanf:"reset_token_ttl" json:"reset_token_ttl,omitempty"`
	PasswordAlgorithm string        `koanf:"password_algorithm" json:"password_algorithm,omitempty" jsonschema:"enum=bcrypt,enum=argon2id"`
	WorkFactor        int           `koanf:"work_factor" json:"work_factor,omitempty" jsonschema:"minimum=1"`
}

// RateLimitConfig holds the login throttle thresholds.
type RateLimitConfig struct {
	MaxAttempts int           `koanf:"max_attempts" json:"max_attempts,omitempty" jsonschema:"minimum=1"`
	Window      time.Duration `koanf:"window" json:"window,omitempty"`
}

// SweeperConfig configures the background retention sweep.
type SweeperConfig struct {
	Interval         time.Duration `koanf:"interval" json:"interval,omitempty"`
	AttemptRetention time.Duration `koanf:"attempt_retention" json:"attempt_retention,omitempty"`
}

// SMTPConfig configures outbound mail. An empty Host selects the log notifier.
type SMTPConfig struct {
	Host     string `koanf:"host" json:"host,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`
	Username string `koanf:"username" json:"username,omitempty"`
	Password string `koanf:"password" json:"password,omitempty" jsonschema:"description=prefer the PRESSROOM_SMTP_PASSWORD environment variable"`
	From     string `koanf:"from" json:"from,omitempty"`
	// ResetURL and VerifyURL are link prefixes; the token is appended as a
	// "token" query parameter.
	ResetURL  string `koanf:"reset_url" json:"reset_url,omitempty"`
	VerifyURL string `koanf:"verify_url" json:"verify_url,omitempty"`
	// Timeout bounds the delivery of one message.
	Timeout time.Duration `koanf:"timeout" json:"timeout,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			MaxConns:        store.DefaultMaxConns,
			ConnectAttempts: store.DefaultConnectAttempts,
			ConnectBackoff:  store.DefaultConnectBackoff,
		},
		Auth: AuthConfig{
			TokenIssuer:       auth.DefaultTokenIssuer,
			AccessTokenTTL:    auth.DefaultAccessTTL,
			SessionTTL:        auth.DefaultSessionTTL,
			RememberMeTTL:     auth.DefaultRememberMeTTL,
			ResetTokenTTL:     auth.DefaultResetTokenTTL,
			PasswordAlgorithm: auth.AlgorithmBcrypt,
			WorkFactor:        auth.DefaultWorkFactor,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: auth.DefaultMaxAttempts,
			Window:      auth.DefaultRateWindow,
		},
		Sweeper: SweeperConfig{
			Interval:         auth.DefaultSweeperConfig().Interval,
			AttemptRetention: auth.DefaultSweeperConfig().AttemptRetention,
		},
		SMTP: SMTPConfig{Port: 587, Timeout: mail.DefaultTimeout},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{Addr: ":9100"},
	}
}

// Validate checks the ranges the rest of the program relies on. Secrets are
// checked by ValidateSecrets because not every command needs them.
func (c *Config) Validate() error {
	positive := map[string]time.Duration{
		"auth.access_token_ttl":     c.Auth.AccessTokenTTL,
		"auth.session_ttl":          c.Auth.SessionTTL,
		"auth.remember_me_ttl":      c.Auth.RememberMeTTL,
		"auth.reset_token_ttl":      c.Auth.ResetTokenTTL,
		"rate_limit.window":         c.RateLimit.Window,
		"sweeper.interval":          c.Sweeper.Interval,
		"sweeper.attempt_retention": c.Sweeper.AttemptRetention,
		"database.connect_backoff":  c.Database.ConnectBackoff,
		"smtp.timeout":              c.SMTP.Timeout,
	}
	for key, d := range positive {
		if d <= 0 {
			return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s must be positive, got %s", key, d)
		}
	}

	switch {
	case c.Auth.RememberMeTTL < c.Auth.SessionTTL:
		return oops.Code("CONFIG_INVALID").With("key", "auth.remember_me_ttl").
			Errorf("remember_me_ttl must not be shorter than session_ttl")
	case c.RateLimit.MaxAttempts < 1:
		return oops.Code("CONFIG_INVALID").With("key", "rate_limit.max_attempts").
			Errorf("max_attempts must be at least 1")
	case c.Database.MaxConns < 1:
		return oops.Code("CONFIG_INVALID").With("key", "database.max_conns").
			Errorf("max_conns must be at least 1")
	case c.Database.ConnectAttempts < 1:
		return oops.Code("CONFIG_INVALID").With("key", "database.connect_attempts").
			Errorf("connect_attempts must be at least 1")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return oops.Code("CONFIG_INVALID").With("key", "log.format").
			Errorf("log format must be json or text, got %q", c.Log.Format)
	case c.SMTP.Host != "" && c.SMTP.From == "":
		return oops.Code("CONFIG_INVALID").With("key", "smtp.from").
			Errorf("smtp.from is required when smtp.host is set")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	if _, err := auth.NewPasswordHasher(c.Auth.PasswordAlgorithm, c.Auth.WorkFactor); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth.work_factor").Wrap(err)
	}
	return nil
}

// ValidateSecrets checks the values that come from the environment.
func (c *Config) ValidateSecrets() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_MISSING_SECRET").With("env", EnvDatabaseURL).
			Errorf("database url is required; set %s", EnvDatabaseURL)
	}
	if len(c.Auth.TokenSecret) < auth.MinTokenSecretLength {
		return oops.Code("CONFIG_MISSING_SECRET").With("env", EnvTokenSecret).
			Errorf("token secret must be at least %d bytes; set %s", auth.MinTokenSecretLength, EnvTokenSecret)
	}
	return nil
}

// ServiceConfig converts the settings into the auth service configuration.
func (c *Config) ServiceConfig() auth.Config {
	return auth.Config{
		SessionTTL:    c.Auth.SessionTTL,
		RememberMeTTL: c.Auth.RememberMeTTL,
		ResetTokenTTL: c.Auth.ResetTokenTTL,
		RateLimit: auth.RateLimitConfig{
			MaxAttempts: c.RateLimit.MaxAttempts,
			Window:      c.RateLimit.Window,
		},
	}
}

// SweeperSettings converts the settings into the sweeper configuration.
func (c *Config) SweeperSettings() auth.SweeperConfig {
	return auth.SweeperConfig{
		Interval:         c.Sweeper.Interval,
		AttemptRetention: c.Sweeper.AttemptRetention,
	}
}

// ConnectOptions converts the settings into pool options.
func (c *Config) ConnectOptions() store.ConnectOptions {
	return store.ConnectOptions{
		MaxConns: c.Database.MaxConns,
		Attempts: c.Database.ConnectAttempts,
		Backoff:  c.Database.ConnectBackoff,
	}
}

// MailSettings converts the settings into the SMTP notifier configuration.
func (c *Config) MailSettings() mail.Config {
	return mail.Config{
		Host:      c.SMTP.Host,
		Port:      c.SMTP.Port,
		Username:  c.SMTP.Username,
		Password:  c.SMTP.Password,
		From:      c.SMTP.From,
		ResetURL:  c.SMTP.ResetURL,
		VerifyURL: c.SMTP.VerifyURL,
		ResetTTL:  c.Auth.ResetTokenTTL,
		Timeout:   c.SMTP.Timeout,
	}
}
