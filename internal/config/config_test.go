// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressroom/pressroom/internal/auth"
	"github.com/pressroom/pressroom/internal/mail"
	"github.com/pressroom/pressroom/pkg/errutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pressroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, auth.DefaultMaxAttempts, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, auth.DefaultWorkFactor, cfg.Auth.WorkFactor)
}

func TestLoader_DefaultsWithoutFileOrFlags(t *testing.T) {
	cfg, err := Loader{Getenv: env(nil)}.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  session_ttl: 12h
  remember_me_ttl: 720h
  password_algorithm: argon2id
  work_factor: 3
rate_limit:
  max_attempts: 3
  window: 10m
log:
  format: text
`)

	cfg, err := Loader{Path: path, Getenv: env(nil)}.Load()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, auth.AlgorithmArgon2id, cfg.Auth.PasswordAlgorithm)
	assert.Equal(t, 3, cfg.Auth.WorkFactor)
	assert.Equal(t, 3, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, auth.DefaultAccessTTL, cfg.Auth.AccessTokenTTL, "unset keys keep defaults")
}

func TestLoader_FlagPrecedence(t *testing.T) {
	path := writeConfig(t, `
log:
  format: text
  level: warn
metrics:
  addr: ":9200"
`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level=debug", "--sweeper-interval=5m"}))

	cfg, err := Loader{Path: path, Flags: fs, Getenv: env(nil)}.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level, "changed flag beats file")
	assert.Equal(t, "text", cfg.Log.Format, "unchanged flag does not mask file")
	assert.Equal(t, ":9200", cfg.Metrics.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Sweeper.Interval)
}

func TestLoader_SecretsComeFromEnvironment(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://file@db/pressroom
`)
	secret := strings.Repeat("s", auth.MinTokenSecretLength)

	cfg, err := Loader{Path: path, Getenv: env(map[string]string{
		EnvDatabaseURL:  "postgres://env@db/pressroom",
		EnvTokenSecret:  secret,
		EnvSMTPPassword: " hunter2 ",
	})}.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@db/pressroom", cfg.Database.URL)
	assert.Equal(t, secret, cfg.Auth.TokenSecret)
	assert.Equal(t, "hunter2", cfg.SMTP.Password)
	require.NoError(t, cfg.ValidateSecrets())
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"unknown key", "auth:\n  sesion_ttl: 1h\n", "CONFIG_SCHEMA_INVALID"},
		{"wrong type", "rate_limit:\n  max_attempts: lots\n", "CONFIG_SCHEMA_INVALID"},
		{"bad duration", "auth:\n  session_ttl: forever\n", "CONFIG_SCHEMA_INVALID"},
		{"unknown algorithm", "auth:\n  password_algorithm: md5\n", "CONFIG_SCHEMA_INVALID"},
		{"not yaml", "auth: [unterminated\n", "CONFIG_SCHEMA_INVALID"},
		{"remember me shorter than session", "auth:\n  session_ttl: 48h\n  remember_me_ttl: 24h\n", "CONFIG_INVALID"},
		{"bcrypt cost out of range", "auth:\n  work_factor: 40\n", "AUTH_INVALID_WORK_FACTOR"},
		{"smtp without sender", "smtp:\n  host: mail.example.com\n", "CONFIG_INVALID"},
		{"zero smtp timeout", "smtp:\n  timeout: 0s\n", "CONFIG_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Loader{Path: writeConfig(t, tt.body), Getenv: env(nil)}.Load()
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := Loader{Path: filepath.Join(t.TempDir(), "absent.yaml")}.Load()
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, "rate_limit.window"},
		{"zero attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }, "rate_limit.max_attempts"},
		{"negative access ttl", func(c *Config) { c.Auth.AccessTokenTTL = -time.Second }, "auth.access_token_ttl"},
		{"zero pool", func(c *Config) { c.Database.MaxConns = 0 }, "database.max_conns"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}

	t.Run("bad level keeps logging code", func(t *testing.T) {
		cfg := Default()
		cfg.Log.Level = "loud"
		errutil.AssertErrorCode(t, cfg.Validate(), "LOG_LEVEL_INVALID")
	})
}

func TestValidateSecrets(t *testing.T) {
	cfg := Default()
	errutil.AssertErrorContext(t, cfg.ValidateSecrets(), "env", EnvDatabaseURL)

	cfg.Database.URL = "postgres://db/pressroom"
	cfg.Auth.TokenSecret = "short"
	errutil.AssertErrorContext(t, cfg.ValidateSecrets(), "env", EnvTokenSecret)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.MaxAttempts = 9

	svc := cfg.ServiceConfig()
	assert.Equal(t, 9, svc.RateLimit.MaxAttempts)
	assert.Equal(t, cfg.Auth.SessionTTL, svc.SessionTTL)
	assert.Equal(t, cfg.Auth.ResetTokenTTL, svc.ResetTokenTTL)

	sw := cfg.SweeperSettings()
	assert.Equal(t, cfg.Sweeper.Interval, sw.Interval)

	opts := cfg.ConnectOptions()
	assert.Equal(t, cfg.Database.MaxConns, opts.MaxConns)
	assert.Equal(t, cfg.Database.ConnectAttempts, opts.Attempts)

	cfg.SMTP.Host = "mail.example.com"
	m := cfg.MailSettings()
	assert.Equal(t, "mail.example.com", m.Host)
	assert.Equal(t, 587, m.Port)
	assert.Equal(t, cfg.Auth.ResetTokenTTL, m.ResetTTL)
	assert.Equal(t, mail.DefaultTimeout, m.Timeout)

	cfg.SMTP.Timeout = 5 * time.Second
	assert.Equal(t, 5*time.Second, cfg.MailSettings().Timeout)
}
