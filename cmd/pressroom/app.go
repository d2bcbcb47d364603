// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/pressroom/pressroom/internal/auth"
	"github.com/pressroom/pressroom/internal/auth/postgres"
	"github.com/pressroom/pressroom/internal/config"
	"github.com/pressroom/pressroom/internal/logging"
	"github.com/pressroom/pressroom/internal/mail"
)

// cliOrigin is recorded in the audit log for operator commands.
var cliOrigin = auth.Origin{IPAddress: "127.0.0.1", UserAgent: "pressroom-cli"}

// app holds the wired auth components for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       Database
	metrics  *auth.Metrics
	service  *auth.Service
	sessions *postgres.SessionRepository
	attempts *postgres.LoginAttemptRepository
}

// openApp loads the configuration, connects to the database and wires the
// auth service. Callers must Close the returned app.
func openApp(ctx context.Context, cfg *config.Config, deps *Deps, registry prometheus.Registerer) (*app, error) {
	logger := logging.SetDefault(logging.Options{
		Service: "pressroom",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})

	if err := cfg.ValidateSecrets(); err != nil {
		return nil, err
	}

	opts := cfg.ConnectOptions()
	opts.Logger = logger
	db, err := deps.DatabaseFactory(ctx, cfg.Database.URL, opts)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}

	a, err := wire(cfg, db, deps.MailSender, logger, auth.NewMetrics(registry))
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// wire builds the auth service on top of an open database.
func wire(cfg *config.Config, db Database, sender mail.Sender, logger *slog.Logger, metrics *auth.Metrics) (*app, error) {
	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordAlgorithm, cfg.Auth.WorkFactor)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenIssuer, cfg.Auth.AccessTokenTTL, time.Now)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(cfg, sender, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		metrics:  metrics,
		sessions: postgres.NewSessionRepository(db),
		attempts: postgres.NewLoginAttemptRepository(db),
	}
	a.service, err = auth.NewService(auth.Dependencies{
		Identities: postgres.NewIdentityRepository(db),
		Sessions:   a.sessions,
		Attempts:   a.attempts,
		Audit:      postgres.NewAuditRepository(db),
		Hasher:     hasher,
		Tokens:     tokens,
		Notifier:   notifier,
		Transactor: postgres.NewTransactor(db),
	},
		auth.WithLogger(logger),
		auth.WithConfig(cfg.ServiceConfig()),
		auth.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newNotifier selects SMTP delivery when a host or sender is configured and
// falls back to logging notifications otherwise. The fallback writes tokens at
// debug level only.
func newNotifier(cfg *config.Config, sender mail.Sender, logger *slog.Logger) (auth.Notifier, error) {
	var (
		n   *mail.Notifier
		err error
	)
	switch {
	case sender != nil:
		n, err = mail.NewNotifierWithSender(sender, cfg.MailSettings())
	case cfg.SMTP.Host != "":
		n, err = mail.NewNotifier(cfg.MailSettings())
	default:
		logger.Warn("smtp not configured, reset and verification tokens are logged at debug level only",
			"debug_enabled", logger.Enabled(context.Background(), slog.LevelDebug))
		return auth.NewLogNotifier(logger), nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (a *app) sweeper() *auth.Sweeper {
	return auth.NewSweeper(a.cfg.SweeperSettings(), a.sessions, a.attempts, a.metrics, a.logger)
}

// Close releases the database pool.
func (a *app) Close() {
	a.db.Close()
}
