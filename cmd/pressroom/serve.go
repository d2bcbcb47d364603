// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pressroom/pressroom/internal/store"
	"github.com/pressroom/pressroom/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the auth daemon",
		Long: `Run the auth daemon: connect to PostgreSQL, sweep expired sessions
and old login attempts on an interval, and serve metrics and health probes
until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(commandContext(cmd), cmd, deps.withDefaults())
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The registry has to exist before the service registers its metrics, but
	// readiness depends on the pool, so the probe reads it lazily.
	var (
		obsServer ObservabilityServer
		registry  prometheus.Registerer
		ready     func(context.Context) bool
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func(ctx context.Context) bool {
			return ready != nil && ready(ctx)
		}, slog.Default())
		registry = obsServer.Registry()
	}

	a, err := openApp(ctx, cfg, deps, registry)
	if err != nil {
		errutil.LogError(ctx, slog.Default(), "startup failed", err)
		return err
	}
	defer a.Close()
	ready = store.ReadinessCheck(a.db)

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			errutil.LogError(ctx, a.logger, "failed to start observability server", err)
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", a.logger)
		a.logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sweeper := a.sweeper()
	sweeper.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Pressroom auth daemon started")
	a.logger.Info("auth daemon ready",
		"sweep_interval", cfg.Sweeper.Interval,
		"metrics_addr", cfg.Metrics.Addr,
	)

	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}

	sweeper.Stop()

	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("error stopping observability server", "error", err)
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when the server reports an error.
// It exits when an error is received, the channel is closed, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
