// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// SweeperConfig defines the storage hygiene policy.
type SweeperConfig struct {
	AttemptRetention time.Duration // how long login attempts are kept
	Interval         time.Duration // how often a sweep runs
	Clock            func() time.Time
}

// DefaultSweeperConfig returns the default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		AttemptRetention: 30 * 24 * time.Hour,
		Interval:         time.Hour,
	}
}

// Sweeper periodically deletes expired sessions and old login attempts.
// It only removes rows no flow can use any more, so it never races
// foreground flows for correctness.
type Sweeper struct {
	cfg      SweeperConfig
	sessions SessionRepository
	attempts LoginAttemptRepository
	metrics  *Metrics
	logger   *slog.Logger
	clock    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a new sweeper.
func NewSweeper(cfg SweeperConfig, sessions SessionRepository, attempts LoginAttemptRepository, metrics *Metrics, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweeperConfig().Interval
	}
	if cfg.AttemptRetention <= 0 {
		cfg.AttemptRetention = DefaultSweeperConfig().AttemptRetention
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		cfg:      cfg,
		sessions: sessions,
		attempts: attempts,
		metrics:  metrics,
		logger:   logger,
		clock:    clock,
	}
}

// SweepResult reports what a single sweep removed.
type SweepResult struct {
	Sessions int64
	Attempts int64
}

// RunOnce executes a single sweep. Both deletes are attempted even if the
// first fails; errors are combined.
func (w *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	now := w.clock()
	var (
		result SweepResult
		errs   []error
	)

	sessions, err := w.sessions.DeleteExpired(ctx, now)
	if err != nil {
		w.logger.Error("delete expired sessions failed", "error", err)
		errs = append(errs, err)
	} else if sessions > 0 {
		result.Sessions = sessions
		w.metrics.SweptTotal.WithLabelValues("sessions").Add(float64(sessions))
		w.logger.Info("deleted expired sessions", "count", sessions)
	}

	attempts, err := w.attempts.DeleteBefore(ctx, now.Add(-w.cfg.AttemptRetention))
	if err != nil {
		w.logger.Error("delete old login attempts failed", "error", err)
		errs = append(errs, err)
	} else if attempts > 0 {
		result.Attempts = attempts
		w.metrics.SweptTotal.WithLabelValues("login_attempts").Add(float64(attempts))
		w.logger.Info("deleted old login attempts", "count", attempts)
	}

	return result, errors.Join(errs...)
}

// Start begins periodic sweeping.
func (w *Sweeper) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the sweeper and waits for the running sweep to finish.
func (w *Sweeper) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Sweeper) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	// Run once immediately
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
