// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Rate limit defaults.
const (
	DefaultMaxAttempts = 5
	DefaultRateWindow  = 15 * time.Minute
)

// Failure reasons recorded on LoginAttempt.
const (
	FailureInvalidCredentials = "invalid credentials"
	FailureTooManyAttempts    = "too many attempts"
)

// LoginAttempt is an immutable record of one login call.
type LoginAttempt struct {
	ID            ulid.ULID
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason *string
	CreatedAt     time.Time
}

// NewLoginAttempt builds an attempt record. An empty reason marks success.
func NewLoginAttempt(email, ipAddress, userAgent, failureReason string, at time.Time) *LoginAttempt {
	attempt := &LoginAttempt{
		ID:        ulid.Make(),
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   failureReason == "",
		CreatedAt: at,
	}
	if failureReason != "" {
		attempt.FailureReason = &failureReason
	}
	return attempt
}

// LoginAttemptRepository is the append-only login attempt log.
type LoginAttemptRepository interface {
	// Record appends an attempt.
	Record(ctx context.Context, attempt *LoginAttempt) error

	// CountFailuresByEmail counts failed attempts for the email since the given
	// time, excluding attempts rejected by the throttle itself.
	CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error)

	// CountFailuresByIP counts failed attempts from the address since the given
	// time, excluding attempts rejected by the throttle itself.
	CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)

	// DeleteBefore removes attempts older than the given time and returns the
	// count of deleted records.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RateLimitConfig holds throttle thresholds.
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultRateLimitConfig returns 5 failures per 15 minutes.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts: DefaultMaxAttempts,
		Window:      DefaultRateWindow,
	}
}

// RateLimitResult contains the outcome of a throttle check.
type RateLimitResult struct {
	Allowed       bool
	EmailFailures int
	IPFailures    int
}

// RateLimiter throttles login attempts by counting recent failures in the
// attempt log, per email and per origin address. It keeps no counters of its
// own, so any number of processes share the same view.
type RateLimiter struct {
	attempts LoginAttemptRepository
	cfg      RateLimitConfig
}

// NewRateLimiter creates a RateLimiter. Zero config fields take defaults.
func NewRateLimiter(attempts LoginAttemptRepository, cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateWindow
	}
	return &RateLimiter{attempts: attempts, cfg: cfg}
}

// Check reports whether a login for email from ipAddress may proceed at now.
// An empty ipAddress skips the per-origin counter.
func (l *RateLimiter) Check(ctx context.Context, email, ipAddress string, now time.Time) (RateLimitResult, error) {
	since := now.Add(-l.cfg.Window)

	emailFailures, err := l.attempts.CountFailuresByEmail(ctx, email, since)
	if err != nil {
		return RateLimitResult{}, oops.Code("AUTH_RATE_LIMIT_FAILED").
			With("operation", "count failures by email").
			Wrap(err)
	}

	result := RateLimitResult{EmailFailures: emailFailures}
	if emailFailures >= l.cfg.MaxAttempts {
		return result, nil
	}

	if ipAddress != "" {
		ipFailures, err := l.attempts.CountFailuresByIP(ctx, ipAddress, since)
		if err != nil {
			return RateLimitResult{}, oops.Code("AUTH_RATE_LIMIT_FAILED").
				With("operation", "count failures by ip").
				Wrap(err)
		}
		result.IPFailures = ipFailures
		if ipFailures >= l.cfg.MaxAttempts {
			return result, nil
		}
	}

	result.Allowed = true
	return result, nil
}
