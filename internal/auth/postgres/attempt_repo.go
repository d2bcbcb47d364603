// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/pressroom/pressroom/internal/auth"
)

// LoginAttemptRepository implements auth.LoginAttemptRepository using PostgreSQL.
type LoginAttemptRepository struct {
	pool Pool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository.
func NewLoginAttemptRepository(pool Pool) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: pool}
}

// Record appends an attempt.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *auth.LoginAttempt) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO login_attempts (id, email, ip_address, user_agent, success, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		attempt.ID.String(),
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
		attempt.CreatedAt,
	)
	if err != nil {
		return oops.Code("LOGIN_ATTEMPT_RECORD_FAILED").
			With("operation", "insert login attempt").
			Wrap(err)
	}
	return nil
}

// CountFailuresByEmail counts non-throttle failures for the email since the given time.
func (r *LoginAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE email = $1 AND NOT success AND created_at >= $2
			AND failure_reason IS DISTINCT FROM $3
	`, email, since, auth.FailureTooManyAttempts).Scan(&n)
	if err != nil {
		return 0, oops.Code("LOGIN_ATTEMPT_COUNT_FAILED").
			With("operation", "count failures by email").
			Wrap(err)
	}
	return n, nil
}

// CountFailuresByIP counts non-throttle failures from the address since the given time.
func (r *LoginAttemptRepository) CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE ip_address = $1 AND NOT success AND created_at >= $2
			AND failure_reason IS DISTINCT FROM $3
	`, ipAddress, since, auth.FailureTooManyAttempts).Scan(&n)
	if err != nil {
		return 0, oops.Code("LOGIN_ATTEMPT_COUNT_FAILED").
			With("operation", "count failures by ip").
			Wrap(err)
	}
	return n, nil
}

// DeleteBefore removes attempts older than the given time.
func (r *LoginAttemptRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM login_attempts WHERE created_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("LOGIN_ATTEMPT_DELETE_FAILED").
			With("operation", "delete old login attempts").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.LoginAttemptRepository = (*LoginAttemptRepository)(nil)
