// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session lifetimes.
const (
	DefaultSessionTTL    = 7 * 24 * time.Hour
	DefaultRememberMeTTL = 30 * 24 * time.Hour
)

// Session is one authenticated device or browser for an identity.
// Token values are held only as SHA256 digests.
type Session struct {
	ID               ulid.ULID
	IdentityID       ulid.ULID
	AccessTokenHash  string
	RefreshTokenHash string
	IPAddress        string
	UserAgent        string
	RememberMe       bool
	Active           bool
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewSession creates a validated, active Session.
// IPAddress and UserAgent are optional and may be empty.
func NewSession(identityID ulid.ULID, accessTokenHash, refreshTokenHash, ipAddress, userAgent string,
	rememberMe bool, expiresAt, now time.Time,
) (*Session, error) {
	if identityID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_IDENTITY").Errorf("identity ID cannot be zero")
	}
	if accessTokenHash == "" || refreshTokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hashes cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry must be in the future")
	}

	return &Session{
		ID:               ulid.Make(),
		IdentityID:       identityID,
		AccessTokenHash:  accessTokenHash,
		RefreshTokenHash: refreshTokenHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		RememberMe:       rememberMe,
		Active:           true,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// UsableAt reports whether the session is active and unexpired at t.
func (s *Session) UsableAt(t time.Time) bool {
	return s.Active && !s.IsExpiredAt(t)
}

// SessionRepository manages session persistence.
// Sessions are deactivated, never reactivated; rows are physically removed
// only by DeleteExpired.
type SessionRepository interface {
	// Create stores a new session.
	// Returns ErrAlreadyExists if the refresh token hash collides.
	Create(ctx context.Context, session *Session) error

	// GetByID retrieves a session by its ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Session, error)

	// GetByRefreshTokenHash retrieves a session by its current refresh token hash.
	GetByRefreshTokenHash(ctx context.Context, refreshTokenHash string) (*Session, error)

	// ListActiveByIdentity returns the identity's sessions that are active
	// and unexpired at now, newest first.
	ListActiveByIdentity(ctx context.Context, identityID ulid.ULID, now time.Time) ([]*Session, error)

	// Rotate replaces the token pair of an active session in place, keeping
	// its ID, origin metadata and expiry. The swap only happens if the stored
	// refresh hash still equals oldRefreshHash; otherwise ErrNotFound.
	Rotate(ctx context.Context, id ulid.ULID, oldRefreshHash, newAccessHash, newRefreshHash string, now time.Time) error

	// Deactivate marks one session inactive.
	Deactivate(ctx context.Context, id ulid.ULID, now time.Time) error

	// DeactivateAll marks every active session of the identity inactive and
	// returns how many were changed.
	DeactivateAll(ctx context.Context, identityID ulid.ULID, now time.Time) (int64, error)

	// DeleteExpired removes sessions that expired before the given time and
	// returns the count of deleted records.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
