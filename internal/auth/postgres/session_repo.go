// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/pressroom/pressroom/internal/auth"
)

const sessionColumns = `id, identity_id, access_token_hash, refresh_token_hash, ip_address, user_agent,
	remember_me, active, expires_at, created_at, updated_at`

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		session.ID.String(),
		session.IdentityID.String(),
		session.AccessTokenHash,
		session.RefreshTokenHash,
		session.IPAddress,
		session.UserAgent,
		session.RememberMe,
		session.Active,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("SESSION_TOKEN_COLLISION").
			With("identity_id", session.IdentityID.String()).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("identity_id", session.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id.String())

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("session_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_ID_FAILED").
			With("operation", "get session by id").
			With("session_id", id.String()).
			Wrap(err)
	}
	return session, nil
}

// GetByRefreshTokenHash retrieves a session by its current refresh token hash.
func (r *SessionRepository) GetByRefreshTokenHash(ctx context.Context, refreshTokenHash string) (*auth.Session, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1`, refreshTokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_REFRESH_FAILED").
			With("operation", "get session by refresh token hash").
			Wrap(err)
	}
	return session, nil
}

// ListActiveByIdentity returns the identity's usable sessions, newest first.
func (r *SessionRepository) ListActiveByIdentity(ctx context.Context, identityID ulid.ULID, now time.Time) ([]*auth.Session, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE identity_id = $1 AND active AND expires_at > $2
		ORDER BY created_at DESC
	`, identityID.String(), now)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list active sessions").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan session row").
				Wrap(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}
	return sessions, nil
}

// Rotate swaps the token pair when the stored refresh hash still matches.
func (r *SessionRepository) Rotate(ctx context.Context, id ulid.ULID, oldRefreshHash, newAccessHash, newRefreshHash string, now time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE sessions
		SET access_token_hash = $3, refresh_token_hash = $4, updated_at = $5
		WHERE id = $1 AND refresh_token_hash = $2 AND active
	`, id.String(), oldRefreshHash, newAccessHash, newRefreshHash, now)
	if isUniqueViolation(err) {
		return oops.Code("SESSION_TOKEN_COLLISION").
			With("session_id", id.String()).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").
			With("operation", "rotate session tokens").
			With("session_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("session_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Deactivate marks one session inactive. Deactivating an inactive session
// is not an error.
func (r *SessionRepository) Deactivate(ctx context.Context, id ulid.ULID, now time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE sessions SET active = FALSE, updated_at = $2
		WHERE id = $1
	`, id.String(), now)
	if err != nil {
		return oops.Code("SESSION_DEACTIVATE_FAILED").
			With("operation", "deactivate session").
			With("session_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("session_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeactivateAll marks every active session of the identity inactive.
func (r *SessionRepository) DeactivateAll(ctx context.Context, identityID ulid.ULID, now time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE sessions SET active = FALSE, updated_at = $2
		WHERE identity_id = $1 AND active
	`, identityID.String(), now)
	if err != nil {
		return 0, oops.Code("SESSION_DEACTIVATE_ALL_FAILED").
			With("operation", "deactivate sessions by identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes sessions that expired before the given time.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans one row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr, identityIDStr string
		session              auth.Session
	)

	err := row.Scan(
		&idStr,
		&identityIDStr,
		&session.AccessTokenHash,
		&session.RefreshTokenHash,
		&session.IPAddress,
		&session.UserAgent,
		&session.RememberMe,
		&session.Active,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	if session.ID, err = parseULID(idStr, "session_id"); err != nil {
		return nil, err
	}
	if session.IdentityID, err = parseULID(identityIDStr, "identity_id"); err != nil {
		return nil, err
	}
	return &session, nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
