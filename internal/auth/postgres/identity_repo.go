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

const identityColumns = `id, email, password_hash, first_name, last_name, role, active, email_verified,
	verification_token_hash, password_reset_token_hash, password_reset_expires_at,
	last_login_at, password_changed_at, created_at, updated_at`

// IdentityRepository implements auth.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool Pool
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(pool Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Create stores a new identity.
func (r *IdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		identity.ID.String(),
		identity.Email,
		identity.PasswordHash,
		identity.FirstName,
		identity.LastName,
		string(identity.Role),
		identity.Active,
		identity.EmailVerified,
		identity.VerificationTokenHash,
		identity.PasswordResetTokenHash,
		identity.PasswordResetExpiresAt,
		identity.LastLoginAt,
		identity.PasswordChangedAt,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("IDENTITY_EMAIL_TAKEN").
			With("email", identity.Email).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert identity").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Identity, error) {
	return r.getOne(ctx, "id", id.String())
}

// GetByEmail retrieves an identity by normalized email.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	return r.getOne(ctx, "lower(email)", email)
}

// GetByResetTokenHash retrieves the identity holding the reset token hash.
func (r *IdentityRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.Identity, error) {
	return r.getOne(ctx, "password_reset_token_hash", tokenHash)
}

// GetByVerificationTokenHash retrieves the identity holding the verification token hash.
func (r *IdentityRepository) GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*auth.Identity, error) {
	return r.getOne(ctx, "verification_token_hash", tokenHash)
}

// getOne loads the single identity whose column equals value. column is
// always one of the fixed expressions above, never caller input.
func (r *IdentityRepository) getOne(ctx context.Context, column, value string) (*auth.Identity, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE `+column+` = $1`, value)

	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").With("by", column).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_FAILED").
			With("operation", "get identity").
			With("by", column).
			Wrap(err)
	}
	return identity, nil
}

// TouchLastLogin stamps last_login_at on an active identity.
func (r *IdentityRepository) TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.exec(ctx, "touch last login", "IDENTITY_TOUCH_LOGIN_FAILED", id, `
		UPDATE identities SET last_login_at = $2, updated_at = $2
		WHERE id = $1 AND active
	`, id.String(), at)
}

// Deactivate clears the active flag.
func (r *IdentityRepository) Deactivate(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.exec(ctx, "deactivate identity", "IDENTITY_DEACTIVATE_FAILED", id, `
		UPDATE identities SET active = false, updated_at = $2
		WHERE id = $1
	`, id.String(), at)
}

// MarkEmailVerified flips email_verified while the verification token is
// still the one that was presented.
func (r *IdentityRepository) MarkEmailVerified(ctx context.Context, id ulid.ULID, tokenHash string, at time.Time) error {
	return r.exec(ctx, "mark email verified", "IDENTITY_VERIFY_EMAIL_FAILED", id, `
		UPDATE identities
		SET email_verified = true, verification_token_hash = NULL, updated_at = $3
		WHERE id = $1 AND verification_token_hash = $2
	`, id.String(), tokenHash, at)
}

// SetVerificationToken replaces the verification token of an active,
// unverified identity.
func (r *IdentityRepository) SetVerificationToken(ctx context.Context, id ulid.ULID, tokenHash string, at time.Time) error {
	return r.exec(ctx, "set verification token", "IDENTITY_SET_VERIFICATION_TOKEN_FAILED", id, `
		UPDATE identities SET verification_token_hash = $2, updated_at = $3
		WHERE id = $1 AND active AND NOT email_verified
	`, id.String(), tokenHash, at)
}

// UpdatePassword stores a new hash, stamps password_changed_at and clears
// any pending reset token.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, changedAt time.Time) error {
	return r.exec(ctx, "update password", "IDENTITY_UPDATE_PASSWORD_FAILED", id, `
		UPDATE identities
		SET password_hash = $2, password_changed_at = $3, updated_at = $3,
			password_reset_token_hash = NULL, password_reset_expires_at = NULL
		WHERE id = $1
	`, id.String(), passwordHash, changedAt)
}

// ResetPassword is UpdatePassword consuming an unexpired reset token. Two
// concurrent resets with the same token cannot both match.
func (r *IdentityRepository) ResetPassword(ctx context.Context, id ulid.ULID, tokenHash, passwordHash string, changedAt time.Time) error {
	return r.exec(ctx, "reset password", "IDENTITY_UPDATE_PASSWORD_FAILED", id, `
		UPDATE identities
		SET password_hash = $2, password_changed_at = $3, updated_at = $3,
			password_reset_token_hash = NULL, password_reset_expires_at = NULL
		WHERE id = $1 AND password_reset_token_hash = $4 AND password_reset_expires_at > $3
	`, id.String(), passwordHash, changedAt, tokenHash)
}

// SetPasswordResetToken stores a reset token hash and expiry, replacing any
// earlier token.
func (r *IdentityRepository) SetPasswordResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return r.exec(ctx, "set reset token", "IDENTITY_SET_RESET_TOKEN_FAILED", id, `
		UPDATE identities
		SET password_reset_token_hash = $2, password_reset_expires_at = $3
		WHERE id = $1
	`, id.String(), tokenHash, expiresAt)
}

// exec runs a single-row UPDATE. A statement that matches no row reports
// IDENTITY_NOT_FOUND wrapping auth.ErrNotFound.
func (r *IdentityRepository) exec(ctx context.Context, operation, code string, id ulid.ULID, sql string, args ...any) error {
	result, err := conn(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code(code).
			With("operation", operation).
			With("identity_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("operation", operation).
			With("identity_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanIdentity scans a single row into an Identity.
// Callers are responsible for handling pgx.ErrNoRows.
func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		idStr    string
		role     string
		identity auth.Identity
	)

	err := row.Scan(
		&idStr,
		&identity.Email,
		&identity.PasswordHash,
		&identity.FirstName,
		&identity.LastName,
		&role,
		&identity.Active,
		&identity.EmailVerified,
		&identity.VerificationTokenHash,
		&identity.PasswordResetTokenHash,
		&identity.PasswordResetExpiresAt,
		&identity.LastLoginAt,
		&identity.PasswordChangedAt,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	identity.ID, err = parseULID(idStr, "identity_id")
	if err != nil {
		return nil, err
	}
	identity.Role = auth.Role(role)
	return &identity, nil
}

var _ auth.IdentityRepository = (*IdentityRepository)(nil)
