// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ForgotPassword starts a password reset for the email. Unknown and inactive
// emails succeed with no side effects so callers cannot probe for accounts.
// Delivery failures are logged, not returned.
func (s *Service) ForgotPassword(ctx context.Context, email string, origin Origin) error {
	email = NormalizeEmail(email)

	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").With("operation", "get identity by email").Wrap(err)
	}
	if !identity.Active {
		return nil
	}

	token, hash, err := GenerateOpaqueToken()
	if err != nil {
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").With("operation", "generate reset token").Wrap(err)
	}
	expiresAt := s.clock().Add(s.cfg.ResetTokenTTL)
	if err := s.identities.SetPasswordResetToken(ctx, identity.ID, hash, expiresAt); err != nil {
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "set reset token").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}

	if err := s.notifier.SendPasswordReset(ctx, email, token); err != nil {
		s.bestEffort(ctx, "send_password_reset", err, "identity_id", identity.ID.String())
	}
	s.audit.Record(ctx, identityEntry(ActionPasswordResetRequested, identity.ID, origin, map[string]any{
		"expires_at": expiresAt,
	}))
	return nil
}

// ResetPassword sets a new password using a reset token, consumes the token
// and deactivates every session of the identity.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirmPassword string, origin Origin) error {
	if password != confirmPassword {
		return oops.Code(CodePasswordMismatch).Errorf("passwords do not match")
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return err
	}
	if token == "" {
		return errInvalidOrExpiredToken()
	}

	now := s.clock()
	tokenHash := HashToken(token)
	identity, err := s.identities.GetByResetTokenHash(ctx, tokenHash)
	if errors.Is(err, ErrNotFound) {
		return errInvalidOrExpiredToken()
	}
	if err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").With("operation", "get identity by reset token").Wrap(err)
	}
	if !identity.ResetTokenValidAt(now) {
		return errInvalidOrExpiredToken()
	}

	revoked, err := s.replacePassword(ctx, identity.ID, password, func(ctx context.Context, hash string, at time.Time) error {
		return s.identities.ResetPassword(ctx, identity.ID, tokenHash, hash, at)
	})
	if errors.Is(err, ErrNotFound) {
		// Consumed by a concurrent reset, or replaced, since the lookup.
		return errInvalidOrExpiredToken()
	}
	if err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").With("identity_id", identity.ID.String()).Wrap(err)
	}

	s.audit.Record(ctx, identityEntry(ActionPasswordReset, identity.ID, origin, map[string]any{
		"sessions_revoked": revoked,
	}))
	return nil
}

// ChangePassword replaces the password of a signed-in identity after checking
// the current one, then deactivates all of its sessions.
func (s *Service) ChangePassword(ctx context.Context, identityID ulid.ULID, currentPassword, newPassword, confirmPassword string, origin Origin) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeNotFound).With("identity_id", identityID.String()).Errorf("identity not found")
	}
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "get identity").Wrap(err)
	}

	valid, err := s.hasher.Verify(currentPassword, identity.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "verify password").Wrap(err)
	}
	if !valid {
		return errInvalidCredentials()
	}
	if newPassword != confirmPassword {
		return oops.Code(CodePasswordMismatch).Errorf("passwords do not match")
	}
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	revoked, err := s.replacePassword(ctx, identity.ID, newPassword, func(ctx context.Context, hash string, at time.Time) error {
		return s.identities.UpdatePassword(ctx, identity.ID, hash, at)
	})
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("identity_id", identity.ID.String()).Wrap(err)
	}

	s.audit.Record(ctx, identityEntry(ActionPasswordChanged, identity.ID, origin, map[string]any{
		"sessions_revoked": revoked,
	}))
	return nil
}

// replacePassword hashes the new password and, in one transaction, stores it
// through write and deactivates all sessions. Returns the number of sessions
// deactivated.
func (s *Service) replacePassword(ctx context.Context, identityID ulid.ULID, password string,
	write func(ctx context.Context, hash string, at time.Time) error,
) (int64, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, oops.With("operation", "hash password").Wrap(err)
	}

	now := s.clock()
	var revoked int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := write(ctx, hash, now); err != nil {
			return oops.With("operation", "update password").Wrap(err)
		}
		n, err := s.deactivateAll(ctx, identityID, now)
		if err != nil {
			return err
		}
		revoked = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "password replaced",
		"identity_id", identityID.String(),
		"sessions_revoked", revoked)
	return revoked, nil
}
