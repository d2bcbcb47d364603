// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RegisterRequest carries a self-service registration.
// Role is optional and defaults to RoleViewer.
type RegisterRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	Role            Role
	Origin          Origin
}

// RegisterResult is returned by a successful Register.
type RegisterResult struct {
	Identity *Identity
	Tokens   *IssuedTokens
}

// Register creates an unverified identity and issues it a token pair.
//
// Registration does not open a session: the tokens identify the new account
// but the refresh token is not backed by a session row, so clients are
// expected to log in to obtain a refreshable session.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if req.Password != req.ConfirmPassword {
		return nil, oops.Code(CodePasswordMismatch).Errorf("passwords do not match")
	}
	email := NormalizeEmail(req.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = RoleViewer
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_INVALID_ROLE").With("role", string(role)).Errorf("unknown role %q", role)
	}

	_, err := s.identities.GetByEmail(ctx, email)
	if err == nil {
		return nil, errAlreadyExists(email)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "get identity by email").Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}
	verifyToken, verifyHash, err := GenerateOpaqueToken()
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "generate verification token").Wrap(err)
	}

	now := s.clock()
	identity := &Identity{
		ID:                    ulid.Make(),
		Email:                 email,
		PasswordHash:          hash,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		Role:                  role,
		Active:                true,
		EmailVerified:         false,
		VerificationTokenHash: &verifyHash,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	tokens, err := s.tokens.Issue(identity.ID, ulid.ULID{})
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "issue tokens").Wrap(err)
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, errAlreadyExists(email)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create identity").Wrap(err)
	}

	if err := s.notifier.SendVerification(ctx, email, verifyToken); err != nil {
		s.bestEffort(ctx, "send_verification", err, "identity_id", identity.ID.String())
	}
	s.audit.Record(ctx, identityEntry(ActionRegister, identity.ID, req.Origin, map[string]any{
		"email": email,
		"role":  string(role),
	}))

	return &RegisterResult{Identity: identity, Tokens: tokens}, nil
}

// VerifyEmail marks the identity holding the verification token as verified
// and clears the token.
func (s *Service) VerifyEmail(ctx context.Context, token string, origin Origin) error {
	if token == "" {
		return errInvalidOrExpiredToken()
	}

	hash := HashToken(token)
	identity, err := s.identities.GetByVerificationTokenHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return errInvalidOrExpiredToken()
	}
	if err != nil {
		return oops.Code("AUTH_VERIFY_EMAIL_FAILED").With("operation", "get identity by verification token").Wrap(err)
	}

	err = s.identities.MarkEmailVerified(ctx, identity.ID, hash, s.clock())
	if errors.Is(err, ErrNotFound) {
		// The token was consumed or replaced since the lookup.
		return errInvalidOrExpiredToken()
	}
	if err != nil {
		return oops.Code("AUTH_VERIFY_EMAIL_FAILED").
			With("operation", "mark email verified").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}

	s.audit.Record(ctx, identityEntry(ActionEmailVerified, identity.ID, origin, nil))
	return nil
}

// ResendVerification issues a fresh verification token. Unknown, inactive or
// already verified emails succeed without side effects.
func (s *Service) ResendVerification(ctx context.Context, email string, origin Origin) error {
	email = NormalizeEmail(email)

	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("AUTH_RESEND_VERIFICATION_FAILED").With("operation", "get identity by email").Wrap(err)
	}
	if identity.EmailVerified || !identity.Active {
		return nil
	}

	token, hash, err := GenerateOpaqueToken()
	if err != nil {
		return oops.Code("AUTH_RESEND_VERIFICATION_FAILED").With("operation", "generate verification token").Wrap(err)
	}
	err = s.identities.SetVerificationToken(ctx, identity.ID, hash, s.clock())
	if errors.Is(err, ErrNotFound) {
		// Verified or deactivated since the lookup.
		return nil
	}
	if err != nil {
		return oops.Code("AUTH_RESEND_VERIFICATION_FAILED").
			With("operation", "set verification token").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}

	if err := s.notifier.SendVerification(ctx, email, token); err != nil {
		s.bestEffort(ctx, "send_verification", err, "identity_id", identity.ID.String())
	}
	s.audit.Record(ctx, identityEntry(ActionVerificationResent, identity.ID, origin, nil))
	return nil
}

// BootstrapRequest describes the initial administrator account.
type BootstrapRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// BootstrapAdmin creates a verified administrator unless an identity with the
// email already exists. It reports whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context, req BootstrapRequest) (*Identity, bool, error) {
	email := NormalizeEmail(req.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, false, err
	}

	existing, err := s.identities.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, oops.Code("AUTH_BOOTSTRAP_FAILED").With("operation", "get identity by email").Wrap(err)
	}

	if err := ValidatePasswordStrength(req.Password); err != nil {
		return nil, false, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, false, oops.Code("AUTH_BOOTSTRAP_FAILED").With("operation", "hash password").Wrap(err)
	}

	now := s.clock()
	identity := &Identity{
		ID:            ulid.Make(),
		Email:         email,
		PasswordHash:  hash,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          RoleAdmin,
		Active:        true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, false, errAlreadyExists(email)
		}
		return nil, false, oops.Code("AUTH_BOOTSTRAP_FAILED").With("operation", "create identity").Wrap(err)
	}

	s.audit.Record(ctx, &AuditEntry{
		Action:       ActionBootstrapUserCreated,
		ResourceType: ResourceIdentity,
		ResourceID:   identity.ID.String(),
		Details:      map[string]any{"email": email, "role": string(RoleAdmin)},
	})
	s.logger.InfoContext(ctx, "bootstrap administrator created", "identity_id", identity.ID.String())

	return identity, true, nil
}

func errAlreadyExists(email string) error {
	return oops.Code(CodeAlreadyExists).With("email", email).Errorf("an account with this email already exists")
}

func errInvalidOrExpiredToken() error {
	return oops.Code(CodeInvalidOrExpiredToken).Errorf("token is invalid or has expired")
}
