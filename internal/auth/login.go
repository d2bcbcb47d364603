// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// LoginRequest carries the credentials and origin of a login call.
type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
	Origin     Origin
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Identity *Identity
	Session  *Session
	Tokens   *IssuedTokens
}

// RefreshResult is returned by a successful RefreshToken.
type RefreshResult struct {
	Identity *Identity
	Session  *Session
	Tokens   *IssuedTokens
}

// Login verifies credentials and opens a new session.
//
// Unknown email, inactive identity and wrong password all fail with
// AUTH_INVALID_CREDENTIALS. Once the email or origin has MaxAttempts failures
// inside the window, the call fails with AUTH_TOO_MANY_ATTEMPTS before the
// password is checked. Every call appends a LoginAttempt.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := NormalizeEmail(req.Email)
	now := s.clock()

	limit, err := s.limiter.Check(ctx, email, req.Origin.IPAddress, now)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "rate limit check").Wrap(err)
	}
	if !limit.Allowed {
		s.recordFailedAttempt(ctx, email, req.Origin, FailureTooManyAttempts, now)
		s.metrics.LoginsTotal.WithLabelValues(OutcomeThrottled).Inc()
		s.audit.Record(ctx, &AuditEntry{
			Action:       ActionLoginFailed,
			ResourceType: ResourceIdentity,
			Details: map[string]any{
				"email":          email,
				"reason":         FailureTooManyAttempts,
				"email_failures": limit.EmailFailures,
				"ip_failures":    limit.IPFailures,
			},
			IPAddress: req.Origin.IPAddress,
			UserAgent: req.Origin.UserAgent,
		})
		return nil, oops.Code(CodeTooManyAttempts).
			With("email", email).
			Errorf("too many failed login attempts, try again later")
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get identity by email").Wrap(err)
	}
	if identity == nil {
		// Burn a verification so unknown emails cost as much as known ones.
		_, _ = s.hasher.Verify(req.Password, s.timingHash())
		return nil, s.failLogin(ctx, email, req.Origin, nil, now)
	}

	valid, err := s.hasher.Verify(req.Password, identity.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	if !valid || !identity.Active {
		return nil, s.failLogin(ctx, email, req.Origin, &identity.ID, now)
	}

	sessionID := ulid.Make()
	tokens, err := s.tokens.Issue(identity.ID, sessionID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue tokens").Wrap(err)
	}
	session, err := NewSession(identity.ID, HashToken(tokens.AccessToken), HashToken(tokens.RefreshToken),
		req.Origin.IPAddress, req.Origin.UserAgent, req.RememberMe, now.Add(s.sessionTTL(req.RememberMe)), now)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "build session").Wrap(err)
	}
	session.ID = sessionID

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.TouchLastLogin(ctx, identity.ID, now); err != nil {
			return oops.With("operation", "touch last login").Wrap(err)
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return oops.With("operation", "create session").Wrap(err)
		}
		if err := s.attempts.Record(ctx, NewLoginAttempt(email, req.Origin.IPAddress, req.Origin.UserAgent, "", now)); err != nil {
			return oops.With("operation", "record attempt").Wrap(err)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		// Deactivated after the credential check.
		return nil, s.failLogin(ctx, email, req.Origin, &identity.ID, now)
	}
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("identity_id", identity.ID.String()).Wrap(err)
	}

	updated := *identity
	updated.LastLoginAt = &now
	updated.UpdatedAt = now

	s.metrics.LoginsTotal.WithLabelValues(OutcomeSuccess).Inc()
	s.audit.Record(ctx, identityEntry(ActionLogin, identity.ID, req.Origin, map[string]any{
		"session_id":  session.ID.String(),
		"remember_me": req.RememberMe,
	}))

	return &LoginResult{Identity: &updated, Session: session, Tokens: tokens}, nil
}

// failLogin records a credential failure and returns the generic error.
func (s *Service) failLogin(ctx context.Context, email string, origin Origin, identityID *ulid.ULID, now time.Time) error {
	s.recordFailedAttempt(ctx, email, origin, FailureInvalidCredentials, now)
	s.metrics.LoginsTotal.WithLabelValues(OutcomeFailure).Inc()

	entry := &AuditEntry{
		Action:       ActionLoginFailed,
		ResourceType: ResourceIdentity,
		Details: map[string]any{
			"email":  email,
			"reason": FailureInvalidCredentials,
		},
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	}
	if identityID != nil {
		entry.ResourceID = identityID.String()
	}
	s.audit.Record(ctx, entry)

	return errInvalidCredentials()
}

// recordFailedAttempt appends a failed attempt. A lost row only weakens the
// throttle slightly, so the write is best-effort.
func (s *Service) recordFailedAttempt(ctx context.Context, email string, origin Origin, reason string, now time.Time) {
	attempt := NewLoginAttempt(email, origin.IPAddress, origin.UserAgent, reason, now)
	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.bestEffort(ctx, "record_failed_attempt", err, "email", email, "reason", reason)
	}
}

// RefreshToken exchanges a refresh token for a new token pair on the same
// session. The presented token stops working immediately; a second use fails
// with AUTH_INVALID_TOKEN.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string, origin Origin) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, errInvalidToken()
	}
	now := s.clock()

	session, err := s.sessions.GetByRefreshTokenHash(ctx, HashToken(refreshToken))
	if errors.Is(err, ErrNotFound) {
		return nil, errInvalidToken()
	}
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "get session by refresh token").Wrap(err)
	}
	if !session.UsableAt(now) {
		return nil, errInvalidToken()
	}

	identity, err := s.identities.GetByID(ctx, session.IdentityID)
	if errors.Is(err, ErrNotFound) {
		return nil, errInvalidToken()
	}
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get identity").
			With("identity_id", session.IdentityID.String()).
			Wrap(err)
	}
	if !identity.Active {
		return nil, errInvalidToken()
	}

	tokens, err := s.tokens.Issue(identity.ID, session.ID)
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "issue tokens").Wrap(err)
	}

	accessHash, refreshHash := HashToken(tokens.AccessToken), HashToken(tokens.RefreshToken)
	err = s.sessions.Rotate(ctx, session.ID, session.RefreshTokenHash, accessHash, refreshHash, now)
	if errors.Is(err, ErrNotFound) {
		// Another refresh with the same token won the swap.
		return nil, errInvalidToken()
	}
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "rotate session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}

	rotated := *session
	rotated.AccessTokenHash = accessHash
	rotated.RefreshTokenHash = refreshHash
	rotated.UpdatedAt = now

	s.audit.Record(ctx, identityEntry(ActionTokenRefresh, identity.ID, origin, map[string]any{
		"session_id": session.ID.String(),
	}))

	return &RefreshResult{Identity: identity, Session: &rotated, Tokens: tokens}, nil
}

// Logout deactivates one session of the identity, or all of them when
// sessionID is nil. A session owned by someone else is reported as not found.
func (s *Service) Logout(ctx context.Context, identityID ulid.ULID, sessionID *ulid.ULID, origin Origin) error {
	now := s.clock()
	details := map[string]any{}

	if sessionID != nil {
		session, err := s.sessions.GetByID(ctx, *sessionID)
		if errors.Is(err, ErrNotFound) || (err == nil && session.IdentityID != identityID) {
			return oops.Code(CodeNotFound).
				With("session_id", sessionID.String()).
				Errorf("session not found")
		}
		if err != nil {
			return oops.Code("AUTH_LOGOUT_FAILED").With("operation", "get session").Wrap(err)
		}
		if err := s.sessions.Deactivate(ctx, session.ID, now); err != nil {
			return oops.Code("AUTH_LOGOUT_FAILED").
				With("operation", "deactivate session").
				With("session_id", session.ID.String()).
				Wrap(err)
		}
		details["session_id"] = session.ID.String()
	} else {
		n, err := s.sessions.DeactivateAll(ctx, identityID, now)
		if err != nil {
			return oops.Code("AUTH_LOGOUT_FAILED").
				With("operation", "deactivate all sessions").
				With("identity_id", identityID.String()).
				Wrap(err)
		}
		details["all"] = true
		details["sessions"] = n
	}

	s.audit.Record(ctx, identityEntry(ActionLogout, identityID, origin, details))
	return nil
}

// Authenticate validates a bearer access token and returns its identity.
//
// A token bound to a session is accepted only while that session is active,
// unexpired, owned by the token's subject and still holds this access token,
// so logout, revocation and refresh all retire it. Tokens without a session
// are rejected unless they were issued in a later second than the identity's
// last password change.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Identity, *AccessClaims, error) {
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return nil, nil, errInvalidToken()
	}
	identityID, err := claims.IdentityID()
	if err != nil {
		return nil, nil, errInvalidToken()
	}
	sessionID, bound, err := claims.Session()
	if err != nil {
		return nil, nil, errInvalidToken()
	}

	if bound {
		session, err := s.sessions.GetByID(ctx, sessionID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil, errInvalidToken()
		}
		if err != nil {
			return nil, nil, oops.Code("AUTH_AUTHENTICATE_FAILED").
				With("operation", "get session").
				With("session_id", sessionID.String()).
				Wrap(err)
		}
		if session.IdentityID != identityID || !session.UsableAt(s.clock()) ||
			subtle.ConstantTimeCompare([]byte(session.AccessTokenHash), []byte(HashToken(accessToken))) != 1 {
			return nil, nil, errInvalidToken()
		}
	}

	identity, err := s.identities.GetByID(ctx, identityID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, errInvalidToken()
	}
	if err != nil {
		return nil, nil, oops.Code("AUTH_AUTHENTICATE_FAILED").
			With("operation", "get identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	if !identity.Active {
		return nil, nil, errInvalidToken()
	}
	if !bound && issuedBeforePasswordChange(claims, identity) {
		return nil, nil, errInvalidToken()
	}

	return identity, claims, nil
}

// issuedBeforePasswordChange reports whether the token may predate the
// identity's last password change. iat has whole-second precision, so a token
// from the same second as the change counts as older.
func issuedBeforePasswordChange(claims *AccessClaims, identity *Identity) bool {
	if identity.PasswordChangedAt == nil {
		return false
	}
	if claims.IssuedAt == nil {
		return true
	}
	return !claims.IssuedAt.After(identity.PasswordChangedAt.Truncate(time.Second))
}
