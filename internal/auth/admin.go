// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ListSessions returns the identity's active, unexpired sessions.
func (s *Service) ListSessions(ctx context.Context, identityID ulid.ULID) ([]*Session, error) {
	sessions, err := s.sessions.ListActiveByIdentity(ctx, identityID, s.clock())
	if err != nil {
		return nil, oops.Code("AUTH_LIST_SESSIONS_FAILED").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return sessions, nil
}

// RevokeSession deactivates any session by ID on behalf of actorID.
func (s *Service) RevokeSession(ctx context.Context, actorID, sessionID ulid.ULID, origin Origin) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeNotFound).With("session_id", sessionID.String()).Errorf("session not found")
	}
	if err != nil {
		return oops.Code("AUTH_REVOKE_SESSION_FAILED").With("operation", "get session").Wrap(err)
	}

	if err := s.sessions.Deactivate(ctx, session.ID, s.clock()); err != nil {
		return oops.Code("AUTH_REVOKE_SESSION_FAILED").
			With("operation", "deactivate session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}

	s.audit.Record(ctx, &AuditEntry{
		ActorID:      &actorID,
		Action:       ActionSessionRevoked,
		ResourceType: ResourceSession,
		ResourceID:   session.ID.String(),
		Details:      map[string]any{"identity_id": session.IdentityID.String()},
		IPAddress:    origin.IPAddress,
		UserAgent:    origin.UserAgent,
	})
	return nil
}

// DeactivateIdentity disables an identity and all of its sessions.
// Deactivated identities cannot log in, refresh or authenticate.
func (s *Service) DeactivateIdentity(ctx context.Context, actorID, identityID ulid.ULID, origin Origin) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeNotFound).With("identity_id", identityID.String()).Errorf("identity not found")
	}
	if err != nil {
		return oops.Code("AUTH_DEACTIVATE_FAILED").With("operation", "get identity").Wrap(err)
	}

	now := s.clock()
	var revoked int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.Deactivate(ctx, identity.ID, now); err != nil {
			return oops.With("operation", "deactivate identity").Wrap(err)
		}
		n, err := s.deactivateAll(ctx, identity.ID, now)
		if err != nil {
			return err
		}
		revoked = n
		return nil
	})
	if err != nil {
		return oops.Code("AUTH_DEACTIVATE_FAILED").With("identity_id", identityID.String()).Wrap(err)
	}

	s.audit.Record(ctx, &AuditEntry{
		ActorID:      &actorID,
		Action:       ActionUserDeactivated,
		ResourceType: ResourceIdentity,
		ResourceID:   identity.ID.String(),
		Details:      map[string]any{"sessions_revoked": revoked},
		IPAddress:    origin.IPAddress,
		UserAgent:    origin.UserAgent,
	})
	s.logger.InfoContext(ctx, "identity deactivated",
		"identity_id", identity.ID.String(),
		"actor_id", actorID.String())
	return nil
}
