// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

// Package authtest provides in-memory implementations of the auth
// repositories, a controllable clock and a recording notifier for tests.
package authtest

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pressroom/pressroom/internal/auth"
)

// Store holds identities, sessions, login attempts and audit entries in
// memory. It implements every auth repository plus auth.Transactor; a failed
// transaction restores the state from before it began.
type Store struct {
	mu         sync.Mutex
	txMu       sync.Mutex
	identities map[ulid.ULID]auth.Identity
	sessions   map[ulid.ULID]auth.Session
	attempts   []auth.LoginAttempt
	audit      []auth.AuditEntry

	// AuditErr, when set, is returned by every audit append.
	AuditErr error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		identities: make(map[ulid.ULID]auth.Identity),
		sessions:   make(map[ulid.ULID]auth.Session),
	}
}

// Identities returns the store as an auth.IdentityRepository.
func (s *Store) Identities() auth.IdentityRepository { return identityRepo{s} }

// Sessions returns the store as an auth.SessionRepository.
func (s *Store) Sessions() auth.SessionRepository { return sessionRepo{s} }

// Attempts returns the store as an auth.LoginAttemptRepository.
func (s *Store) Attempts() auth.LoginAttemptRepository { return attemptRepo{s} }

// Audit returns the store as an auth.AuditRepository.
func (s *Store) Audit() auth.AuditRepository { return auditRepo{s} }

// InTransaction runs fn with transactions serialized. When fn fails, all
// writes it made are discarded.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	identities := maps.Clone(s.identities)
	sessions := maps.Clone(s.sessions)
	attempts := slices.Clone(s.attempts)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.identities, s.sessions, s.attempts = identities, sessions, attempts
		s.mu.Unlock()
		return err
	}
	return nil
}

// LoginAttempts returns a snapshot of the attempt log in insertion order.
func (s *Store) LoginAttempts() []auth.LoginAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.attempts)
}

// AuditEntries returns a snapshot of the audit log in insertion order.
func (s *Store) AuditEntries() []auth.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audit)
}

// IdentityCount returns the number of stored identities.
func (s *Store) IdentityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}

// AllSessions returns every stored session, active or not.
func (s *Store) AllSessions() []auth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.sessions))
}

// PutIdentity stores an identity directly, bypassing uniqueness checks.
func (s *Store) PutIdentity(identity *auth.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.ID] = *identity
}

var _ auth.Transactor = (*Store)(nil)

type identityRepo struct{ s *Store }

func (r identityRepo) Create(_ context.Context, identity *auth.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.identities {
		if existing.Email == identity.Email {
			return auth.ErrAlreadyExists
		}
	}
	r.s.identities[identity.ID] = *identity
	return nil
}

func (r identityRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &identity, nil
}

func (r identityRepo) GetByEmail(_ context.Context, email string) (*auth.Identity, error) {
	return r.find(func(i *auth.Identity) bool { return i.Email == email })
}

func (r identityRepo) GetByResetTokenHash(_ context.Context, tokenHash string) (*auth.Identity, error) {
	return r.find(func(i *auth.Identity) bool {
		return i.PasswordResetTokenHash != nil && *i.PasswordResetTokenHash == tokenHash
	})
}

func (r identityRepo) GetByVerificationTokenHash(_ context.Context, tokenHash string) (*auth.Identity, error) {
	return r.find(func(i *auth.Identity) bool {
		return i.VerificationTokenHash != nil && *i.VerificationTokenHash == tokenHash
	})
}

func (r identityRepo) find(match func(*auth.Identity) bool) (*auth.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, identity := range r.s.identities {
		if match(&identity) {
			return &identity, nil
		}
	}
	return nil, auth.ErrNotFound
}

// modify applies fn to the stored identity under the lock and writes it back
// when fn reports a match.
func (r identityRepo) modify(id ulid.ULID, fn func(*auth.Identity) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[id]
	if !ok || !fn(&identity) {
		return auth.ErrNotFound
	}
	r.s.identities[id] = identity
	return nil
}

func (r identityRepo) TouchLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.modify(id, func(i *auth.Identity) bool {
		if !i.Active {
			return false
		}
		i.LastLoginAt = &at
		i.UpdatedAt = at
		return true
	})
}

func (r identityRepo) Deactivate(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.modify(id, func(i *auth.Identity) bool {
		i.Active = false
		i.UpdatedAt = at
		return true
	})
}

func (r identityRepo) MarkEmailVerified(_ context.Context, id ulid.ULID, tokenHash string, at time.Time) error {
	return r.modify(id, func(i *auth.Identity) bool {
		if i.VerificationTokenHash == nil || *i.VerificationTokenHash != tokenHash {
			return false
		}
		i.EmailVerified = true
		i.VerificationTokenHash = nil
		i.UpdatedAt = at
		return true
	})
}

func (r identityRepo) SetVerificationToken(_ context.Context, id ulid.ULID, tokenHash string, at time.Time) error {
	return r.modify(id, func(i *auth.Identity) bool {
		if !i.Active || i.EmailVerified {
			return false
		}
		i.VerificationTokenHash = &tokenHash
		i.UpdatedAt = at
		return true
	})
}

func (r identityRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string, changedAt time.Time) error {
	return r.modify(id, func(i *auth.Identity) bool {
		setPassword(i, passwordHash, changedAt)
		return true
	})
}

func (r identityRepo) ResetPassword(_ context.Context, id ulid.ULID, tokenHash, passwordHash string, changedAt time.Time) error {
	return r.modify(id, func(i *auth.Identity) bool {
		if !i.ResetTokenValidAt(changedAt) || *i.PasswordResetTokenHash != tokenHash {
			return false
		}
		setPassword(i, passwordHash, changedAt)
		return true
	})
}

func setPassword(i *auth.Identity, passwordHash string, changedAt time.Time) {
	i.PasswordHash = passwordHash
	i.PasswordChangedAt = &changedAt
	i.PasswordResetTokenHash = nil
	i.PasswordResetExpiresAt = nil
	i.UpdatedAt = changedAt
}

func (r identityRepo) SetPasswordResetToken(_ context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[id]
	if !ok {
		return auth.ErrNotFound
	}
	identity.PasswordResetTokenHash = &tokenHash
	identity.PasswordResetExpiresAt = &expiresAt
	r.s.identities[id] = identity
	return nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, session *auth.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.RefreshTokenHash == session.RefreshTokenHash {
			return auth.ErrAlreadyExists
		}
	}
	r.s.sessions[session.ID] = *session
	return nil
}

func (r sessionRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &session, nil
}

func (r sessionRepo) GetByRefreshTokenHash(_ context.Context, refreshTokenHash string) (*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.RefreshTokenHash == refreshTokenHash {
			return &session, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r sessionRepo) ListActiveByIdentity(_ context.Context, identityID ulid.ULID, now time.Time) ([]*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.Session
	for _, session := range r.s.sessions {
		if session.IdentityID == identityID && session.UsableAt(now) {
			out = append(out, &session)
		}
	}
	slices.SortFunc(out, func(a, b *auth.Session) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r sessionRepo) Rotate(_ context.Context, id ulid.ULID, oldRefreshHash, newAccessHash, newRefreshHash string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || !session.Active || session.RefreshTokenHash != oldRefreshHash {
		return auth.ErrNotFound
	}
	for otherID, other := range r.s.sessions {
		if otherID != id && other.RefreshTokenHash == newRefreshHash {
			return auth.ErrAlreadyExists
		}
	}
	session.AccessTokenHash = newAccessHash
	session.RefreshTokenHash = newRefreshHash
	session.UpdatedAt = now
	r.s.sessions[id] = session
	return nil
}

func (r sessionRepo) Deactivate(_ context.Context, id ulid.ULID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	session.Active = false
	session.UpdatedAt = now
	r.s.sessions[id] = session
	return nil
}

func (r sessionRepo) DeactivateAll(_ context.Context, identityID ulid.ULID, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, session := range r.s.sessions {
		if session.IdentityID == identityID && session.Active {
			session.Active = false
			session.UpdatedAt = now
			r.s.sessions[id] = session
			n++
		}
	}
	return n, nil
}

func (r sessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, session := range r.s.sessions {
		if session.ExpiresAt.Before(before) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

type attemptRepo struct{ s *Store }

func (r attemptRepo) Record(_ context.Context, attempt *auth.LoginAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.attempts = append(r.s.attempts, *attempt)
	return nil
}

func (r attemptRepo) CountFailuresByEmail(_ context.Context, email string, since time.Time) (int, error) {
	return r.countFailures(func(a *auth.LoginAttempt) bool { return a.Email == email }, since), nil
}

func (r attemptRepo) CountFailuresByIP(_ context.Context, ipAddress string, since time.Time) (int, error) {
	return r.countFailures(func(a *auth.LoginAttempt) bool { return a.IPAddress == ipAddress }, since), nil
}

func (r attemptRepo) countFailures(match func(*auth.LoginAttempt) bool, since time.Time) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for i := range r.s.attempts {
		a := &r.s.attempts[i]
		if a.Success || a.CreatedAt.Before(since) || !match(a) {
			continue
		}
		if a.FailureReason != nil && *a.FailureReason == auth.FailureTooManyAttempts {
			continue
		}
		n++
	}
	return n
}

func (r attemptRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.attempts[:0]
	var n int64
	for _, a := range r.s.attempts {
		if a.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.s.attempts = kept
	return n, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, entry *auth.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.AuditErr != nil {
		return r.s.AuditErr
	}
	r.s.audit = append(r.s.audit, *entry)
	return nil
}
