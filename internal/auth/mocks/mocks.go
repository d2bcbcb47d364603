// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

// Package mocks provides testify mocks of the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/pressroom/pressroom/internal/auth"
)

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(t TestingT, m *mock.Mock) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockIdentityRepository mocks auth.IdentityRepository.
type MockIdentityRepository struct{ mock.Mock }

// NewMockIdentityRepository creates a mock that asserts its expectations on cleanup.
func NewMockIdentityRepository(t TestingT) *MockIdentityRepository {
	m := &MockIdentityRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *MockIdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Identity, error) {
	args := m.Called(ctx, id)
	identity, _ := args.Get(0).(*auth.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityRepository) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	args := m.Called(ctx, email)
	identity, _ := args.Get(0).(*auth.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityRepository) TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockIdentityRepository) Deactivate(ctx context.Context, id ulid.ULID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockIdentityRepository) MarkEmailVerified(ctx context.Context, id ulid.ULID, tokenHash string, at time.Time) error {
	return m.Called(ctx, id, tokenHash, at).Error(0)
}

func (m *MockIdentityRepository) SetVerificationToken(ctx context.Context, id ulid.ULID, tokenHash string, at time.Time) error {
	return m.Called(ctx, id, tokenHash, at).Error(0)
}

func (m *MockIdentityRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, changedAt time.Time) error {
	return m.Called(ctx, id, passwordHash, changedAt).Error(0)
}

func (m *MockIdentityRepository) ResetPassword(ctx context.Context, id ulid.ULID, tokenHash, passwordHash string, changedAt time.Time) error {
	return m.Called(ctx, id, tokenHash, passwordHash, changedAt).Error(0)
}

func (m *MockIdentityRepository) SetPasswordResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, id, tokenHash, expiresAt).Error(0)
}

func (m *MockIdentityRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.Identity, error) {
	args := m.Called(ctx, tokenHash)
	identity, _ := args.Get(0).(*auth.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityRepository) GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*auth.Identity, error) {
	args := m.Called(ctx, tokenHash)
	identity, _ := args.Get(0).(*auth.Identity)
	return identity, args.Error(1)
}

// MockSessionRepository mocks auth.SessionRepository.
type MockSessionRepository struct{ mock.Mock }

// NewMockSessionRepository creates a mock that asserts its expectations on cleanup.
func NewMockSessionRepository(t TestingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Session, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockSessionRepository) GetByRefreshTokenHash(ctx context.Context, refreshTokenHash string) (*auth.Session, error) {
	args := m.Called(ctx, refreshTokenHash)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockSessionRepository) ListActiveByIdentity(ctx context.Context, identityID ulid.ULID, now time.Time) ([]*auth.Session, error) {
	args := m.Called(ctx, identityID, now)
	sessions, _ := args.Get(0).([]*auth.Session)
	return sessions, args.Error(1)
}

func (m *MockSessionRepository) Rotate(ctx context.Context, id ulid.ULID, oldRefreshHash, newAccessHash, newRefreshHash string, now time.Time) error {
	return m.Called(ctx, id, oldRefreshHash, newAccessHash, newRefreshHash, now).Error(0)
}

func (m *MockSessionRepository) Deactivate(ctx context.Context, id ulid.ULID, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

func (m *MockSessionRepository) DeactivateAll(ctx context.Context, identityID ulid.ULID, now time.Time) (int64, error) {
	args := m.Called(ctx, identityID, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockLoginAttemptRepository mocks auth.LoginAttemptRepository.
type MockLoginAttemptRepository struct{ mock.Mock }

// NewMockLoginAttemptRepository creates a mock that asserts its expectations on cleanup.
func NewMockLoginAttemptRepository(t TestingT) *MockLoginAttemptRepository {
	m := &MockLoginAttemptRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockLoginAttemptRepository) Record(ctx context.Context, attempt *auth.LoginAttempt) error {
	return m.Called(ctx, attempt).Error(0)
}

func (m *MockLoginAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	args := m.Called(ctx, email, since)
	return args.Int(0), args.Error(1)
}

func (m *MockLoginAttemptRepository) CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	args := m.Called(ctx, ipAddress, since)
	return args.Int(0), args.Error(1)
}

func (m *MockLoginAttemptRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockAuditRepository mocks auth.AuditRepository.
type MockAuditRepository struct{ mock.Mock }

// NewMockAuditRepository creates a mock that asserts its expectations on cleanup.
func NewMockAuditRepository(t TestingT) *MockAuditRepository {
	m := &MockAuditRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *auth.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct{ mock.Mock }

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	register(t, &m.Mock)
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// MockTokenService mocks auth.TokenService.
type MockTokenService struct{ mock.Mock }

// NewMockTokenService creates a mock that asserts its expectations on cleanup.
func NewMockTokenService(t TestingT) *MockTokenService {
	m := &MockTokenService{}
	register(t, &m.Mock)
	return m
}

func (m *MockTokenService) Issue(identityID, sessionID ulid.ULID) (*auth.IssuedTokens, error) {
	args := m.Called(identityID, sessionID)
	tokens, _ := args.Get(0).(*auth.IssuedTokens)
	return tokens, args.Error(1)
}

func (m *MockTokenService) ParseAccessToken(token string) (*auth.AccessClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*auth.AccessClaims)
	return claims, args.Error(1)
}

// MockNotifier mocks auth.Notifier.
type MockNotifier struct{ mock.Mock }

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t TestingT) *MockNotifier {
	m := &MockNotifier{}
	register(t, &m.Mock)
	return m
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

func (m *MockNotifier) SendVerification(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

// InlineTransactor runs the function directly without a transaction.
type InlineTransactor struct{}

// InTransaction calls fn with ctx.
func (InlineTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ auth.IdentityRepository     = (*MockIdentityRepository)(nil)
	_ auth.SessionRepository      = (*MockSessionRepository)(nil)
	_ auth.LoginAttemptRepository = (*MockLoginAttemptRepository)(nil)
	_ auth.AuditRepository        = (*MockAuditRepository)(nil)
	_ auth.PasswordHasher         = (*MockPasswordHasher)(nil)
	_ auth.TokenService           = (*MockTokenService)(nil)
	_ auth.Notifier               = (*MockNotifier)(nil)
	_ auth.Transactor             = InlineTransactor{}
)
