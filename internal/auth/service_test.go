// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pressroom/pressroom/internal/auth"
	"github.com/pressroom/pressroom/internal/auth/authtest"
	"github.com/pressroom/pressroom/internal/auth/mocks"
	"github.com/pressroom/pressroom/pkg/errutil"
)

type mockDeps struct {
	identities *mocks.MockIdentityRepository
	sessions   *mocks.MockSessionRepository
	attempts   *mocks.MockLoginAttemptRepository
	audit      *mocks.MockAuditRepository
	hasher     *mocks.MockPasswordHasher
	tokens     *mocks.MockTokenService
	notifier   *mocks.MockNotifier
}

func newMockDeps(t *testing.T) *mockDeps {
	t.Helper()
	return &mockDeps{
		identities: mocks.NewMockIdentityRepository(t),
		sessions:   mocks.NewMockSessionRepository(t),
		attempts:   mocks.NewMockLoginAttemptRepository(t),
		audit:      mocks.NewMockAuditRepository(t),
		hasher:     mocks.NewMockPasswordHasher(t),
		tokens:     mocks.NewMockTokenService(t),
		notifier:   mocks.NewMockNotifier(t),
	}
}

func (d *mockDeps) dependencies() auth.Dependencies {
	return auth.Dependencies{
		Identities: d.identities,
		Sessions:   d.sessions,
		Attempts:   d.attempts,
		Audit:      d.audit,
		Hasher:     d.hasher,
		Tokens:     d.tokens,
		Notifier:   d.notifier,
		Transactor: mocks.InlineTransactor{},
	}
}

func (d *mockDeps) service(t *testing.T, opts ...auth.Option) *auth.Service {
	t.Helper()
	opts = append([]auth.Option{auth.WithClock(func() time.Time { return authtest.Epoch })}, opts...)
	svc, err := auth.NewService(d.dependencies(), opts...)
	require.NoError(t, err)
	return svc
}

// allowLogins makes the rate limiter report zero recent failures.
func (d *mockDeps) allowLogins() {
	d.attempts.On("CountFailuresByEmail", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	d.attempts.On("CountFailuresByIP", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
}

func activeIdentity() *auth.Identity {
	return &auth.Identity{
		ID:           ulid.Make(),
		Email:        testEmail,
		PasswordHash: "stored-hash",
		Role:         auth.RoleEditor,
		Active:       true,
		CreatedAt:    authtest.Epoch.Add(-time.Hour),
		UpdatedAt:    authtest.Epoch.Add(-time.Hour),
	}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	tests := []struct {
		name    string
		clear   func(*auth.Dependencies)
		message string
	}{
		{"identities", func(d *auth.Dependencies) { d.Identities = nil }, "identity repository is required"},
		{"sessions", func(d *auth.Dependencies) { d.Sessions = nil }, "session repository is required"},
		{"attempts", func(d *auth.Dependencies) { d.Attempts = nil }, "login attempt repository is required"},
		{"audit", func(d *auth.Dependencies) { d.Audit = nil }, "audit repository is required"},
		{"hasher", func(d *auth.Dependencies) { d.Hasher = nil }, "password hasher is required"},
		{"tokens", func(d *auth.Dependencies) { d.Tokens = nil }, "token service is required"},
		{"notifier", func(d *auth.Dependencies) { d.Notifier = nil }, "notifier is required"},
		{"transactor", func(d *auth.Dependencies) { d.Transactor = nil }, "transactor is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newMockDeps(t).dependencies()
			tt.clear(&deps)

			svc, err := auth.NewService(deps)

			assert.Nil(t, svc)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_DEPENDENCY")
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNewService_RejectsNilLogger(t *testing.T) {
	_, err := auth.NewService(newMockDeps(t).dependencies(), auth.WithLogger(nil))
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_DEPENDENCY")
	assert.Contains(t, err.Error(), "logger cannot be nil")
}

func TestLogin_RateLimitStorageErrorFailsClosed(t *testing.T) {
	deps := newMockDeps(t)
	deps.attempts.On("CountFailuresByEmail", mock.Anything, testEmail, mock.Anything).
		Return(0, errors.New("connection refused"))
	svc := deps.service(t)

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: testEmail, Password: testPassword})

	errutil.AssertErrorCode(t, err, "AUTH_RATE_LIMIT_FAILED")
	deps.identities.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLogin_UnknownEmailStillVerifiesAHash(t *testing.T) {
	deps := newMockDeps(t)
	deps.allowLogins()
	deps.identities.On("GetByEmail", mock.Anything, testEmail).Return(nil, auth.ErrNotFound)
	deps.hasher.On("Hash", mock.Anything).Return("timing-hash", nil).Once()
	deps.hasher.On("Verify", testPassword, "timing-hash").Return(false, nil).Once()
	deps.attempts.On("Record", mock.Anything, mock.MatchedBy(func(a *auth.LoginAttempt) bool {
		return !a.Success && *a.FailureReason == auth.FailureInvalidCredentials
	})).Return(nil).Once()
	deps.audit.On("Append", mock.Anything, mock.MatchedBy(func(e *auth.AuditEntry) bool {
		return e.Action == auth.ActionLoginFailed && e.ResourceID == ""
	})).Return(nil).Once()
	svc := deps.service(t)

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: testEmail, Password: testPassword})

	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
}

func TestLogin_LookupErrorIsNotReportedAsBadCredentials(t *testing.T) {
	deps := newMockDeps(t)
	deps.allowLogins()
	deps.identities.On("GetByEmail", mock.Anything, testEmail).Return(nil, errors.New("timeout"))
	svc := deps.service(t)

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: testEmail, Password: testPassword})

	errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	errutil.AssertErrorContext(t, err, "operation", "get identity by email")
}

func TestLogin_FailedSessionWriteLeavesNoSuccessTrace(t *testing.T) {
	deps := newMockDeps(t)
	deps.allowLogins()
	identity := activeIdentity()
	deps.identities.On("GetByEmail", mock.Anything, testEmail).Return(identity, nil)
	deps.hasher.On("Verify", testPassword, "stored-hash").Return(true, nil)
	deps.tokens.On("Issue", identity.ID, mock.Anything).Return(&auth.IssuedTokens{AccessToken: "access", RefreshToken: "refresh"}, nil)
	deps.identities.On("TouchLastLogin", mock.Anything, identity.ID, authtest.Epoch).Return(nil)
	deps.sessions.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	metrics := auth.NewMetrics(prometheus.NewRegistry())
	svc := deps.service(t, auth.WithMetrics(metrics))

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: testEmail, Password: testPassword})

	errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	errutil.AssertErrorContext(t, err, "operation", "create session")
	deps.attempts.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	deps.audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	assert.Zero(t, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues(auth.OutcomeSuccess)))
}

func TestLogin_SuccessWritesInsideTransaction(t *testing.T) {
	deps := newMockDeps(t)
	deps.allowLogins()
	identity := activeIdentity()
	deps.identities.On("GetByEmail", mock.Anything, testEmail).Return(identity, nil)
	deps.hasher.On("Verify", testPassword, "stored-hash").Return(true, nil)
	var boundTo ulid.ULID
	deps.tokens.On("Issue", identity.ID, mock.Anything).Run(func(args mock.Arguments) {
		boundTo = args.Get(1).(ulid.ULID)
	}).Return(&auth.IssuedTokens{AccessToken: "access", RefreshToken: "refresh"}, nil)
	deps.identities.On("TouchLastLogin", mock.Anything, identity.ID, authtest.Epoch).Return(nil)
	deps.sessions.On("Create", mock.Anything, mock.MatchedBy(func(s *auth.Session) bool {
		return s.RefreshTokenHash == auth.HashToken("refresh") && s.ExpiresAt.Equal(authtest.Epoch.Add(time.Hour))
	})).Return(nil)
	deps.attempts.On("Record", mock.Anything, mock.MatchedBy(func(a *auth.LoginAttempt) bool { return a.Success })).Return(nil)
	deps.audit.On("Append", mock.Anything, mock.MatchedBy(func(e *auth.AuditEntry) bool {
		return e.Action == auth.ActionLogin && *e.ActorID == identity.ID
	})).Return(nil)

	cfg := auth.DefaultConfig()
	cfg.SessionTTL = time.Hour
	metrics := auth.NewMetrics(nil)
	svc := deps.service(t, auth.WithConfig(cfg), auth.WithMetrics(metrics))

	result, err := svc.Login(context.Background(), auth.LoginRequest{Email: "ADA@example.com", Password: testPassword})
	require.NoError(t, err)

	assert.Equal(t, "access", result.Tokens.AccessToken)
	assert.Equal(t, boundTo, result.Session.ID, "access token is bound to the new session")
	require.NotNil(t, result.Identity.LastLoginAt)
	assert.Equal(t, authtest.Epoch, *result.Identity.LastLoginAt)
	assert.Nil(t, identity.LastLoginAt, "caller's identity is not mutated")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues(auth.OutcomeSuccess)))
}

func TestLogin_LastLoginStampMissingIsInvalidCredentials(t *testing.T) {
	deps := newMockDeps(t)
	deps.allowLogins()
	identity := activeIdentity()
	deps.identities.On("GetByEmail", mock.Anything, testEmail).Return(identity, nil)
	deps.hasher.On("Verify", testPassword, "stored-hash").Return(true, nil)
	deps.tokens.On("Issue", identity.ID, mock.Anything).Return(&auth.IssuedTokens{AccessToken: "access", RefreshToken: "refresh"}, nil)
	deps.identities.On("TouchLastLogin", mock.Anything, identity.ID, authtest.Epoch).Return(auth.ErrNotFound)
	deps.attempts.On("Record", mock.Anything, mock.MatchedBy(func(a *auth.LoginAttempt) bool {
		return !a.Success && *a.FailureReason == auth.FailureInvalidCredentials
	})).Return(nil)
	deps.audit.On("Append", mock.Anything, mock.MatchedBy(func(e *auth.AuditEntry) bool {
		return e.Action == auth.ActionLoginFailed && e.ResourceID == identity.ID.String()
	})).Return(nil)
	metrics := auth.NewMetrics(nil)
	svc := deps.service(t, auth.WithMetrics(metrics))

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: testEmail, Password: testPassword})

	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	deps.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Zero(t, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues(auth.OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues(auth.OutcomeFailure)))
}

func TestLogin_ThrottledDoesNotTouchIdentity(t *testing.T) {
	deps := newMockDeps(t)
	deps.attempts.On("CountFailuresByEmail", mock.Anything, testEmail, mock.Anything).Return(5, nil)
	deps.attempts.On("Record", mock.Anything, mock.MatchedBy(func(a *auth.LoginAttempt) bool {
		return *a.FailureReason == auth.FailureTooManyAttempts
	})).Return(nil)
	deps.audit.On("Append", mock.Anything, mock.MatchedBy(func(e *auth.AuditEntry) bool {
		return e.Action == auth.ActionLoginFailed && e.Details["reason"] == auth.FailureTooManyAttempts
	})).Return(nil)
	metrics := auth.NewMetrics(nil)
	svc := deps.service(t, auth.WithMetrics(metrics))

	_, err := svc.Login(context.Background(), auth.LoginRequest{Email: testEmail, Password: testPassword})

	errutil.AssertErrorCode(t, err, auth.CodeTooManyAttempts)
	deps.identities.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	deps.hasher.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues(auth.OutcomeThrottled)))
}

func TestRefreshToken_LostRotationRaceIsInvalidToken(t *testing.T) {
	deps := newMockDeps(t)
	identity := activeIdentity()
	session := &auth.Session{
		ID:               ulid.Make(),
		IdentityID:       identity.ID,
		RefreshTokenHash: auth.HashToken("refresh"),
		Active:           true,
		ExpiresAt:        authtest.Epoch.Add(time.Hour),
	}
	deps.sessions.On("GetByRefreshTokenHash", mock.Anything, auth.HashToken("refresh")).Return(session, nil)
	deps.identities.On("GetByID", mock.Anything, identity.ID).Return(identity, nil)
	deps.tokens.On("Issue", identity.ID, session.ID).Return(&auth.IssuedTokens{AccessToken: "a2", RefreshToken: "r2"}, nil)
	deps.sessions.On("Rotate", mock.Anything, session.ID, session.RefreshTokenHash,
		auth.HashToken("a2"), auth.HashToken("r2"), authtest.Epoch).Return(auth.ErrNotFound)
	svc := deps.service(t)

	_, err := svc.RefreshToken(context.Background(), "refresh", auth.Origin{})

	errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	deps.audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestResetPassword_RollsBackWhenSessionsCannotBeEnded(t *testing.T) {
	h := newHarness(t)
	identity := register(t, h, testEmail)
	login(t, h, testEmail, testPassword)
	ctx := context.Background()
	require.NoError(t, h.Service.ForgotPassword(ctx, testEmail, testOrigin))
	token := h.Notifier.LastResetToken(testEmail)

	// Same store, but the session repository fails inside the transaction.
	sessions := mocks.NewMockSessionRepository(t)
	sessions.On("DeactivateAll", mock.Anything, identity.ID, mock.Anything).Return(int64(0), errors.New("deadlock"))
	deps := h.Dependencies()
	deps.Sessions = sessions
	svc, err := auth.NewService(deps, auth.WithClock(h.Clock.Now))
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, token, newPassword, newPassword, testOrigin)
	errutil.AssertErrorCode(t, err, "AUTH_RESET_PASSWORD_FAILED")

	// Old password still works and the token is still usable.
	login(t, h, testEmail, testPassword)
	require.NoError(t, h.Service.ResetPassword(ctx, token, newPassword, newPassword, testOrigin))
}

func TestDeactivateIdentity_StorageErrorIsWrapped(t *testing.T) {
	deps := newMockDeps(t)
	identityID := ulid.Make()
	deps.identities.On("GetByID", mock.Anything, identityID).Return(nil, errors.New("timeout"))
	svc := deps.service(t)

	err := svc.DeactivateIdentity(context.Background(), ulid.Make(), identityID, auth.Origin{})

	errutil.AssertErrorCode(t, err, "AUTH_DEACTIVATE_FAILED")
}

func TestListSessions_StorageError(t *testing.T) {
	deps := newMockDeps(t)
	identityID := ulid.Make()
	deps.sessions.On("ListActiveByIdentity", mock.Anything, identityID, authtest.Epoch).Return(nil, errors.New("timeout"))
	svc := deps.service(t)

	_, err := svc.ListSessions(context.Background(), identityID)

	errutil.AssertErrorCode(t, err, "AUTH_LIST_SESSIONS_FAILED")
	errutil.AssertErrorContext(t, err, "identity_id", identityID.String())
}
