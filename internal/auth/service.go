// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultResetTokenTTL is how long a password reset token stays valid.
const DefaultResetTokenTTL = time.Hour

// dummyPassword is hashed once and verified against when the email is unknown,
// so unknown and known emails take comparable time.
const dummyPassword = "pressroom-timing-equalizer"

// Transactor runs fn inside a storage transaction carried by ctx.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TokenService issues and verifies token pairs. *TokenIssuer implements it.
type TokenService interface {
	Issue(identityID, sessionID ulid.ULID) (*IssuedTokens, error)
	ParseAccessToken(token string) (*AccessClaims, error)
}

// Config holds the externally configured lifetimes and thresholds.
type Config struct {
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
	ResetTokenTTL time.Duration
	RateLimit     RateLimitConfig
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		SessionTTL:    DefaultSessionTTL,
		RememberMeTTL: DefaultRememberMeTTL,
		ResetTokenTTL: DefaultResetTokenTTL,
		RateLimit:     DefaultRateLimitConfig(),
	}
}

// Dependencies are the collaborators a Service is built from. All are required.
type Dependencies struct {
	Identities IdentityRepository
	Sessions   SessionRepository
	Attempts   LoginAttemptRepository
	Audit      AuditRepository
	Hasher     PasswordHasher
	Tokens     TokenService
	Notifier   Notifier
	Transactor Transactor
}

func (d Dependencies) validate() error {
	switch {
	case d.Identities == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("identity repository is required")
	case d.Sessions == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session repository is required")
	case d.Attempts == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("login attempt repository is required")
	case d.Audit == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("audit repository is required")
	case d.Hasher == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	case d.Tokens == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token service is required")
	case d.Notifier == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("notifier is required")
	case d.Transactor == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("transactor is required")
	}
	return nil
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the time source used for all expiry math.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithConfig overrides the default lifetimes and thresholds.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithMetrics sets the metrics the service reports to.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service implements the authentication flows. It keeps no per-request state;
// everything shared lives in the repositories.
type Service struct {
	identities IdentityRepository
	sessions   SessionRepository
	attempts   LoginAttemptRepository
	hasher     PasswordHasher
	tokens     TokenService
	notifier   Notifier
	tx         Transactor

	limiter *RateLimiter
	audit   *AuditTrail
	logger  *slog.Logger
	metrics *Metrics
	clock   func() time.Time
	cfg     Config

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a Service. Returns an error if a dependency is missing.
func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	s := &Service{
		identities: deps.Identities,
		sessions:   deps.Sessions,
		attempts:   deps.Attempts,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		notifier:   deps.Notifier,
		tx:         deps.Transactor,
		logger:     slog.Default(),
		clock:      time.Now,
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger cannot be nil")
	}
	if s.clock == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("clock cannot be nil")
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.cfg.SessionTTL <= 0 {
		s.cfg.SessionTTL = DefaultSessionTTL
	}
	if s.cfg.RememberMeTTL <= 0 {
		s.cfg.RememberMeTTL = DefaultRememberMeTTL
	}
	if s.cfg.ResetTokenTTL <= 0 {
		s.cfg.ResetTokenTTL = DefaultResetTokenTTL
	}

	s.limiter = NewRateLimiter(deps.Attempts, s.cfg.RateLimit)
	s.audit = NewAuditTrail(deps.Audit, s.logger, s.metrics, s.clock)
	return s, nil
}

// sessionTTL returns the session lifetime for the remember-me choice.
func (s *Service) sessionTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.cfg.RememberMeTTL
	}
	return s.cfg.SessionTTL
}

// timingHash returns a real hash to verify against when no identity matched.
func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("timing hash generation failed", "error", err.Error())
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// bestEffort logs and counts the failure of a side effect that must not fail
// the flow that triggered it.
func (s *Service) bestEffort(ctx context.Context, operation string, err error, attrs ...any) {
	s.metrics.BestEffortFailures.WithLabelValues(operation).Inc()
	args := append([]any{"operation", operation, "error", err.Error()}, attrs...)
	s.logger.WarnContext(ctx, "best-effort operation failed", args...)
}

// deactivateAll is the shared tail of password change, reset and admin
// deactivation. It must run inside a transaction.
func (s *Service) deactivateAll(ctx context.Context, identityID ulid.ULID, now time.Time) (int64, error) {
	n, err := s.sessions.DeactivateAll(ctx, identityID, now)
	if err != nil {
		return 0, oops.With("operation", "deactivate sessions").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return n, nil
}
