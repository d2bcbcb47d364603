// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Action is the closed vocabulary of audited events.
type Action string

// Audited actions.
const (
	ActionLogin                  Action = "LOGIN"
	ActionLoginFailed            Action = "LOGIN_FAILED"
	ActionLogout                 Action = "LOGOUT"
	ActionRegister               Action = "REGISTER"
	ActionTokenRefresh           Action = "TOKEN_REFRESH"
	ActionPasswordResetRequested Action = "PASSWORD_RESET_REQUESTED"
	ActionPasswordReset          Action = "PASSWORD_RESET"
	ActionPasswordChanged        Action = "PASSWORD_CHANGED"
	ActionEmailVerified          Action = "EMAIL_VERIFIED"
	ActionVerificationResent     Action = "VERIFICATION_RESENT"
	ActionSessionRevoked         Action = "SESSION_REVOKED"
	ActionUserDeactivated        Action = "USER_DEACTIVATED"
	ActionBootstrapUserCreated   Action = "BOOTSTRAP_USER_CREATED"
)

// Resource types referenced by audit entries.
const (
	ResourceIdentity = "identity"
	ResourceSession  = "session"
)

// AuditEntry is an immutable record of a security-relevant action.
type AuditEntry struct {
	ID           ulid.ULID
	ActorID      *ulid.ULID // nil for anonymous actions such as a failed login
	Action       Action
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}

// AuditRepository is the append-only audit log.
type AuditRepository interface {
	// Append stores an audit entry.
	Append(ctx context.Context, entry *AuditEntry) error
}

// Origin carries the network metadata of the request that triggered a flow.
type Origin struct {
	IPAddress string
	UserAgent string
}

// AuditTrail writes audit entries on a best-effort basis: a failed write is
// logged and counted but never reported to the caller.
type AuditTrail struct {
	repo    AuditRepository
	logger  *slog.Logger
	metrics *Metrics
	clock   func() time.Time
}

// NewAuditTrail creates an AuditTrail.
func NewAuditTrail(repo AuditRepository, logger *slog.Logger, metrics *Metrics, clock func() time.Time) *AuditTrail {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if clock == nil {
		clock = time.Now
	}
	return &AuditTrail{repo: repo, logger: logger, metrics: metrics, clock: clock}
}

// Record appends an entry. ID and CreatedAt are filled in when unset.
func (a *AuditTrail) Record(ctx context.Context, entry *AuditEntry) {
	if entry.ID.Compare(ulid.ULID{}) == 0 {
		entry.ID = ulid.Make()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.clock()
	}

	if err := a.repo.Append(ctx, entry); err != nil {
		a.metrics.AuditFailures.WithLabelValues(string(entry.Action)).Inc()
		a.logger.WarnContext(ctx, "best-effort audit write failed",
			"operation", "audit_append",
			"action", string(entry.Action),
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"error", err.Error())
	}
}

// identityEntry builds an entry about an identity acting on itself.
func identityEntry(action Action, identityID ulid.ULID, origin Origin, details map[string]any) *AuditEntry {
	actor := identityID
	return &AuditEntry{
		ActorID:      &actor,
		Action:       action,
		ResourceType: ResourceIdentity,
		ResourceID:   identityID.String(),
		Details:      details,
		IPAddress:    origin.IPAddress,
		UserAgent:    origin.UserAgent,
	}
}
