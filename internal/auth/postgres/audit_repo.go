// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package postgres

import (
	"context"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/pressroom/pressroom/internal/auth"
)

// AuditRepository implements auth.AuditRepository using PostgreSQL.
// Entries are insert-only; the table grants no UPDATE path.
type AuditRepository struct {
	pool Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append stores an audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *auth.AuditEntry) error {
	details := []byte("{}")
	if len(entry.Details) > 0 {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return oops.Code("AUDIT_MARSHAL_FAILED").
				With("action", string(entry.Action)).
				Wrap(err)
		}
	}

	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, action, resource_type, resource_id, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.ID.String(),
		ulidToStringPtr(entry.ActorID),
		string(entry.Action),
		entry.ResourceType,
		entry.ResourceID,
		details,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return oops.Code("AUDIT_APPEND_FAILED").
			With("operation", "insert audit entry").
			With("action", string(entry.Action)).
			Wrap(err)
	}
	return nil
}

var _ auth.AuditRepository = (*AuditRepository)(nil)
