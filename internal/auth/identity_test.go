// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressroom/pressroom/internal/auth"
	"github.com/pressroom/pressroom/pkg/errutil"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		missing  []string
	}{
		{"strong", "Secret123!", nil},
		{"exactly eight", "Abcde1!x", nil},
		{"short", "short", []string{"length", "uppercase", "digit", "symbol"}},
		{"no upper", "secret123!", []string{"uppercase"}},
		{"no lower", "SECRET123!", []string{"lowercase"}},
		{"no digit", "SecretPass!", []string{"digit"}},
		{"no symbol", "Secret1234", []string{"symbol"}},
		{"space is not a symbol", "Secret 123", []string{"symbol"}},
		{"empty", "", []string{"length", "lowercase", "uppercase", "digit", "symbol"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePasswordStrength(tt.password)
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, auth.CodeWeakPassword)
			errutil.AssertErrorContext(t, err, "missing", tt.missing)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"ada@example.com", "a.b+c@sub.example.org"}
	invalid := []string{"", "ada", "ada@example", "@example.com", "ada@ example.com", "ada@@example.com"}

	for _, email := range valid {
		assert.NoError(t, auth.ValidateEmail(email), email)
	}
	for _, email := range invalid {
		err := auth.ValidateEmail(email)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidEmail)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", auth.NormalizeEmail("  Ada@Example.COM "))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, auth.RoleAdmin.Valid())
	assert.True(t, auth.RoleEditor.Valid())
	assert.True(t, auth.RoleViewer.Valid())
	assert.False(t, auth.Role("superuser").Valid())
	assert.False(t, auth.Role("").Valid())
}

func TestIdentity_ResetTokenValidAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	hash := "abc"
	expires := now.Add(time.Hour)

	identity := &auth.Identity{ID: ulid.Make()}
	assert.False(t, identity.ResetTokenValidAt(now), "no token")

	identity.PasswordResetTokenHash = &hash
	assert.False(t, identity.ResetTokenValidAt(now), "token without expiry")

	identity.PasswordResetExpiresAt = &expires
	assert.True(t, identity.ResetTokenValidAt(now))
	assert.True(t, identity.ResetTokenValidAt(expires.Add(-time.Nanosecond)))
	assert.False(t, identity.ResetTokenValidAt(expires), "expiry instant is exclusive")
}

func TestErrorCode(t *testing.T) {
	assert.Empty(t, auth.ErrorCode(nil))
	assert.Empty(t, auth.ErrorCode(auth.ErrNotFound))
	assert.Equal(t, auth.CodeInvalidEmail, auth.ErrorCode(auth.ValidateEmail("nope")))
}

func TestPublicCode_HidesThrottling(t *testing.T) {
	throttled := oops.Code(auth.CodeTooManyAttempts).Errorf("slow down")
	assert.Equal(t, auth.CodeInvalidCredentials, auth.PublicCode(throttled))

	weak := auth.ValidatePasswordStrength("short")
	assert.Equal(t, auth.CodeWeakPassword, auth.PublicCode(weak))
}

func TestNewSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	identityID := ulid.Make()

	t.Run("valid", func(t *testing.T) {
		session, err := auth.NewSession(identityID, "a", "r", "10.0.0.1", "curl", true, now.Add(time.Hour), now)
		require.NoError(t, err)
		assert.True(t, session.Active)
		assert.True(t, session.RememberMe)
		assert.True(t, session.UsableAt(now))
		assert.False(t, session.UsableAt(now.Add(time.Hour)), "expiry instant is exclusive")
	})

	t.Run("zero identity", func(t *testing.T) {
		_, err := auth.NewSession(ulid.ULID{}, "a", "r", "", "", false, now.Add(time.Hour), now)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_IDENTITY")
	})

	t.Run("empty hash", func(t *testing.T) {
		_, err := auth.NewSession(identityID, "", "r", "", "", false, now.Add(time.Hour), now)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_HASH")
	})

	t.Run("expiry in past", func(t *testing.T) {
		_, err := auth.NewSession(identityID, "a", "r", "", "", false, now, now)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_EXPIRY")
	})

	t.Run("inactive is not usable", func(t *testing.T) {
		session, err := auth.NewSession(identityID, "a", "r", "", "", false, now.Add(time.Hour), now)
		require.NoError(t, err)
		session.Active = false
		assert.False(t, session.UsableAt(now))
	})
}
