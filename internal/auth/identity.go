// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the closed set of CMS roles an identity can hold.
type Role string

// Known roles.
const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// MinPasswordLength is the shortest password ValidatePasswordStrength accepts.
const MinPasswordLength = 8

// PasswordSymbols is the punctuation set a password must draw at least one symbol from.
const PasswordSymbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Identity is a CMS user account.
type Identity struct {
	ID                     ulid.ULID
	Email                  string
	PasswordHash           string
	FirstName              string
	LastName               string
	Role                   Role
	Active                 bool
	EmailVerified          bool
	VerificationTokenHash  *string
	PasswordResetTokenHash *string
	PasswordResetExpiresAt *time.Time
	LastLoginAt            *time.Time
	PasswordChangedAt      *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ResetTokenValidAt reports whether the identity holds a reset token that has
// not expired at t.
func (i *Identity) ResetTokenValidAt(t time.Time) bool {
	return i.PasswordResetTokenHash != nil &&
		i.PasswordResetExpiresAt != nil &&
		t.Before(*i.PasswordResetExpiresAt)
}

// NormalizeEmail lower-cases and trims an email address. Identities are
// stored and looked up by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email has a local@domain.tld shape.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeInvalidEmail).
			With("email", email).
			Errorf("email address is not valid")
	}
	return nil
}

// ValidatePasswordStrength enforces the password policy:
// at least MinPasswordLength characters with a lowercase letter, an uppercase
// letter, a digit and one symbol from PasswordSymbols.
func ValidatePasswordStrength(password string) error {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}

	var missing []string
	if len(password) < MinPasswordLength {
		missing = append(missing, "length")
	}
	if !lower {
		missing = append(missing, "lowercase")
	}
	if !upper {
		missing = append(missing, "uppercase")
	}
	if !digit {
		missing = append(missing, "digit")
	}
	if !symbol {
		missing = append(missing, "symbol")
	}
	if len(missing) > 0 {
		return oops.Code(CodeWeakPassword).
			With("missing", missing).
			Errorf("password must be at least %d characters and contain lowercase, uppercase, digit and symbol characters", MinPasswordLength)
	}
	return nil
}

// IdentityRepository manages identity persistence.
type IdentityRepository interface {
	// Create stores a new identity.
	// Returns ErrAlreadyExists if the email is already taken.
	Create(ctx context.Context, identity *Identity) error

	// GetByID retrieves an identity by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByEmail retrieves an identity by normalized email.
	// Returns ErrNotFound if no identity has the given email.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// TouchLastLogin stamps LastLoginAt on an active identity.
	// Returns ErrNotFound if the identity is missing or inactive.
	TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// Deactivate clears the active flag.
	Deactivate(ctx context.Context, id ulid.ULID, at time.Time) error

	// MarkEmailVerified sets EmailVerified and clears the verification token,
	// only while the stored token hash still equals tokenHash.
	// Returns ErrNotFound otherwise.
	MarkEmailVerified(ctx context.Context, id ulid.ULID, tokenHash string, at time.Time) error

	// SetVerificationToken replaces the verification token of an active,
	// unverified identity. Returns ErrNotFound if no such identity exists.
	SetVerificationToken(ctx context.Context, id ulid.ULID, tokenHash string, at time.Time) error

	// UpdatePassword stores a new password hash, stamps PasswordChangedAt and
	// clears any pending reset token in the same write.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, changedAt time.Time) error

	// ResetPassword is UpdatePassword guarded by the reset token: the write
	// only happens while tokenHash is the stored reset token and it expires
	// after changedAt. Returns ErrNotFound otherwise.
	ResetPassword(ctx context.Context, id ulid.ULID, tokenHash, passwordHash string, changedAt time.Time) error

	// SetPasswordResetToken stores the hash of a reset token and its expiry.
	SetPasswordResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// GetByResetTokenHash retrieves the identity holding the given reset token hash.
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*Identity, error)

	// GetByVerificationTokenHash retrieves the identity holding the given
	// verification token hash.
	GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*Identity, error)
}
