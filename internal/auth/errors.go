// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors returned by repositories.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Error codes surfaced by Service flows.
const (
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeTooManyAttempts       = "AUTH_TOO_MANY_ATTEMPTS"
	CodeAlreadyExists         = "AUTH_ALREADY_EXISTS"
	CodePasswordMismatch      = "AUTH_PASSWORD_MISMATCH"
	CodeWeakPassword          = "AUTH_WEAK_PASSWORD"
	CodeInvalidEmail          = "AUTH_INVALID_EMAIL"
	CodeInvalidToken          = "AUTH_INVALID_TOKEN"
	CodeInvalidOrExpiredToken = "AUTH_INVALID_OR_EXPIRED_TOKEN"
	CodeNotFound              = "AUTH_NOT_FOUND"
)

// ErrorCode returns the oops code carried by err, or "" when err has none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// PublicCode returns the code a transport layer may disclose to the caller.
// Throttling is reported exactly like bad credentials so a client cannot
// tell which check rejected the attempt.
func PublicCode(err error) string {
	code := ErrorCode(err)
	if code == CodeTooManyAttempts {
		return CodeInvalidCredentials
	}
	return code
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func errInvalidToken() error {
	return oops.Code(CodeInvalidToken).Errorf("invalid or expired token")
}
