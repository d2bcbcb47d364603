// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

// Package auth implements the Pressroom authentication and session lifecycle.
//
// Domain types:
//   - Identity: a CMS user account (email, password hash, role, verification and reset state)
//   - Session: one authenticated device holding the current access/refresh token pair
//   - LoginAttempt: append-only record of a login call, used for throttling
//   - AuditEntry: append-only record of a security-relevant action
//
// Building blocks:
//   - PasswordHasher: bcrypt (default) or argon2id hashing with a per-call salt
//   - TokenIssuer: signed JWT access tokens and opaque refresh tokens
//   - RateLimiter: per-email and per-origin failure counters over the attempt log
//   - AuditTrail: best-effort audit writer
//   - Sweeper: background removal of expired sessions and old login attempts
//
// Service orchestrates these into the login, registration, refresh, logout,
// password reset/change and email verification flows. Persistence lives behind
// the repository interfaces; see the postgres subpackage.
package auth
