// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration.
const (
	OpaqueTokenBytes     = 32 // 32 bytes = 64 hex chars
	MinTokenSecretLength = 32
	DefaultAccessTTL     = 15 * time.Minute
	DefaultTokenIssuer   = "pressroom"
)

// AccessClaims is the payload of an access token. The JWT ID is a fresh ULID
// per issuance so two tokens minted in the same second still differ.
// SessionID is empty for tokens minted at registration.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid,omitempty"`
}

// IdentityID returns the subject as a ULID.
func (c *AccessClaims) IdentityID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidToken).With("subject", c.Subject).Wrap(err)
	}
	return id, nil
}

// Session returns the session the token was issued for. ok is false for
// tokens not bound to a session.
func (c *AccessClaims) Session() (id ulid.ULID, ok bool, err error) {
	if c.SessionID == "" {
		return ulid.ULID{}, false, nil
	}
	id, err = ulid.Parse(c.SessionID)
	if err != nil {
		return ulid.ULID{}, false, oops.Code(CodeInvalidToken).With("sid", c.SessionID).Wrap(err)
	}
	return id, true, nil
}

// IssuedTokens is a freshly minted token pair.
type IssuedTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
	ExpiresAt    time.Time
}

// TokenIssuer mints signed access tokens and opaque refresh tokens.
type TokenIssuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	clock     func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with HS256.
func NewTokenIssuer(secret []byte, issuer string, accessTTL time.Duration, clock func() time.Time) (*TokenIssuer, error) {
	if len(secret) < MinTokenSecretLength {
		return nil, oops.Code("AUTH_INVALID_TOKEN_SECRET").
			With("min_length", MinTokenSecretLength).
			Errorf("token secret must be at least %d bytes", MinTokenSecretLength)
	}
	if issuer == "" {
		issuer = DefaultTokenIssuer
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		secret:    secret,
		issuer:    issuer,
		accessTTL: accessTTL,
		clock:     clock,
	}, nil
}

// Issue mints a new access/refresh token pair for the identity. A non-zero
// sessionID is embedded as the sid claim.
func (t *TokenIssuer) Issue(identityID, sessionID ulid.ULID) (*IssuedTokens, error) {
	now := t.clock()
	expiresAt := now.Add(t.accessTTL)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   identityID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if sessionID != (ulid.ULID{}) {
		claims.SessionID = sessionID.String()
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_SIGN_FAILED").
			With("identity_id", identityID.String()).
			Wrap(err)
	}

	refresh, _, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	return &IssuedTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(t.accessTTL / time.Second),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseAccessToken verifies the signature, algorithm, issuer and expiry of
// an access token and returns its claims.
func (t *TokenIssuer) ParseAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.clock),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).Wrap(err)
	}
	return claims, nil
}

// GenerateOpaqueToken creates a random opaque token and its hash.
// Returns (plaintext_token, sha256_hash, error). Only the hash is persisted.
func GenerateOpaqueToken() (token, hash string, err error) {
	b := make([]byte, OpaqueTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", OpaqueTokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken computes the SHA256 hex digest of a token for storage and lookup.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
