// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package authtest

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pressroom/pressroom/internal/auth"
)

// TokenSecret is the signing secret used by harness services.
var TokenSecret = []byte("authtest-signing-secret-0123456789abcdef")

// Epoch is the time harness clocks start at.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Harness wires a Service to in-memory collaborators.
type Harness struct {
	Store    *Store
	Clock    *Clock
	Notifier *Notifier
	Hasher   auth.PasswordHasher
	Tokens   *auth.TokenIssuer
	Service  *auth.Service
}

// NewHarness builds a Service over a fresh Store with a fake clock starting at
// Epoch and a fast bcrypt hasher. Extra options are applied after the clock.
func NewHarness(opts ...auth.Option) (*Harness, error) {
	h := &Harness{
		Store:    NewStore(),
		Clock:    NewClock(Epoch),
		Notifier: &Notifier{},
	}

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	h.Hasher = hasher

	tokens, err := auth.NewTokenIssuer(TokenSecret, "authtest", 15*time.Minute, h.Clock.Now)
	if err != nil {
		return nil, err
	}
	h.Tokens = tokens

	svc, err := auth.NewService(h.Dependencies(), append([]auth.Option{auth.WithClock(h.Clock.Now)}, opts...)...)
	if err != nil {
		return nil, err
	}
	h.Service = svc
	return h, nil
}

// Dependencies returns the harness collaborators as auth.Dependencies.
func (h *Harness) Dependencies() auth.Dependencies {
	return auth.Dependencies{
		Identities: h.Store.Identities(),
		Sessions:   h.Store.Sessions(),
		Attempts:   h.Store.Attempts(),
		Audit:      h.Store.Audit(),
		Hasher:     h.Hasher,
		Tokens:     h.Tokens,
		Notifier:   h.Notifier,
		Transactor: h.Store,
	}
}
