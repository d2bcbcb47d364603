// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package authtest

import (
	"context"
	"sync"
	"time"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock starting at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Message is a notification captured by Notifier.
type Message struct {
	Email string
	Token string
}

// Notifier records notifications instead of delivering them.
type Notifier struct {
	mu            sync.Mutex
	resets        []Message
	verifications []Message

	// Err, when set, is returned by every send after the message is recorded.
	Err error
}

// SendPasswordReset records a reset notification.
func (n *Notifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, Message{Email: email, Token: token})
	return n.Err
}

// SendVerification records a verification notification.
func (n *Notifier) SendVerification(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications = append(n.verifications, Message{Email: email, Token: token})
	return n.Err
}

// Resets returns the recorded reset notifications.
func (n *Notifier) Resets() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.resets...)
}

// Verifications returns the recorded verification notifications.
func (n *Notifier) Verifications() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.verifications...)
}

// LastResetToken returns the most recent reset token sent to email, or "".
func (n *Notifier) LastResetToken(email string) string {
	return lastToken(n.Resets(), email)
}

// LastVerificationToken returns the most recent verification token sent to email, or "".
func (n *Notifier) LastVerificationToken(email string) string {
	return lastToken(n.Verifications(), email)
}

func lastToken(msgs []Message, email string) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Email == email {
			return msgs[i].Token
		}
	}
	return ""
}
