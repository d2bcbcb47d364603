// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import (
	"context"
	"log/slog"
)

// Notifier delivers account emails. The auth core only produces the token;
// building and sending the message belongs to the implementation.
type Notifier interface {
	// SendPasswordReset delivers a password reset token to email.
	SendPasswordReset(ctx context.Context, email, token string) error

	// SendVerification delivers an email verification token to email.
	SendVerification(ctx context.Context, email, token string) error
}

// LogNotifier writes notifications to a logger instead of sending mail.
// The notification is logged at info level; the token itself only at debug
// level, so it never reaches a production sink running at info.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendPasswordReset logs the reset notification.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	n.logger.InfoContext(ctx, "password reset notification", "email", email)
	n.logger.DebugContext(ctx, "password reset token", "email", email, "token", token)
	return nil
}

// SendVerification logs the verification notification.
func (n *LogNotifier) SendVerification(ctx context.Context, email, token string) error {
	n.logger.InfoContext(ctx, "verification notification", "email", email)
	n.logger.DebugContext(ctx, "verification token", "email", email, "token", token)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
