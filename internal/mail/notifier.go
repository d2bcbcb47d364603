// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

// Package mail delivers password reset and email verification links over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/url"
	"text/template"
	"time"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"

	"github.com/pressroom/pressroom/internal/auth"
)

// Sender delivers composed messages. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// DefaultTimeout bounds one delivery when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Config configures the SMTP notifier.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ResetURL and VerifyURL receive the token as a "token" query parameter.
	ResetURL  string
	VerifyURL string
	// ResetTTL is quoted in the reset message.
	ResetTTL time.Duration
	// Timeout bounds one delivery, dial included. The caller's context can
	// end it sooner.
	Timeout time.Duration
}

var (
	resetTemplate = template.Must(template.New("reset").Parse(`Hello,

Someone asked to reset the password for {{.Email}}.
Follow the link below within {{.TTL}} to choose a new password:

{{.Link}}

If you did not ask for this, you can ignore this message.
`))

	verifyTemplate = template.Must(template.New("verify").Parse(`Hello,

Please confirm that {{.Email}} is your email address by following the link below:

{{.Link}}
`))
)

type messageData struct {
	Email string
	Link  string
	TTL   time.Duration
}

// Notifier implements auth.Notifier by sending mail.
type Notifier struct {
	sender Sender
	cfg    Config
}

// NewNotifier creates a Notifier that dials the configured SMTP server.
func NewNotifier(cfg Config) (*Notifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("smtp host is required")
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return NewNotifierWithSender(dialer, cfg)
}

// NewNotifierWithSender creates a Notifier that hands messages to sender.
func NewNotifierWithSender(sender Sender, cfg Config) (*Notifier, error) {
	if sender == nil {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("sender is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("from address is required")
	}
	for name, raw := range map[string]string{"reset_url": cfg.ResetURL, "verify_url": cfg.VerifyURL} {
		if raw == "" {
			continue
		}
		if _, err := url.Parse(raw); err != nil {
			return nil, oops.Code("MAIL_INVALID_CONFIG").With("key", name).Wrap(err)
		}
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = auth.DefaultResetTokenTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Notifier{sender: sender, cfg: cfg}, nil
}

// SendPasswordReset mails a reset link to email.
func (n *Notifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return n.send(ctx, "password_reset", email, "Reset your password", resetTemplate, n.cfg.ResetURL, token)
}

// SendVerification mails an email verification link to email.
func (n *Notifier) SendVerification(ctx context.Context, email, token string) error {
	return n.send(ctx, "verification", email, "Please verify your email address", verifyTemplate, n.cfg.VerifyURL, token)
}

func (n *Notifier) send(ctx context.Context, kind, email, subject string, tmpl *template.Template, base, token string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("kind", kind).Wrap(err)
	}

	body, err := render(tmpl, messageData{Email: email, Link: link(base, token), TTL: n.cfg.ResetTTL})
	if err != nil {
		return oops.Code("MAIL_RENDER_FAILED").With("kind", kind).Wrap(err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.cfg.From)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return n.deliver(ctx, kind, msg)
}

// deliver runs the blocking SMTP exchange until it finishes, ctx ends or the
// configured timeout passes. gomail's dialer has no deadline of its own past
// the TCP connect, so an abandoned exchange finishes in the background and
// its result is dropped.
func (n *Notifier) deliver(ctx context.Context, kind string, msg *gomail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.sender.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return oops.Code("MAIL_SEND_FAILED").With("kind", kind).Wrap(err)
		}
		return nil
	case <-ctx.Done():
		return oops.Code("MAIL_SEND_FAILED").
			With("kind", kind).
			With("timeout", n.cfg.Timeout.String()).
			Wrap(ctx.Err())
	}
}

// link appends the token to base as a query parameter. Without a base the
// bare token is used so the message is still actionable.
func link(base, token string) string {
	if base == "" {
		return token
	}
	u, err := url.Parse(base)
	if err != nil {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func render(tmpl *template.Template, data messageData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err //nolint:wrapcheck // wrapped by caller
	}
	return buf.String(), nil
}

var _ auth.Notifier = (*Notifier)(nil)
