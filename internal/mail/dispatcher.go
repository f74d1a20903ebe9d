// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/latchkey/latchkey/internal/account"
	"github.com/latchkey/latchkey/internal/auth"
)

// Link paths appended to the public base URL.
const (
	VerifyPath         = "/verify-email"
	ResetPath          = "/reset-password"
	ConfirmDeletePath  = "/confirm-deletion"
	defaultProductName = "Latchkey"
)

// Settings configures a Dispatcher.
type Settings struct {
	// From is the envelope and header sender address.
	From string
	// BaseURL is the public origin links point at, e.g. https://app.example.com.
	BaseURL string
	// Product names the service in subjects and bodies.
	Product string
}

// Dispatcher implements account.Dispatcher by rendering templates and
// handing the result to a Sender.
type Dispatcher struct {
	sender  Sender
	from    string
	base    *url.URL
	product string
}

// NewDispatcher validates settings and returns a Dispatcher.
func NewDispatcher(sender Sender, s Settings) (*Dispatcher, error) {
	if sender == nil {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("sender is required")
	}
	if s.From == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("from address is required")
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, oops.Code("MAIL_INVALID_CONFIG").With("base_url", s.BaseURL).Wrap(err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").
			With("base_url", s.BaseURL).
			Errorf("base url must be absolute")
	}
	product := s.Product
	if product == "" {
		product = defaultProductName
	}
	return &Dispatcher{sender: sender, from: s.From, base: base, product: product}, nil
}

// SendVerification sends the email verification link.
func (d *Dispatcher) SendVerification(ctx context.Context, email, token string) error {
	return d.send(ctx, account.MailVerification, email, d.link(VerifyPath, token), auth.VerificationTokenTTL)
}

// SendPasswordReset sends the password reset link.
func (d *Dispatcher) SendPasswordReset(ctx context.Context, email, token string) error {
	return d.send(ctx, account.MailPasswordReset, email, d.link(ResetPath, token), auth.ResetTokenTTL)
}

// SendDeletionConfirmation sends the account deletion confirmation link.
func (d *Dispatcher) SendDeletionConfirmation(ctx context.Context, email, token string) error {
	return d.send(ctx, account.MailDeletionConfirmation, email, d.link(ConfirmDeletePath, token), auth.DeletionTokenTTL)
}

// SendDeletionCompletedNotice tells the user the account is gone.
func (d *Dispatcher) SendDeletionCompletedNotice(ctx context.Context, email string) error {
	return d.send(ctx, account.MailDeletionCompleted, email, "", 0)
}

func (d *Dispatcher) send(ctx context.Context, kind, to, link string, ttl time.Duration) error {
	subject, body, err := render(kind, templateData{
		Product: d.product,
		Email:   to,
		Link:    link,
		Expires: humanTTL(ttl),
	})
	if err != nil {
		return err
	}

	msg := Message{To: to, From: d.from, Subject: subject, Body: body, Kind: kind}
	if err := d.sender.Send(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("kind", kind).Wrap(err)
	}
	return nil
}

// link builds base/path?token=... with the token query-escaped.
func (d *Dispatcher) link(path, token string) string {
	u := *d.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func humanTTL(ttl time.Duration) string {
	hours := int(ttl.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

// Compile-time interface check.
var _ account.Dispatcher = (*Dispatcher)(nil)
