// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers messages to an SMTP relay.
type SMTPSender struct {
	addr     string
	auth     smtp.Auth
	sendMail sendMailFunc
	now      func() time.Time
}

// NewSMTPSender creates an SMTPSender. PLAIN auth is used when a username is set.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("smtp host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	s := &SMTPSender{
		addr:     net.JoinHostPort(cfg.Host, fmt.Sprint(port)),
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// Send delivers msg. net/smtp has no context support, so ctx is only
// checked before the dial. 5xx replies are marked ErrPermanent.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_CANCELED").With("kind", msg.Kind).Wrap(err)
	}
	if err := s.sendMail(s.addr, s.auth, msg.From, []string{msg.To}, s.compose(msg)); err != nil {
		var reply *textproto.Error
		if errors.As(err, &reply) && reply.Code >= 500 {
			err = fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return oops.Code("MAIL_SMTP_FAILED").
			With("addr", s.addr).
			With("kind", msg.Kind).
			Wrap(err)
	}
	return nil
}

// compose builds an RFC 5322 message with a plain text body.
func (s *SMTPSender) compose(msg Message) []byte {
	domain := "localhost"
	if at := strings.LastIndexByte(msg.From, '@'); at >= 0 {
		domain = msg.From[at+1:]
	}

	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", msg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", s.now().Format(time.RFC1123Z))
	header("Message-ID", "<"+ulid.Make().String()+"@"+domain+">")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
