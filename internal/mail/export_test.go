// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"log/slog"
	"net/smtp"
	"time"

	"github.com/hibiken/asynq"
)

// SendMailFunc exposes the smtp.SendMail seam to tests.
type SendMailFunc = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// WithSendMail replaces the SMTP transport and clock.
func (s *SMTPSender) WithSendMail(fn SendMailFunc, now func() time.Time) *SMTPSender {
	s.sendMail = fn
	s.now = now
	return s
}

// TaskServer exposes the asynq server seam to tests.
type TaskServer interface {
	Start(handler asynq.Handler) error
	Shutdown()
}

// NewWorkerForTest builds a Worker around a fake server.
func NewWorkerForTest(srv TaskServer, sender Sender, logger *slog.Logger) *Worker {
	return newWorker(srv, sender, logger)
}
