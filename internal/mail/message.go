// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

// Package mail renders and delivers account emails.
//
// A Dispatcher turns lifecycle events into Messages and hands them to a
// Sender. Senders compose: a QueueSender defers delivery to the asynq
// worker, which delivers through a RetrySender wrapping an SMTPSender.
package mail

import "context"

// Message is a rendered email.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// Kind is one of the account.Mail* kinds.
	Kind string `json:"kind"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
