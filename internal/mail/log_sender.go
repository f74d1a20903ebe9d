// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to a logger instead of delivering them.
// Bodies carry live tokens and are logged at debug level only.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail delivered to log",
		"to", msg.To,
		"kind", msg.Kind,
		"subject", msg.Subject,
	)
	s.logger.DebugContext(ctx, "mail body", "kind", msg.Kind, "body", msg.Body)
	return nil
}
