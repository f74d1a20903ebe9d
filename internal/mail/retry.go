// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// RetrySender retries a Sender with exponential backoff.
type RetrySender struct {
	inner    Sender
	attempts uint64
	base     time.Duration
	max      time.Duration
	logger   *slog.Logger
}

// RetryOption configures a RetrySender.
type RetryOption func(*RetrySender)

// WithAttempts caps the total number of delivery attempts.
func WithAttempts(n uint64) RetryOption {
	return func(r *RetrySender) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithBackoff sets the first delay and the delay ceiling.
func WithBackoff(base, maxDelay time.Duration) RetryOption {
	return func(r *RetrySender) {
		if base > 0 {
			r.base = base
		}
		if maxDelay > 0 {
			r.max = maxDelay
		}
	}
}

// WithRetryLogger sets the logger for failed attempts.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(r *RetrySender) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRetrySender wraps inner. Defaults: 3 attempts starting at 500ms, capped at 10s.
func NewRetrySender(inner Sender, opts ...RetryOption) *RetrySender {
	r := &RetrySender{
		inner:    inner,
		attempts: 3,
		base:     500 * time.Millisecond,
		max:      10 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send delivers msg, retrying failures not marked ErrPermanent.
func (r *RetrySender) Send(ctx context.Context, msg Message) error {
	backoff := retry.NewExponential(r.base)
	backoff = retry.WithCappedDuration(r.max, backoff)
	backoff = retry.WithMaxRetries(r.attempts-1, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.inner.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}
		r.logger.WarnContext(ctx, "mail delivery attempt failed",
			"kind", msg.Kind,
			"attempt", attempt,
			"error", err,
		)
		return retry.RetryableError(err)
	})
	if err != nil {
		return oops.Code("MAIL_RETRIES_EXHAUSTED").
			With("kind", msg.Kind).
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
