// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/latchkey/latchkey/internal/auth"
	"github.com/latchkey/latchkey/pkg/errutil"
)

var tracer = otel.Tracer("latchkey/account")

// Fixed inputs verified when a login names an unknown account, so the
// response takes as long as a real password check. Never matches.
var (
	dummyHash = make([]byte, auth.HashLen)
	dummySalt = make([]byte, auth.SaltLen)
)

// SessionIssuer issues session credentials after a successful login.
type SessionIssuer interface {
	Issue(userID ulid.ULID, email string) (auth.Session, error)
}

// TokenIssuer issues single-use tokens.
type TokenIssuer interface {
	Issue(ttl time.Duration) (auth.Token, error)
}

// Manager orchestrates the account lifecycle against a Store and a Dispatcher.
// It keeps no state between calls and is safe for concurrent use.
type Manager struct {
	store      Store
	dispatcher Dispatcher
	sessions   SessionIssuer
	hasher     auth.PasswordHasher
	tokens     TokenIssuer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Manager during construction.
type Option func(*Manager)

// WithHasher overrides the default argon2id hasher.
func WithHasher(h auth.PasswordHasher) Option {
	return func(m *Manager) {
		m.hasher = h
	}
}

// WithTokenIssuer overrides the default crypto/rand token generator.
func WithTokenIssuer(t TokenIssuer) Option {
	return func(m *Manager) {
		m.tokens = t
	}
}

// WithClock overrides the clock used for expiry checks and deletion stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager. Store, dispatcher and session issuer are required.
func NewManager(store Store, dispatcher Dispatcher, sessions SessionIssuer, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("store is required")
	}
	if dispatcher == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("dispatcher is required")
	}
	if sessions == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("session issuer is required")
	}

	m := &Manager{
		store:      store,
		dispatcher: dispatcher,
		sessions:   sessions,
		hasher:     auth.NewArgon2idHasher(),
		tokens:     auth.NewTokenGenerator(),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hasher == nil || m.tokens == nil || m.now == nil || m.logger == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("options must not clear required collaborators")
	}
	return m, nil
}

// observe opens a span for op and returns the function that closes it and
// records metrics from the final result.
func (m *Manager) observe(ctx context.Context, op string) (context.Context, func(Result, error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "account."+op)

	return ctx, func(res Result, err error) {
		span.SetAttributes(
			attribute.String("account.status", string(res.Status)),
			attribute.String("account.reason", string(res.Reason)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			errutil.LogError(ctx, m.logger, "account operation failed", err)
		}
		span.End()
		RecordOperation(op, res.Status, time.Since(start))
	}
}

// fail wraps err as a coded system error for the named step.
func fail(code, step string, err error) error {
	return oops.Code(code).With("operation", step).Wrap(err)
}

// lookupByEmail resolves a user, mapping ErrNotFound to (nil, nil).
func (m *Manager) lookupByEmail(ctx context.Context, email string) (*User, error) {
	user, err := m.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("ACCOUNT_LOOKUP_FAILED", "find by email", err)
	}
	return user, nil
}

// saveAttempts bounds how often an operation re-reads a record whose Save
// lost to a concurrent write.
const saveAttempts = 3

// retryStale reports whether a Save error is a lost race that the caller
// should retry from a fresh read.
func (m *Manager) retryStale(ctx context.Context, err error, attempt int, userID ulid.ULID) bool {
	if !errors.Is(err, ErrStale) || attempt >= saveAttempts {
		return false
	}
	m.logger.DebugContext(ctx, "record changed concurrently, re-reading",
		"user_id", userID.String(),
		"attempt", attempt,
	)
	return true
}

// bestEffort logs a dispatch failure without failing the operation.
func (m *Manager) bestEffort(ctx context.Context, kind string, userID ulid.ULID, err error) {
	if err == nil {
		return
	}
	RecordDispatchFailure(kind)
	m.logger.WarnContext(ctx, "best-effort email dispatch failed",
		"operation", "send_"+kind,
		"user_id", userID.String(),
		"error", err,
	)
}

// dispatchFailed records a dispatch failure that fails the operation.
func dispatchFailed(kind string, userID ulid.ULID, err error) error {
	RecordDispatchFailure(kind)
	return oops.Code("ACCOUNT_DISPATCH_FAILED").
		With("operation", "send_"+kind).
		With("user_id", userID.String()).
		Wrap(err)
}

func spanAttrUser(ctx context.Context, id ulid.ULID) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("account.user_id", id.String()))
}
