// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account

import (
	"context"
	"errors"

	"github.com/latchkey/latchkey/internal/auth"
)

// ForgotPassword issues a password reset token for a verified account and
// emails it. Callers must show ForgotPasswordNotice for every outcome; the
// Result only distinguishes cases for diagnostics.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpForgotPassword)
	defer func() { done(res, err) }()

	email = NormalizeEmail(email)
	for attempt := 1; ; attempt++ {
		user, lookupErr := m.lookupByEmail(ctx, email)
		if lookupErr != nil {
			return systemError(ReasonNone), lookupErr
		}
		if user == nil {
			return outcome(StatusNotFound, ReasonNone), nil
		}
		spanAttrUser(ctx, user.ID)
		if !user.EmailVerified {
			return outcome(StatusNotFound, ReasonNotVerified), nil
		}

		tok, tokErr := m.tokens.Issue(auth.ResetTokenTTL)
		if tokErr != nil {
			return systemError(ReasonNone), fail("ACCOUNT_TOKEN_FAILED", "issue reset token", tokErr)
		}
		user.SetResetToken(tok)

		if saveErr := m.store.Save(ctx, user); saveErr != nil {
			if m.retryStale(ctx, saveErr, attempt, user.ID) {
				continue
			}
			return systemError(ReasonNone), fail("ACCOUNT_PERSIST_FAILED", "save user", saveErr)
		}

		if sendErr := m.dispatcher.SendPasswordReset(ctx, user.Email, tok.Value); sendErr != nil {
			return systemError(ReasonDispatchFailed), dispatchFailed(MailPasswordReset, user.ID, sendErr)
		}
		return success(user.ID), nil
	}
}

// ResetPassword sets a new password for the holder of a live reset token.
// The new hash uses a fresh salt and the token is consumed in the same write.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpResetPassword)
	defer func() { done(res, err) }()

	if token == "" {
		return outcome(StatusInvalidToken, ReasonTokenMissing), nil
	}
	if newPassword == "" {
		return outcome(StatusInvalidInput, ReasonPasswordMissing), nil
	}

	now := m.now()
	user, err := m.store.FindByResetToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		m.logger.DebugContext(ctx, "reset token not found")
		return outcome(StatusInvalidToken, ReasonTokenUnknown), nil
	}
	if err != nil {
		return systemError(ReasonNone), fail("ACCOUNT_LOOKUP_FAILED", "find by reset token", err)
	}
	spanAttrUser(ctx, user.ID)

	if !user.HasLiveResetToken(token, now) {
		m.logger.InfoContext(ctx, "reset token expired",
			"user_id", user.ID.String(),
			"expired_at", user.ResetTokenExpires,
		)
		return outcome(StatusInvalidToken, ReasonTokenExpired), nil
	}

	hash, salt, err := m.hasher.Hash(newPassword)
	if err != nil {
		return systemError(ReasonNone), fail("ACCOUNT_HASH_FAILED", "hash password", err)
	}

	if _, err := m.store.ConsumeResetToken(ctx, token, now, hash, salt); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Consumed concurrently between lookup and write.
			return outcome(StatusInvalidToken, ReasonTokenUnknown), nil
		}
		return systemError(ReasonNone), fail("ACCOUNT_PERSIST_FAILED", "consume reset token", err)
	}

	m.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return success(user.ID), nil
}
