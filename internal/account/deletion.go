// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account

import (
	"context"
	"errors"
	"time"

	"github.com/latchkey/latchkey/internal/auth"
)

// RequestAccountDeletion marks an account for deletion after checking its
// password, and emails a confirmation token. A failed send fails the operation.
func (m *Manager) RequestAccountDeletion(ctx context.Context, email, password string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpRequestAccountDeletion)
	defer func() { done(res, err) }()

	email = NormalizeEmail(email)
	for attempt := 1; ; attempt++ {
		user, lookupErr := m.lookupByEmail(ctx, email)
		if lookupErr != nil {
			return systemError(ReasonNone), lookupErr
		}
		if user == nil {
			m.hasher.Verify(password, dummyHash, dummySalt)
			return outcome(StatusUnauthorized, ReasonBadCredentials), nil
		}
		spanAttrUser(ctx, user.ID)

		// Re-checked on every read: a concurrent reset invalidates the password.
		if !m.hasher.Verify(password, user.PasswordHash, user.PasswordSalt) {
			return outcome(StatusUnauthorized, ReasonBadCredentials), nil
		}

		tok, tokErr := m.tokens.Issue(auth.DeletionTokenTTL)
		if tokErr != nil {
			return systemError(ReasonNone), fail("ACCOUNT_TOKEN_FAILED", "issue deletion token", tokErr)
		}
		user.MarkForDeletion(tok, m.now().UTC())

		if saveErr := m.store.Save(ctx, user); saveErr != nil {
			if m.retryStale(ctx, saveErr, attempt, user.ID) {
				continue
			}
			return systemError(ReasonNone), fail("ACCOUNT_PERSIST_FAILED", "save user", saveErr)
		}

		if sendErr := m.dispatcher.SendDeletionConfirmation(ctx, user.Email, tok.Value); sendErr != nil {
			return systemError(ReasonDispatchFailed), dispatchFailed(MailDeletionConfirmation, user.ID, sendErr)
		}

		m.logger.InfoContext(ctx, "account deletion requested", "user_id", user.ID.String())
		return success(user.ID), nil
	}
}

// ConfirmAccountDeletion permanently removes the account holding a live
// deletion token. The completion notice is best effort.
func (m *Manager) ConfirmAccountDeletion(ctx context.Context, token string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpConfirmAccountDeletion)
	defer func() { done(res, err) }()

	if token == "" {
		return outcome(StatusInvalidToken, ReasonTokenMissing), nil
	}

	// The delete is the token check, so the notice can only follow it.
	now := m.now()
	user, err := m.store.ConsumeDeletionToken(ctx, token, now)
	if errors.Is(err, ErrNotFound) {
		return m.diagnoseDeletion(ctx, token, now), nil
	}
	if err != nil {
		return systemError(ReasonNone), fail("ACCOUNT_PERSIST_FAILED", "consume deletion token", err)
	}
	spanAttrUser(ctx, user.ID)

	m.bestEffort(ctx, MailDeletionCompleted, user.ID, m.dispatcher.SendDeletionCompletedNotice(ctx, user.Email))

	m.logger.InfoContext(ctx, "account deleted", "user_id", user.ID.String())
	return success(user.ID), nil
}

func (m *Manager) diagnoseDeletion(ctx context.Context, token string, now time.Time) Result {
	user, err := m.store.FindByDeletionToken(ctx, token)
	switch {
	case errors.Is(err, ErrNotFound):
		m.logger.DebugContext(ctx, "deletion token not found")
		return outcome(StatusInvalidToken, ReasonTokenUnknown)
	case err != nil:
		m.logger.WarnContext(ctx, "deletion diagnostics lookup failed", "operation", "find_by_deletion_token", "error", err)
		return outcome(StatusInvalidToken, ReasonTokenUnknown)
	case !user.MarkedForDeletion:
		m.logger.InfoContext(ctx, "deletion token presented for unmarked account", "user_id", user.ID.String())
		return outcome(StatusInvalidToken, ReasonNotMarkedForDeletion)
	case !user.HasLiveDeletionToken(token, now):
		m.logger.InfoContext(ctx, "deletion token expired",
			"user_id", user.ID.String(),
			"expired_at", user.DeletionTokenExpires,
		)
		return outcome(StatusInvalidToken, ReasonTokenExpired)
	default:
		return outcome(StatusInvalidToken, ReasonTokenUnknown)
	}
}

// AdminDeleteAccount removes an account without the token workflow.
// Authorization is the caller's job; the CLI is the only entry point.
func (m *Manager) AdminDeleteAccount(ctx context.Context, email string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpAdminDeleteAccount)
	defer func() { done(res, err) }()

	user, err := m.lookupByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return systemError(ReasonNone), err
	}
	if user == nil {
		return outcome(StatusNotFound, ReasonNone), nil
	}
	spanAttrUser(ctx, user.ID)

	m.bestEffort(ctx, MailDeletionCompleted, user.ID, m.dispatcher.SendDeletionCompletedNotice(ctx, user.Email))

	if err := m.store.Remove(ctx, user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return outcome(StatusNotFound, ReasonNone), nil
		}
		return systemError(ReasonNone), fail("ACCOUNT_PERSIST_FAILED", "remove user", err)
	}

	m.logger.InfoContext(ctx, "account deleted by administrator", "user_id", user.ID.String())
	return success(user.ID), nil
}
