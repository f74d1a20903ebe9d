// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/latchkey/latchkey/internal/auth"
)

// Register creates an unverified account and sends a verification email.
// A failed send does not fail registration; the user can ask for a resend.
func (m *Manager) Register(ctx context.Context, email, password string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpRegister)
	defer func() { done(res, err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return outcome(StatusInvalidInput, ReasonEmailMissing), nil
	}
	if password == "" {
		return outcome(StatusInvalidInput, ReasonPasswordMissing), nil
	}

	exists, err := m.store.ExistsByEmail(ctx, email)
	if err != nil {
		return systemError(ReasonNone), fail("ACCOUNT_LOOKUP_FAILED", "exists by email", err)
	}
	if exists {
		return outcome(StatusConflict, ReasonEmailTaken), nil
	}

	hash, salt, err := m.hasher.Hash(password)
	if err != nil {
		return systemError(ReasonNone), fail("ACCOUNT_HASH_FAILED", "hash password", err)
	}

	tok, err := m.tokens.Issue(auth.VerificationTokenTTL)
	if err != nil {
		return systemError(ReasonNone), fail("ACCOUNT_TOKEN_FAILED", "issue verification token", err)
	}

	user := &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		CreatedAt:    m.now().UTC(),
	}
	user.SetVerificationToken(tok)

	if insertErr := m.store.Insert(ctx, user); insertErr != nil {
		if errors.Is(insertErr, ErrEmailTaken) {
			return outcome(StatusConflict, ReasonEmailTaken), nil
		}
		return systemError(ReasonNone), fail("ACCOUNT_PERSIST_FAILED", "insert user", insertErr)
	}
	spanAttrUser(ctx, user.ID)

	m.bestEffort(ctx, MailVerification, user.ID, m.dispatcher.SendVerification(ctx, user.Email, tok.Value))

	m.logger.InfoContext(ctx, "account registered", "user_id", user.ID.String())
	return success(user.ID), nil
}

// Login checks credentials and issues a session credential. Unknown email and
// wrong password produce the same result; an unverified account with the
// right password gets ReasonVerificationRequired.
func (m *Manager) Login(ctx context.Context, email, password string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpLogin)
	defer func() { done(res, err) }()

	user, err := m.lookupByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return systemError(ReasonNone), err
	}
	if user == nil {
		m.hasher.Verify(password, dummyHash, dummySalt)
		return outcome(StatusUnauthorized, ReasonBadCredentials), nil
	}
	spanAttrUser(ctx, user.ID)

	if !m.hasher.Verify(password, user.PasswordHash, user.PasswordSalt) {
		return outcome(StatusUnauthorized, ReasonBadCredentials), nil
	}
	if !user.EmailVerified {
		return Result{Status: StatusUnauthorized, Reason: ReasonVerificationRequired, UserID: user.ID}, nil
	}

	session, err := m.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return systemError(ReasonNone), fail("ACCOUNT_SESSION_FAILED", "issue session", err)
	}

	res = success(user.ID)
	res.Session = &session
	return res, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
// A token can succeed at most once.
func (m *Manager) VerifyEmail(ctx context.Context, token string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpVerifyEmail)
	defer func() { done(res, err) }()

	if token == "" {
		return outcome(StatusInvalidToken, ReasonTokenMissing), nil
	}

	now := m.now()
	user, err := m.store.ConsumeVerificationToken(ctx, token, now)
	if err == nil {
		spanAttrUser(ctx, user.ID)
		m.logger.InfoContext(ctx, "email verified", "user_id", user.ID.String())
		return success(user.ID), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return systemError(ReasonNone), fail("ACCOUNT_PERSIST_FAILED", "consume verification token", err)
	}

	return m.diagnoseVerification(ctx, token, now), nil
}

// diagnoseVerification explains a failed verification in the logs. The
// caller only learns the coarse outcome.
func (m *Manager) diagnoseVerification(ctx context.Context, token string, now time.Time) Result {
	user, err := m.store.FindByVerificationToken(ctx, token)
	switch {
	case errors.Is(err, ErrNotFound):
		m.logger.DebugContext(ctx, "verification token not found")
		return outcome(StatusInvalidToken, ReasonTokenUnknown)
	case err != nil:
		m.logger.WarnContext(ctx, "verification diagnostics lookup failed", "operation", "find_by_verification_token", "error", err)
		return outcome(StatusInvalidToken, ReasonTokenUnknown)
	case user.EmailVerified:
		m.logger.InfoContext(ctx, "verification token presented for verified account", "user_id", user.ID.String())
		return outcome(StatusConflict, ReasonAlreadyVerified)
	case !user.HasLiveVerificationToken(token, now):
		m.logger.InfoContext(ctx, "verification token expired",
			"user_id", user.ID.String(),
			"expired_at", user.VerificationTokenExpires,
		)
		return outcome(StatusInvalidToken, ReasonTokenExpired)
	default:
		// Live token that lost a race with a concurrent consumer.
		return outcome(StatusInvalidToken, ReasonTokenUnknown)
	}
}

// ResendVerification replaces the verification token of an unverified
// account and sends it again. A failed send fails the operation.
func (m *Manager) ResendVerification(ctx context.Context, email string) (res Result, err error) {
	ctx, done := m.observe(ctx, OpResendVerification)
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
		if user.EmailVerified {
			return outcome(StatusConflict, ReasonAlreadyVerified), nil
		}

		tok, tokErr := m.tokens.Issue(auth.VerificationTokenTTL)
		if tokErr != nil {
			return systemError(ReasonNone), fail("ACCOUNT_TOKEN_FAILED", "issue verification token", tokErr)
		}
		user.SetVerificationToken(tok)

		if saveErr := m.store.Save(ctx, user); saveErr != nil {
			if m.retryStale(ctx, saveErr, attempt, user.ID) {
				continue
			}
			return systemError(ReasonNone), fail("ACCOUNT_PERSIST_FAILED", "save user", saveErr)
		}

		if sendErr := m.dispatcher.SendVerification(ctx, user.Email, tok.Value); sendErr != nil {
			return systemError(ReasonDispatchFailed), dispatchFailed(MailVerification, user.ID, sendErr)
		}
		return success(user.ID), nil
	}
}
