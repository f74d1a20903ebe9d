// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account

import (
	"github.com/oklog/ulid/v2"

	"github.com/latchkey/latchkey/internal/auth"
)

// Status is the outcome class of a lifecycle operation.
type Status string

// Outcome classes.
const (
	StatusSuccess      Status = "success"
	StatusNotFound     Status = "not_found"
	StatusConflict     Status = "conflict"
	StatusInvalidToken Status = "invalid_token"
	StatusUnauthorized Status = "unauthorized"
	StatusInvalidInput Status = "invalid_input"
	StatusSystemError  Status = "system_error"
)

// Reason refines a Status for callers and diagnostics.
type Reason string

// Reasons.
const (
	ReasonNone                 Reason = ""
	ReasonEmailTaken           Reason = "email_taken"
	ReasonAlreadyVerified      Reason = "already_verified"
	ReasonNotVerified          Reason = "not_verified"
	ReasonBadCredentials       Reason = "bad_credentials"
	ReasonVerificationRequired Reason = "verification_required"
	ReasonTokenMissing         Reason = "token_missing"
	ReasonTokenUnknown         Reason = "token_unknown"
	ReasonTokenExpired         Reason = "token_expired"
	ReasonNotMarkedForDeletion Reason = "not_marked_for_deletion"
	ReasonEmailMissing         Reason = "email_missing"
	ReasonPasswordMissing      Reason = "password_missing"
	ReasonDispatchFailed       Reason = "dispatch_failed"
)

// ForgotPasswordNotice is the message callers show for every ForgotPassword
// outcome, so the response never reveals whether the account exists.
const ForgotPasswordNotice = "If an account exists for that email, a password reset link has been sent."

// Result is the typed outcome of a lifecycle operation.
type Result struct {
	Status Status
	Reason Reason

	// UserID is set when the operation resolved a user.
	UserID ulid.ULID

	// Session is set by a successful Login.
	Session *auth.Session
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func success(userID ulid.ULID) Result {
	return Result{Status: StatusSuccess, UserID: userID}
}

func outcome(status Status, reason Reason) Result {
	return Result{Status: status, Reason: reason}
}

func systemError(reason Reason) Result {
	return Result{Status: StatusSystemError, Reason: reason}
}
