// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when no record matches.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by Store.Insert when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrStale is returned by Store.Save when the record changed or was removed
// after it was read.
var ErrStale = errors.New("record changed since read")

// Store persists user records. All operations are atomic per record.
// Emails passed in are already normalized.
type Store interface {
	// FindByEmail returns the user with the given email or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByVerificationToken returns the user holding token, expired or not.
	FindByVerificationToken(ctx context.Context, token string) (*User, error)

	// FindByResetToken returns the user holding token, expired or not.
	FindByResetToken(ctx context.Context, token string) (*User, error)

	// FindByDeletionToken returns the user holding token, expired or not.
	FindByDeletionToken(ctx context.Context, token string) (*User, error)

	// Insert stores a new user and sets its Version. Returns ErrEmailTaken on
	// a duplicate email.
	Insert(ctx context.Context, user *User) error

	// Save overwrites a previously fetched user if its Version is still
	// current, and advances user.Version. Returns ErrStale otherwise.
	Save(ctx context.Context, user *User) error

	// Remove deletes the user permanently.
	Remove(ctx context.Context, user *User) error

	// ExistsByEmail reports whether a user with the email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ConsumeVerificationToken marks the holder of a live verification token
	// as verified and clears the token, in one conditional write. Returns
	// ErrNotFound when no unverified user holds token with expiry after now.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error)

	// ConsumeResetToken replaces the password of the holder of a live reset
	// token and clears the token, in one conditional write.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, hash, salt []byte) (*User, error)

	// ConsumeDeletionToken removes the user holding a live deletion token who
	// is marked for deletion, in one conditional write, and returns the removed record.
	ConsumeDeletionToken(ctx context.Context, token string, now time.Time) (*User, error)
}

// Dispatcher delivers account emails. Each call may fail independently.
type Dispatcher interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
	SendDeletionConfirmation(ctx context.Context, email, token string) error
	SendDeletionCompletedNotice(ctx context.Context, email string) error
}
