// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/latchkey/latchkey/internal/auth"
)

// User is the persisted account record.
// Each token and its expiry are set together and cleared together.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash []byte
	PasswordSalt []byte

	EmailVerified            bool
	VerificationToken        *string
	VerificationTokenExpires *time.Time

	ResetToken        *string
	ResetTokenExpires *time.Time

	MarkedForDeletion    bool
	DeletionScheduledAt  *time.Time
	DeletionToken        *string
	DeletionTokenExpires *time.Time

	CreatedAt time.Time

	// Version is assigned by the Store and advances on every write.
	Version int64
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Every lookup, uniqueness check and insert goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetVerificationToken replaces any outstanding verification token.
func (u *User) SetVerificationToken(tok auth.Token) {
	u.VerificationToken, u.VerificationTokenExpires = tokenPair(tok)
}

// ClearVerificationToken consumes the verification token.
func (u *User) ClearVerificationToken() {
	u.VerificationToken, u.VerificationTokenExpires = nil, nil
}

// SetResetToken replaces any outstanding password reset token.
func (u *User) SetResetToken(tok auth.Token) {
	u.ResetToken, u.ResetTokenExpires = tokenPair(tok)
}

// ClearResetToken consumes the password reset token.
func (u *User) ClearResetToken() {
	u.ResetToken, u.ResetTokenExpires = nil, nil
}

// MarkForDeletion flags the account and replaces any outstanding deletion token.
func (u *User) MarkForDeletion(tok auth.Token, now time.Time) {
	u.MarkedForDeletion = true
	scheduled := now
	u.DeletionScheduledAt = &scheduled
	u.DeletionToken, u.DeletionTokenExpires = tokenPair(tok)
}

// HasLiveVerificationToken reports whether token is the live verification token at now.
func (u *User) HasLiveVerificationToken(token string, now time.Time) bool {
	return auth.IsLive(u.VerificationToken, u.VerificationTokenExpires, token, now)
}

// HasLiveResetToken reports whether token is the live reset token at now.
func (u *User) HasLiveResetToken(token string, now time.Time) bool {
	return auth.IsLive(u.ResetToken, u.ResetTokenExpires, token, now)
}

// HasLiveDeletionToken reports whether token is the live deletion token at now
// and the account is still marked for deletion.
func (u *User) HasLiveDeletionToken(token string, now time.Time) bool {
	return u.MarkedForDeletion && auth.IsLive(u.DeletionToken, u.DeletionTokenExpires, token, now)
}

func tokenPair(tok auth.Token) (*string, *time.Time) {
	value := tok.Value
	expires := tok.ExpiresAt
	return &value, &expires
}
