// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionTTL is the absolute lifetime of an issued session credential.
const SessionTTL = 24 * time.Hour

// DefaultSessionIssuer is the "iss" claim used when none is configured.
const DefaultSessionIssuer = "latchkey"

// ErrSessionSecretMissing is returned when an issuer is built without a secret.
var ErrSessionSecretMissing = oops.Code("SESSION_SECRET_MISSING").Errorf("session signing secret is not configured")

// SessionClaims are the claims carried by a session credential.
// The subject is the user id.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session is a signed, time-limited session credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// SessionIssuer signs session credentials with a process-wide HMAC secret.
// It never validates credentials; that belongs to the request layer.
type SessionIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// SessionOption configures a SessionIssuer.
type SessionOption func(*SessionIssuer)

// WithIssuer sets the "iss" claim.
func WithIssuer(iss string) SessionOption {
	return func(s *SessionIssuer) {
		if iss != "" {
			s.issuer = iss
		}
	}
}

// WithSessionClock overrides the clock used for iat/exp.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionIssuer) {
		s.now = now
	}
}

// NewSessionIssuer creates a SessionIssuer. The secret is copied; later
// changes to the caller's configuration do not affect issued credentials.
func NewSessionIssuer(secret string, opts ...SessionOption) (*SessionIssuer, error) {
	if secret == "" {
		return nil, ErrSessionSecretMissing
	}

	s := &SessionIssuer{
		secret: []byte(secret),
		issuer: DefaultSessionIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue builds and signs a session credential for the given user.
func (s *SessionIssuer) Issue(userID ulid.ULID, email string) (Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return Session{}, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}

	now := s.now().UTC()
	expiresAt := now.Add(SessionTTL)

	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, oops.Code("SESSION_SIGN_FAILED").With("user_id", userID.String()).Wrap(err)
	}

	return Session{Token: signed, ExpiresAt: expiresAt}, nil
}
