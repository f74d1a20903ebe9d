// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// TokenBytes is the amount of randomness behind every single-use token.
const TokenBytes = 64

// Token lifetimes per workflow.
const (
	VerificationTokenTTL = 72 * time.Hour
	ResetTokenTTL        = time.Hour
	DeletionTokenTTL     = 24 * time.Hour
)

// Token is a freshly issued single-use token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenGenerator issues random, URL-safe single-use tokens.
type TokenGenerator struct {
	rand io.Reader
	now  func() time.Time
}

// TokenOption configures a TokenGenerator.
type TokenOption func(*TokenGenerator)

// WithTokenSource overrides the random source.
func WithTokenSource(r io.Reader) TokenOption {
	return func(g *TokenGenerator) {
		g.rand = r
	}
}

// WithTokenClock overrides the clock used to stamp expiry.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(g *TokenGenerator) {
		g.now = now
	}
}

// NewTokenGenerator creates a TokenGenerator backed by crypto/rand.
func NewTokenGenerator(opts ...TokenOption) *TokenGenerator {
	g := &TokenGenerator{
		rand: rand.Reader,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Issue returns a new token that expires ttl from now (UTC).
func (g *TokenGenerator) Issue(ttl time.Duration) (Token, error) {
	if ttl <= 0 {
		return Token{}, oops.Code("TOKEN_INVALID_TTL").Errorf("token ttl must be positive, got %s", ttl)
	}

	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return Token{}, oops.Code("TOKEN_GENERATE_FAILED").Wrap(err)
	}

	return Token{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		ExpiresAt: g.now().UTC().Add(ttl),
	}, nil
}

// IsLive reports whether presented matches the stored token exactly and the
// stored expiry is strictly after now.
func IsLive(stored *string, expiresAt *time.Time, presented string, now time.Time) bool {
	if stored == nil || *stored == "" || presented == "" || expiresAt == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) != 1 {
		return false
	}
	return expiresAt.After(now)
}

// DecodeTransportToken undoes URL transport damage on a token: percent-encoding
// is reversed first, then spaces are turned back into the literal '+' they
// started as.
func DecodeTransportToken(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", oops.Code("TOKEN_DECODE_FAILED").With("length", len(raw)).Wrap(err)
	}
	return strings.ReplaceAll(decoded, " ", "+"), nil
}
