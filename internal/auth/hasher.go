// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Hash and salt sizes in bytes.
const (
	SaltLen = 64
	HashLen = 64
)

// HasherParams holds the argon2id cost parameters.
type HasherParams struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultHasherParams is the OWASP-recommended argon2id profile.
var DefaultHasherParams = HasherParams{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher derives and verifies salted password hashes.
type PasswordHasher interface {
	// Hash derives a hash of the password under a freshly generated salt.
	Hash(password string) (hash, salt []byte, err error)

	// Verify reports whether password hashes to hash under salt.
	Verify(password string, hash, salt []byte) bool
}

// Argon2idHasher implements PasswordHasher using argon2id with the salt as key material.
type Argon2idHasher struct {
	params HasherParams
	rand   io.Reader
}

// HasherOption configures an Argon2idHasher.
type HasherOption func(*Argon2idHasher)

// WithParams overrides the argon2id cost parameters.
func WithParams(p HasherParams) HasherOption {
	return func(h *Argon2idHasher) {
		h.params = p
	}
}

// WithSaltSource overrides the random source used for salts.
func WithSaltSource(r io.Reader) HasherOption {
	return func(h *Argon2idHasher) {
		h.rand = r
	}
}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher(opts ...HasherOption) *Argon2idHasher {
	h := &Argon2idHasher{
		params: DefaultHasherParams,
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash derives a 64-byte argon2id key from the password under a new 64-byte salt.
func (h *Argon2idHasher) Hash(password string) (hash, salt []byte, err error) {
	if password == "" {
		return nil, nil, ErrEmptyPassword
	}

	salt = make([]byte, SaltLen)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return nil, nil, oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	return h.derive(password, salt), salt, nil
}

// Verify recomputes the hash under the stored salt and compares in constant time.
func (h *Argon2idHasher) Verify(password string, hash, salt []byte) bool {
	if len(hash) == 0 || len(salt) == 0 {
		return false
	}
	computed := h.derive(password, salt)
	return subtle.ConstantTimeCompare(computed, hash) == 1
}

func (h *Argon2idHasher) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, HashLen)
}

// Compile-time interface check.
var _ PasswordHasher = (*Argon2idHasher)(nil)
