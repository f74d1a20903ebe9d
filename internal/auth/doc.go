// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

// Package auth provides the credential primitives used by account workflows.
//
// Primitives:
//   - PasswordHasher / Argon2idHasher: salted argon2id hashing with constant-time verify
//   - TokenGenerator: random URL-safe single-use tokens with expiry
//   - IsLive: exact-match, strictly-unexpired token check
//   - DecodeTransportToken: undo percent-encoding and '+' to space damage
//   - SessionIssuer: HS256 session credentials carrying user id and email
//
// Nothing in this package touches storage; the account package composes
// these primitives against a store.
package auth
