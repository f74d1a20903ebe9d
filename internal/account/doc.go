// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

// Package account implements the account lifecycle: registration, email
// verification, login, password reset and two-phase account deletion.
//
// Manager is the only writer of user records. It talks to persistence through
// Store and to email delivery through Dispatcher, and reports every expected
// business outcome as a Result. Only unexpected failures come back as errors.
package account
