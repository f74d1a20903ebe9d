// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops stops the test unless err is, or wraps, an oops error.
func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.Truef(t, ok, "expected an oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err carries the oops code.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code(), "error: %v", err)
}

// AssertErrorContext asserts that err carries key=value in its oops context.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	fields := requireOops(t, err).Context()
	require.Contains(t, fields, key)
	assert.Equal(t, value, fields[key])
}

// AssertCodedSentinel asserts that err wraps target and carries code, the
// shape store errors take: a sentinel callers match on plus a code for logs.
func AssertCodedSentinel(t testing.TB, err, target error, code string) {
	t.Helper()
	assert.ErrorIs(t, err, target)
	AssertErrorCode(t, err, code)
}
