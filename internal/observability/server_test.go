// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/latchkey/latchkey/internal/account"
	"github.com/latchkey/latchkey/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// client does not pool connections so no transport goroutines outlive a test.
var client = &http.Client{
	Timeout:   5 * time.Second,
	Transport: &http.Transport{DisableKeepAlives: true},
}

func startServer(t *testing.T, checks map[string]ReadinessCheck, metrics ...MetricSet) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", checks, metrics...)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := client.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil, account.RegisterMetrics)
	require.NotEmpty(t, server.Addr())

	account.RecordOperation(account.OpRegister, account.StatusSuccess, 15*time.Millisecond)
	account.RecordDispatchFailure(account.MailVerification)

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)

	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `latchkey_account_operations_total{operation="register",status="success"}`)
	assert.Contains(t, body, "latchkey_account_operation_duration_seconds_bucket")
	assert.Contains(t, body, `latchkey_account_dispatch_failures_total{kind="verification"}`)
}

func TestServer_ExposesOnlyGivenMetricSets(t *testing.T) {
	account.RecordOperation(account.OpLogin, account.StatusSuccess, time.Millisecond)
	server := startServer(t, nil)

	_, body := get(t, server, "/metrics")
	assert.Contains(t, body, "go_")
	assert.NotContains(t, body, "latchkey_account_")
}

func TestServer_LivenessReturns200(t *testing.T) {
	server := startServer(t, nil)

	status, body := get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name       string
		checks     map[string]ReadinessCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "nil checks are ready",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "all passing",
			checks: map[string]ReadinessCheck{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "failing checks are listed in order",
			checks: map[string]ReadinessCheck{
				"redis":    func(context.Context) error { return down },
				"database": func(context.Context) error { return down },
				"smtp":     func(context.Context) error { return nil },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not ready: database, redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.checks)

			status, body := get(t, server, "/healthz/readiness")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_ReadinessChecksHaveDeadline(t *testing.T) {
	var sawDeadline atomic.Bool
	server := startServer(t, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			sawDeadline.Store(ok)
			return nil
		},
	})

	status, _ := get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, sawDeadline.Load())
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_ALREADY_RUNNING")
}

func TestServer_ListenFailure(t *testing.T) {
	server := NewServer("127.0.0.1:99999", nil)

	_, err := server.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")
	assert.Empty(t, server.Addr())
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx), "stop without start should not error")
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	require.NoError(t, err)
	require.NotEmpty(t, server.Addr())

	// Closing the listener underneath Serve simulates a runtime failure.
	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error on error channel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}

func TestServer_ErrorChannelClosesOnNormalShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
