// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package account

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used for metrics and spans.
const (
	OpRegister               = "register"
	OpLogin                  = "login"
	OpVerifyEmail            = "verify_email"
	OpResendVerification     = "resend_verification"
	OpForgotPassword         = "forgot_password"
	OpResetPassword          = "reset_password"
	OpRequestAccountDeletion = "request_account_deletion"
	OpConfirmAccountDeletion = "confirm_account_deletion"
	OpAdminDeleteAccount     = "admin_delete_account"
)

// Email kinds used for dispatch failure metrics.
const (
	MailVerification         = "verification"
	MailPasswordReset        = "password_reset"
	MailDeletionConfirmation = "deletion_confirmation"
	MailDeletionCompleted    = "deletion_completed"
)

// OperationsTotal counts lifecycle operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "latchkey_account_operations_total",
		Help: "Total number of account lifecycle operations by outcome",
	},
	[]string{"operation", "status"},
)

// OperationDuration observes lifecycle operation latency.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "latchkey_account_operation_duration_seconds",
		Help:    "Account lifecycle operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// DispatchFailures counts emails that could not be handed off.
var DispatchFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "latchkey_account_dispatch_failures_total",
		Help: "Total number of account emails that failed to dispatch",
	},
	[]string{"kind"},
)

// RegisterMetrics registers account metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(OperationsTotal)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(DispatchFailures)
}

// RecordOperation records one finished operation.
func RecordOperation(operation string, status Status, duration time.Duration) {
	OperationsTotal.WithLabelValues(operation, string(status)).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDispatchFailure increments the dispatch failure counter for kind.
func RecordDispatchFailure(kind string) {
	DispatchFailures.WithLabelValues(kind).Inc()
}
