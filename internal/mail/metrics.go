// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcomes recorded by the worker.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetry     = "retry"
	OutcomeDropped   = "dropped"
)

// DeliveriesTotal counts queued deliveries by kind and outcome.
var DeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "latchkey_mail_deliveries_total",
		Help: "Total number of queued mail deliveries by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

// RegisterMetrics registers mail metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(DeliveriesTotal)
}

func recordDelivery(kind, outcome string) {
	DeliveriesTotal.WithLabelValues(kind, outcome).Inc()
}
