// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pressroom Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Login outcomes reported on the logins counter.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeThrottled = "throttled"
)

// Metrics contains the auth Prometheus collectors.
type Metrics struct {
	LoginsTotal        *prometheus.CounterVec
	AuditFailures      *prometheus.CounterVec
	BestEffortFailures *prometheus.CounterVec
	SweptTotal         *prometheus.CounterVec
}

// NewMetrics creates the auth metrics and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_auth_logins_total",
				Help: "Total login attempts by outcome",
			},
			[]string{"outcome"},
		),
		AuditFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_auth_audit_failures_total",
				Help: "Total audit entries that could not be written, by action",
			},
			[]string{"action"},
		),
		BestEffortFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_auth_best_effort_failures_total",
				Help: "Total failed best-effort side effects by operation",
			},
			[]string{"operation"},
		),
		SweptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_auth_swept_total",
				Help: "Total rows removed by the retention sweeper by kind",
			},
			[]string{"kind"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.LoginsTotal, m.AuditFailures, m.BestEffortFailures, m.SweptTotal)
	}
	return m
}
