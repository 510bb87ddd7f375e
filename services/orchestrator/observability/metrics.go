// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the TeaDesk server.
//
// # Description
//
// Metrics cover the three places where something interesting happens:
//   - chat replies, by intent and by how they were produced
//   - conversational backend attempts, by outcome and latency
//   - referral domain events, by kind and publish result
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "teadesk"

// Metrics holds all Prometheus metrics of the server.
//
// # Fields
//
//   - RepliesTotal: chat replies by intent and source (rules, ai, fallback)
//   - BackendCallsTotal: backend attempts by status (ok, timeout, ...)
//   - BackendLatencySeconds: backend attempt latency
//   - ReferralEventsTotal: domain events by kind and result
//   - ChatRejectedTotal: chat requests turned away because all slots were busy
//   - ActiveChats: chat requests being handled right now
type Metrics struct {
	// Labels: intent (aggregate, customer, conversation), source
	RepliesTotal *prometheus.CounterVec

	// Labels: status (ok, timeout, rate_limited, unavailable)
	BackendCallsTotal *prometheus.CounterVec

	BackendLatencySeconds prometheus.Histogram

	// Labels: event (customer.registered, ...), result (published, failed)
	ReferralEventsTotal *prometheus.CounterVec

	ChatRejectedTotal prometheus.Counter

	ActiveChats prometheus.Gauge
}

// NewMetrics creates and registers all metrics with reg.
//
// # Description
//
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests so instances never collide.
//
// # Limitations
//
//   - Panics if the same metrics are registered twice with one registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "replies_total",
				Help:      "Chat replies by intent and source",
			},
			[]string{"intent", "source"},
		),

		BackendCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "backend",
				Name:      "calls_total",
				Help:      "Conversational backend attempts by outcome",
			},
			[]string{"status"},
		),

		BackendLatencySeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "backend",
				Name:      "latency_seconds",
				Help:      "Conversational backend attempt latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15},
			},
		),

		ReferralEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "referral",
				Name:      "events_total",
				Help:      "Referral domain events by kind and publish result",
			},
			[]string{"event", "result"},
		),

		ChatRejectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "rejected_total",
				Help:      "Chat requests rejected because the server was busy",
			},
		),

		ActiveChats: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "active",
				Help:      "Chat requests currently being handled",
			},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordReply counts one chat reply.
func (m *Metrics) RecordReply(intent, source string) {
	m.RepliesTotal.WithLabelValues(intent, source).Inc()
}

// RecordBackendCall records one backend attempt. Its signature matches
// llm.Observer.
func (m *Metrics) RecordBackendCall(status string, elapsed time.Duration) {
	m.BackendCallsTotal.WithLabelValues(status).Inc()
	m.BackendLatencySeconds.Observe(elapsed.Seconds())
}

// RecordEvent counts one domain event publish attempt.
func (m *Metrics) RecordEvent(kind string, err error) {
	result := "published"
	if err != nil {
		result = "failed"
	}
	m.ReferralEventsTotal.WithLabelValues(kind, result).Inc()
}
