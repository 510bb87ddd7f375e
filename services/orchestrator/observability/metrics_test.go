// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMetrics registers metrics on an isolated registry.
func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func TestRecordReply(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordReply("aggregate", "rules")
	m.RecordReply("aggregate", "rules")
	m.RecordReply("conversation", "fallback")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RepliesTotal.WithLabelValues("aggregate", "rules")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepliesTotal.WithLabelValues("conversation", "fallback")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RepliesTotal.WithLabelValues("customer", "ai")))
}

func TestRecordBackendCall(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordBackendCall("ok", 300*time.Millisecond)
	m.RecordBackendCall("timeout", 15*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendCallsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendCallsTotal.WithLabelValues("timeout")))

	count, err := testutil.GatherAndCount(reg, "teadesk_backend_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordEvent(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordEvent("referral.redeemed", nil)
	m.RecordEvent("referral.redeemed", errors.New("broker down"))

	expected := `
# HELP teadesk_referral_events_total Referral domain events by kind and publish result
# TYPE teadesk_referral_events_total counter
teadesk_referral_events_total{event="referral.redeemed",result="failed"} 1
teadesk_referral_events_total{event="referral.redeemed",result="published"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "teadesk_referral_events_total"))
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestActiveChatsGauge(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.ActiveChats.Inc()
	m.ActiveChats.Inc()
	m.ActiveChats.Dec()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveChats))
}
