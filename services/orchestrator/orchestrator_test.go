// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TeaDesk/services/classifier"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/observability"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/ttl"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/router"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newDeps(t *testing.T) Deps {
	t.Helper()
	engine, err := referral.NewEngine(store.NewMemoryStore(), referral.DefaultPolicy())
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	return Deps{
		Engine:   engine,
		Router:   router.New(engine, classifier.New(), nil),
		Metrics:  observability.NewMetrics(reg),
		Gatherer: reg,
	}
}

// =============================================================================
// Config Tests
// =============================================================================

func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, "127.0.0.1", result.Host)
	assert.Equal(t, 12310, result.Port)
	assert.Equal(t, gin.ReleaseMode, result.GinMode)
	assert.Equal(t, 8, result.MaxConcurrentChats)
	assert.Equal(t, 10*time.Second, result.ShutdownTimeout)
	assert.Equal(t, ttl.DefaultSchedulerConfig(), result.Sessions)
	assert.Empty(t, result.OTelEndpoint, "tracing export stays off unless configured")
}

func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Host:               "0.0.0.0",
		Port:               8080,
		GinMode:            gin.DebugMode,
		OTelEndpoint:       "collector:4317",
		MaxConcurrentChats: 2,
		Sessions:           ttl.SchedulerConfig{Interval: time.Minute},
	}
	result := applyConfigDefaults(cfg)

	assert.Equal(t, "0.0.0.0", result.Host)
	assert.Equal(t, 8080, result.Port)
	assert.Equal(t, gin.DebugMode, result.GinMode)
	assert.Equal(t, "collector:4317", result.OTelEndpoint)
	assert.Equal(t, 2, result.MaxConcurrentChats)
	assert.Equal(t, time.Minute, result.Sessions.Interval)
	assert.Equal(t, 30*time.Minute, result.Sessions.IdleTTL)
}

// =============================================================================
// Service Tests
// =============================================================================

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestNew_ServesRoutes(t *testing.T) {
	svc, err := New(Config{GinMode: gin.TestMode}, newDeps(t))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	svc, err := New(Config{GinMode: gin.TestMode, Port: port}, newDeps(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	assert.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
