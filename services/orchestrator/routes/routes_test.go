// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TeaDesk/services/classifier"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/handlers"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/observability"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/router"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, token string) *gin.Engine {
	t.Helper()
	engine, err := referral.NewEngine(store.NewMemoryStore(), referral.DefaultPolicy())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	r := gin.New()
	SetupRoutes(r, Deps{
		Engine:   engine,
		Router:   router.New(engine, classifier.New(), nil),
		Gate:     handlers.NewChatGate(0, metrics),
		Gatherer: reg,
		APIToken: token,
	})
	return r
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersEndpoints(t *testing.T) {
	r := newServer(t, "")

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/customers"},
		{"GET", "/v1/customers/lookup"},
		{"GET", "/v1/referrals/:code"},
		{"POST", "/v1/referrals/:code/redeem"},
		{"POST", "/v1/chat"},
		{"GET", "/v1/chat/ws"},
	}

	routes := r.Routes()
	for _, want := range expected {
		found := false
		for _, got := range routes {
			if got.Method == want.method && got.Path == want.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", want.method, want.path)
	}
}

func TestSetupRoutes_TokenGuardsAPIOnly(t *testing.T) {
	r := newServer(t, "s3cret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"hi"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"How many customers?"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no customers registered yet")
}

func TestSetupRoutes_MetricsExposed(t *testing.T) {
	r := newServer(t, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "teadesk_chat_active")
}
