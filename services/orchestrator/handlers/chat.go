// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/TeaDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/observability"
	"github.com/AleutianAI/TeaDesk/services/router"
)

// DefaultMaxConcurrentChats bounds chat messages handled at once.
const DefaultMaxConcurrentChats = 8

// =============================================================================
// Chat Gate
// =============================================================================

// ChatGate bounds the number of chat messages in flight. A message that
// finds every slot taken is rejected rather than queued, so a slow
// backend never builds an unbounded backlog.
//
// # Thread Safety
//
// Safe for concurrent use.
type ChatGate struct {
	sem     *semaphore.Weighted
	metrics *observability.Metrics
}

// NewChatGate creates a gate with limit slots. limit <= 0 selects
// DefaultMaxConcurrentChats. metrics may be nil.
func NewChatGate(limit int, metrics *observability.Metrics) *ChatGate {
	if limit <= 0 {
		limit = DefaultMaxConcurrentChats
	}
	return &ChatGate{sem: semaphore.NewWeighted(int64(limit)), metrics: metrics}
}

// Do runs fn if a slot is free and reports whether it ran.
func (g *ChatGate) Do(fn func()) bool {
	if !g.sem.TryAcquire(1) {
		if g.metrics != nil {
			g.metrics.ChatRejectedTotal.Inc()
		}
		return false
	}
	defer g.sem.Release(1)

	if g.metrics != nil {
		g.metrics.ActiveChats.Inc()
		defer g.metrics.ActiveChats.Dec()
	}
	fn()
	return true
}

// =============================================================================
// Chat Handler
// =============================================================================

// HandleChat answers one chat message.
//
// # Description
//
// POST /v1/chat. The session id is echoed back; one is issued when the
// client sent none. Replying never fails once the request is accepted:
// a backend problem yields an apology text, not an error status.
//
// # Errors
//
//   - 400: body fails validation
//   - 503: all chat slots are busy
func HandleChat(rt *router.Router, gate *ChatGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		req.EnsureSession()

		var resp datatypes.ChatResponse
		ok := gate.Do(func() {
			resp = answer(ctx, rt, req.SessionID, req.Message)
		})
		if !ok {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{Error: "busy, try again shortly"})
			return
		}

		span.SetAttributes(
			attribute.String("intent", resp.Intent),
			attribute.String("source", resp.Source),
		)
		c.JSON(http.StatusOK, resp)
	}
}

func answer(ctx context.Context, rt *router.Router, sessionID, message string) datatypes.ChatResponse {
	reply := rt.Handle(ctx, message, sessionID)
	resp := datatypes.ChatResponse{
		SessionID:  sessionID,
		Reply:      reply.Text,
		Intent:     reply.Intent.String(),
		Source:     string(reply.Source),
		CustomerID: reply.CustomerID,
	}
	if reply.Aggregate != 0 {
		resp.Aggregate = reply.Aggregate.String()
	}
	return resp
}
