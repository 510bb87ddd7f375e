// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/TeaDesk/services/orchestrator/handlers"
	"github.com/AleutianAI/TeaDesk/services/orchestrator/middleware"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/router"
)

// Deps are the services the routes are served from.
type Deps struct {
	Engine *referral.Engine
	Router *router.Router
	Gate   *handlers.ChatGate

	// Gatherer backs /metrics. Nil selects prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// APIToken protects /v1. Empty leaves it open.
	APIToken string
}

// SetupRoutes registers every endpoint on router.
//
//	GET  /health
//	GET  /metrics
//	POST /v1/customers
//	GET  /v1/customers/lookup?q=
//	GET  /v1/referrals/:code
//	POST /v1/referrals/:code/redeem
//	POST /v1/chat
//	GET  /v1/chat/ws
func SetupRoutes(r *gin.Engine, deps Deps) {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/health")
	})

	// API version 1 group
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(deps.APIToken))
	{
		customers := v1.Group("/customers")
		{
			customers.POST("", handlers.HandleRegisterCustomer(deps.Engine))
			customers.GET("/lookup", handlers.HandleLookupCustomer(deps.Engine))
		}
		referrals := v1.Group("/referrals")
		{
			referrals.GET("/:code", handlers.HandleCheckCode(deps.Engine))
			referrals.POST("/:code/redeem", handlers.HandleRedeemCode(deps.Engine))
		}
		v1.POST("/chat", handlers.HandleChat(deps.Router, deps.Gate))
		v1.GET("/chat/ws", handlers.HandleChatWebSocket(deps.Router, deps.Gate))
	}
}
