// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the TeaDesk server.
//
// # Authentication Flow
//
// The shop counter and the owner's tools share one API token. The auth
// middleware compares the presented bearer token with it and marks the
// request as authenticated.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │   (or ?token= for WebSocket clients that cannot set headers)
//	   │
//	   ├─► Constant-time compare with the configured token
//	   │
//	   └─► Mark request authenticated
//
// # Open Access
//
// With no token configured every request passes. This is the default for
// a server bound to localhost.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// authenticatedKey marks a request that presented the configured token.
const authenticatedKey = "teadesk_authenticated"

// IsAuthenticated reports whether the request presented a valid token.
// Always false when the server runs without a token.
func IsAuthenticated(c *gin.Context) bool {
	return c.GetBool(authenticatedKey)
}

// AuthMiddleware creates a Gin middleware that requires token.
//
// # Description
//
// Requests without the token are aborted with 401. An empty token
// disables the check.
//
// # Examples
//
//	v1 := router.Group("/v1")
//	v1.Use(middleware.AuthMiddleware(cfg.APIToken))
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AuthMiddleware(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}

		got := extractBearerToken(c)
		if got == "" {
			got = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Set(authenticatedKey, true)
		c.Next()
	}
}

// extractBearerToken extracts the token from the Authorization header.
//
// Returns empty string if the header is missing or not a Bearer header.
// The "Bearer" prefix is case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
