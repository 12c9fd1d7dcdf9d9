// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the book QA service.
//
// # Open Deployment Behavior
//
// When no API key is configured, all requests pass through. This lets
// the service run behind a trusted reverse proxy or in local development
// without any authentication infrastructure.
//
// # Keyed Deployment Behavior
//
// With a configured key, every /v1 request must carry it in the
// X-API-Key header. This is a static shared secret, not an identity
// system; per-reader identity is out of scope for this service.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiKeyHeader is the request header carrying the shared key.
const apiKeyHeader = "X-API-Key"

// APIKeyAuth creates a middleware enforcing a static API key.
//
// # Description
//
// Compares the X-API-Key header against the configured key in constant
// time. A mismatch aborts with 401 before the handler runs. An empty
// configured key disables the check entirely.
//
// # Inputs
//
//   - key: The shared secret. Empty disables enforcement.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware for the /v1 route group.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Next()
	}
}
