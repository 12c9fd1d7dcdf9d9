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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianBookQA/services/corpus"
	"github.com/AleutianAI/AleutianBookQA/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianBookQA/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianBookQA/services/rag/answer"
	"github.com/AleutianAI/AleutianBookQA/services/rag/prompt"
)

// SetupRoutes registers every route the service serves.
//
// /health and /metrics are unauthenticated; the /v1 query routes sit
// behind the optional API key.
func SetupRoutes(router *gin.Engine, svc *answer.Service, provider corpus.SearchProvider, apiKey string) {

	router.GET("/health", handlers.HealthCheck(provider))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyAuth(apiKey))
	{
		// Mode comes from the request body; defaults to book scope.
		v1.POST("/query", handlers.HandleQuery(svc, ""))

		// Mode-forcing routes for clients that don't send a mode field.
		v1.POST("/query/book", handlers.HandleQuery(svc, prompt.ModeBookScope))
		v1.POST("/query/selection", handlers.HandleQuery(svc, prompt.ModeSelectedTextOnly))
	}
}
