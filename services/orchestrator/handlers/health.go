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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianBookQA/services/corpus"
	"github.com/AleutianAI/AleutianBookQA/services/orchestrator/datatypes"
)

// HealthCheck reports service liveness and corpus-store readiness.
//
// The endpoint always returns 200 once the process is serving; a corpus
// outage degrades the payload instead of failing the probe, so
// orchestrators don't restart the service for a store problem it cannot
// fix by restarting.
func HealthCheck(provider corpus.SearchProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := datatypes.HealthResponse{Status: "ok", Corpus: "ready"}

		if checker, ok := provider.(corpus.ReadinessChecker); ok {
			if err := checker.Ready(c.Request.Context()); err != nil {
				response.Status = "degraded"
				response.Corpus = "unavailable"
			}
		}

		c.JSON(http.StatusOK, response)
	}
}
