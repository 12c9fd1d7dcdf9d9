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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianBookQA/services/corpus"
	"github.com/AleutianAI/AleutianBookQA/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianBookQA/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianBookQA/services/rag/answer"
	"github.com/AleutianAI/AleutianBookQA/services/rag/prompt"
)

var queryTracer = otel.Tracer("aleutian.ai/bookqa/services/orchestrator/handlers")

// HandleQuery answers reader questions through the full pipeline.
//
// # Description
//
// Binds and validates the request body, runs the answer service, and
// maps the outcome to HTTP:
//
//   - Refusals are 200 responses with was_refused set; a refusal is a
//     normal answer from the reader's point of view.
//   - Corpus-store failures map to 503, generation failures to 502.
//   - Only malformed JSON or invalid field values produce a 400. An
//     empty query is not a validation error; it refuses downstream.
//
// # Inputs
//
//   - svc: The answer pipeline. Must not be nil.
//   - forcedMode: When non-empty, overrides the request's mode field.
//     The /v1/query/book and /v1/query/selection routes use this.
//
// # Outputs
//
//   - gin.HandlerFunc: Handler for the query routes.
func HandleQuery(svc *answer.Service, forcedMode prompt.QueryMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleQuery")
		defer span.End()
		start := time.Now()

		var request datatypes.QueryRequest
		if err := c.BindJSON(&request); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to bind query request JSON", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := request.Validate(); err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		mode := prompt.QueryMode(request.Mode)
		if forcedMode != "" {
			mode = forcedMode
		}
		if mode == "" {
			mode = prompt.ModeBookScope
		}
		span.SetAttributes(attribute.String("bookqa.mode", string(mode)))

		outcome, err := svc.Answer(ctx, answer.QueryRequest{
			Query:        request.Query,
			SelectedText: request.SelectedText,
			Mode:         mode,
			MaxTokens:    request.MaxTokens,
			MinTokens:    request.MinTokens,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			recordQuery(mode, observability.StatusError, start)
			if corpus.IsRetrievalError(err) {
				slog.Error("Corpus store unavailable", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Book content store is unavailable"})
				return
			}
			slog.Error("Answer generation failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Language model backend failed"})
			return
		}

		status := observability.StatusAnswered
		if outcome.WasRefused {
			status = observability.StatusRefused
			if m := observability.DefaultMetrics; m != nil {
				m.RecordRefusal(string(outcome.RefusalReason))
			}
		}
		if m := observability.DefaultMetrics; m != nil {
			m.RecordContext(outcome.ContextTokens)
			if outcome.Grounding != nil {
				m.RecordGrounding(outcome.Grounding.Confidence)
			}
		}
		recordQuery(mode, status, start)

		response := datatypes.QueryResponse{
			RequestID:           outcome.RequestID,
			Answer:              outcome.Answer,
			WasRefused:          outcome.WasRefused,
			RefusalReason:       string(outcome.RefusalReason),
			Sources:             outcome.Sources,
			RelevanceConfidence: outcome.RelevanceConfidence,
			ContextTokens:       outcome.ContextTokens,
			Mode:                string(outcome.Mode),
		}
		if outcome.Sources == nil {
			response.Sources = []string{}
		}
		if outcome.Grounding != nil {
			response.Grounding = &datatypes.GroundingInfo{
				IsGrounded:   outcome.Grounding.IsGrounded,
				Confidence:   outcome.Grounding.Confidence,
				FlaggedSpans: outcome.Grounding.FlaggedSpans,
				OverlapRatio: outcome.Grounding.OverlapRatio,
			}
		}
		c.JSON(http.StatusOK, response)
	}
}

// recordQuery is a nil-safe metrics helper; tests run without InitMetrics.
func recordQuery(mode prompt.QueryMode, status observability.Status, start time.Time) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordQuery(string(mode), status, time.Since(start).Seconds())
	}
}
