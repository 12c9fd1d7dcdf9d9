// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package answer orchestrates the full question-answering pipeline:
// context assembly, the sufficiency gate, the model call, and grounding
// validation of the result.
//
// The pipeline is a small state machine. A request starts PENDING, moves
// to REFUSED if the gate fires (before any model spend), otherwise to
// ANSWER_CANDIDATE once the model returns, and terminates in either
// ANSWER_FINAL or REFUSED when grounding cannot be repaired.
package answer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianBookQA/services/llm"
	"github.com/AleutianAI/AleutianBookQA/services/rag/assembler"
	"github.com/AleutianAI/AleutianBookQA/services/rag/grounding"
	"github.com/AleutianAI/AleutianBookQA/services/rag/prompt"
	"github.com/AleutianAI/AleutianBookQA/services/rag/refusal"
)

var tracer = otel.Tracer("aleutian.ai/bookqa/services/rag/answer")

// State labels where a request terminated in the pipeline.
type State string

const (
	// StateAnswerFinal means a grounded answer was produced.
	StateAnswerFinal State = "answer_final"

	// StateRefused means the pipeline returned a catalog message.
	StateRefused State = "refused"
)

// QueryRequest is one reader question entering the pipeline.
type QueryRequest struct {
	Query        string
	SelectedText string
	Mode         prompt.QueryMode

	// MaxTokens and MinTokens override the assembler budgets when > 0.
	MaxTokens int
	MinTokens int
}

// Outcome is the terminal result of one pipeline run.
type Outcome struct {
	RequestID string

	// Answer is the grounded answer or the catalog refusal message.
	Answer string

	State         State
	WasRefused    bool
	RefusalReason refusal.Reason

	// Sources lists the provenance labels of the context, in order.
	Sources []string

	// Grounding is nil when the request was refused before generation.
	Grounding *grounding.Report

	// RelevanceConfidence is the gate's advisory query/context overlap.
	RelevanceConfidence float64

	ContextTokens int
	Mode          prompt.QueryMode
}

// Service wires the pipeline collaborators together. All fields are set
// at construction and never mutated; one Service handles concurrent
// requests.
type Service struct {
	assembler *assembler.Assembler
	gate      *refusal.Gate
	validator *grounding.Validator
	catalog   *refusal.Catalog
	prompts   *prompt.Builder
	client    llm.LLMClient

	minContextLength int
}

// Options tunes the service. Zero values select defaults.
type Options struct {
	// MinContextLength overrides refusal.DefaultMinContextLength when > 0.
	MinContextLength int
}

// NewService creates the pipeline service.
func NewService(
	asm *assembler.Assembler,
	gate *refusal.Gate,
	validator *grounding.Validator,
	catalog *refusal.Catalog,
	prompts *prompt.Builder,
	client llm.LLMClient,
	opts Options,
) *Service {
	minLength := opts.MinContextLength
	if minLength <= 0 {
		minLength = refusal.DefaultMinContextLength
	}
	return &Service{
		assembler:        asm,
		gate:             gate,
		validator:        validator,
		catalog:          catalog,
		prompts:          prompts,
		client:           client,
		minContextLength: minLength,
	}
}

// AssembleContext builds a context for the request. Exposed for callers
// that drive the pipeline stages individually.
func (s *Service) AssembleContext(ctx context.Context, req assembler.RetrievalRequest) (assembler.AssembledContext, error) {
	return s.assembler.Assemble(ctx, req)
}

// DecideRefusal runs the sufficiency gate over an assembled context.
func (s *Service) DecideRefusal(contextText, query string) refusal.Decision {
	return s.gate.Decide(contextText, query, s.minContextLength)
}

// ValidateAndRefine validates a generated answer against its context and
// repairs or refuses it.
//
// # Outputs
//
//   - string: The final answer text, possibly refined, or a refusal
//     message.
//   - grounding.Report: The validation of the original answer.
//   - bool: True when the result is a refusal.
func (s *Service) ValidateAndRefine(answerText, contextText string) (string, grounding.Report, bool) {
	report := s.validator.Validate(answerText, contextText)
	if report.IsGrounded {
		return answerText, report, false
	}

	refined, refused := s.validator.Refine(answerText, contextText)
	if refused {
		return refined, report, true
	}

	// A refinement that still trips validation is not safe to surface.
	if refinedReport := s.validator.Validate(refined, contextText); !refinedReport.IsGrounded {
		return s.catalog.Message(refusal.ReasonHallucination), report, true
	}
	return refined, report, false
}

// Answer runs the full pipeline for one reader question.
//
// # Description
//
// Stages, in order:
//
//  1. Assemble a context. Selected-text-only mode uses the selection
//     verbatim and never queries the corpus; other modes go through the
//     assembler (excerpt-primary when a selection is present).
//  2. Gate the context. A firing gate terminates the request with a
//     catalog message before any model call.
//  3. Generate via the LLM boundary. Model failures propagate as errors;
//     they are infrastructure faults, not refusals.
//  4. Validate grounding and refine or refuse.
//
// # Inputs
//
//   - ctx: Propagated to retrieval and generation. Cancellation aborts
//     whichever of the two blocking calls is in flight.
//   - req: The reader question. An empty query with no selection refuses
//     with no_context_provided rather than erroring.
//
// # Outputs
//
//   - Outcome: Terminal state plus response metadata.
//   - error: Only on retrieval or generation infrastructure failure.
func (s *Service) Answer(ctx context.Context, req QueryRequest) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "AnswerService.Answer")
	defer span.End()

	requestID := uuid.NewString()
	mode := req.Mode
	if mode == "" {
		mode = prompt.ModeBookScope
	}
	span.SetAttributes(
		attribute.String("bookqa.request_id", requestID),
		attribute.String("bookqa.mode", string(mode)),
	)
	logger := slog.With("request_id", requestID, "mode", string(mode))

	assembled, err := s.assembleForMode(ctx, req, mode)
	if err != nil {
		span.RecordError(err)
		logger.Error("Context assembly failed", "error", err)
		return Outcome{}, err
	}

	base := Outcome{
		RequestID:           requestID,
		Sources:             assembled.Sources,
		RelevanceConfidence: s.gate.RelevanceConfidence(assembled.Text, req.Query),
		ContextTokens:       assembled.TokenCount,
		Mode:                mode,
	}

	if decision := s.gateForMode(assembled, req, mode); decision.ShouldRefuse {
		logger.Info("Refusing before generation", "reason", string(decision.Reason))
		span.SetAttributes(attribute.String("bookqa.refusal_reason", string(decision.Reason)))
		return s.refuse(base, decision.Reason, decision.Message), nil
	}

	built := s.prompts.Build(mode, assembled.Text, req.Query, req.SelectedText)
	generated, err := s.client.Generate(ctx, built.System, built.User, llm.GenerationParams{})
	if err != nil {
		span.RecordError(err)
		logger.Error("Generation failed", "error", err)
		return Outcome{}, err
	}

	final, report, refused := s.ValidateAndRefine(generated, assembled.Text)
	base.Grounding = &report
	if refused {
		logger.Info("Refusing after grounding validation",
			"confidence", report.Confidence, "flags", len(report.FlaggedSpans))
		span.SetAttributes(attribute.String("bookqa.refusal_reason", string(refusal.ReasonHallucination)))
		return s.refuse(base, refusal.ReasonHallucination, final), nil
	}

	logger.Info("Answer produced", "grounding_confidence", report.Confidence,
		"context_tokens", assembled.TokenCount)
	base.Answer = final
	base.State = StateAnswerFinal
	return base, nil
}

// assembleForMode builds the context for the request's query mode.
// Selected-text-only mode bypasses the corpus entirely.
func (s *Service) assembleForMode(ctx context.Context, req QueryRequest, mode prompt.QueryMode) (assembler.AssembledContext, error) {
	if mode == prompt.ModeSelectedTextOnly {
		tokens := assembler.CountTokens(req.SelectedText)
		minTokens := req.MinTokens
		if minTokens <= 0 {
			minTokens = assembler.DefaultMinTokens
		}
		var sources []string
		if req.SelectedText != "" {
			sources = []string{assembler.ExcerptSource}
		}
		return assembler.AssembledContext{
			Text:         req.SelectedText,
			Sources:      sources,
			TokenCount:   tokens,
			ExcerptUsed:  req.SelectedText != "",
			IsSufficient: tokens >= minTokens,
		}, nil
	}

	return s.assembler.Assemble(ctx, assembler.RetrievalRequest{
		Query:           req.Query,
		SelectedExcerpt: req.SelectedText,
		MaxTokens:       req.MaxTokens,
		MinTokens:       req.MinTokens,
	})
}

// gateForMode applies the ordered gate checks plus the mode-specific
// sufficiency rules.
//
// In selected-text-only mode an insufficient selection refuses with the
// selection-specific reason before the generic length checks run; the
// reader chose the text, so the message must tell them to select more.
func (s *Service) gateForMode(assembled assembler.AssembledContext, req QueryRequest, mode prompt.QueryMode) refusal.Decision {
	if mode == prompt.ModeSelectedTextOnly {
		if strings.TrimSpace(assembled.Text) != "" && !assembled.IsSufficient {
			return s.gate.DecideForSelection(req.SelectedText)
		}
		return s.gate.Decide(assembled.Text, req.Query, s.minContextLength)
	}

	if decision := s.gate.Decide(assembled.Text, req.Query, s.minContextLength); decision.ShouldRefuse {
		return decision
	}
	if !assembled.IsSufficient {
		return refusal.Decision{
			ShouldRefuse: true,
			Reason:       refusal.ReasonInsufficientContext,
			Message:      s.catalog.Message(refusal.ReasonInsufficientContext),
		}
	}
	return refusal.Decision{ShouldRefuse: false}
}

// refuse fills the terminal refusal fields onto the outcome skeleton.
func (s *Service) refuse(base Outcome, reason refusal.Reason, message string) Outcome {
	base.Answer = message
	base.State = StateRefused
	base.WasRefused = true
	base.RefusalReason = reason
	return base
}
