// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assembler builds a token-budgeted context string from either the
// corpus or a reader-selected excerpt, tracking provenance.
//
// Token counting throughout this package is a whitespace word count, not a
// model-specific tokenizer. The approximation is deliberate: budgets here
// bound prompt size coarsely, and exact tokenization would couple the
// pipeline to one model family.
package assembler

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianBookQA/services/corpus"
	"github.com/AleutianAI/AleutianBookQA/services/rag/relevance"
)

var tracer = otel.Tracer("aleutian.ai/bookqa/services/rag/assembler")

// ExcerptSource is the provenance label for reader-selected text.
const ExcerptSource = "User Selected Text"

const (
	// DefaultSearchLimit is the number of ranked chunks requested from
	// the search provider per assemble call.
	DefaultSearchLimit = 12

	// DefaultMaxSentencesPerChunk caps the excerpt taken from one chunk.
	DefaultMaxSentencesPerChunk = 3

	// DefaultMinTokens is the sufficiency floor when the request does
	// not set one.
	DefaultMinTokens = 50

	// DefaultMaxTokens is the context budget when the request does not
	// set one.
	DefaultMaxTokens = 2000
)

// RetrievalRequest describes one context-assembly request. Ephemeral,
// one per reader query.
type RetrievalRequest struct {
	// Query is the reader question used for retrieval and scoring.
	Query string `json:"query"`

	// SelectedExcerpt, when non-empty, is trusted over corpus search and
	// used as the primary context.
	SelectedExcerpt string `json:"selected_excerpt,omitempty"`

	// MaxTokens is the context budget in whitespace words. Values <= 0
	// fall back to DefaultMaxTokens.
	MaxTokens int `json:"max_tokens,omitempty"`

	// MinTokens is the sufficiency floor in whitespace words. Values
	// <= 0 fall back to DefaultMinTokens.
	MinTokens int `json:"min_tokens,omitempty"`
}

// AssembledContext is the outcome of one assemble call. Immutable after
// construction; discarded when the request completes.
type AssembledContext struct {
	// Text is the assembled context handed to the language model.
	Text string `json:"text"`

	// Sources lists provenance labels in first-seen order, deduplicated
	// by chapter/section.
	Sources []string `json:"sources"`

	// TokenCount is the whitespace word count of Text. Never exceeds the
	// request's MaxTokens.
	TokenCount int `json:"token_count"`

	// ExcerptUsed is true when a reader-selected excerpt contributed to
	// the context.
	ExcerptUsed bool `json:"excerpt_used"`

	// IsSufficient is TokenCount >= MinTokens. A length heuristic only,
	// independent of semantic quality.
	IsSufficient bool `json:"is_sufficient"`
}

// Options tunes the assembler. Zero values select the defaults.
type Options struct {
	SearchLimit          int
	MaxSentencesPerChunk int
}

// Assembler consumes the search provider and the relevance scorer to
// build contexts. Stateless beyond its injected collaborators, so one
// instance serves concurrent requests.
type Assembler struct {
	provider             corpus.SearchProvider
	searchLimit          int
	maxSentencesPerChunk int
}

// NewAssembler creates an assembler over the given search provider.
func NewAssembler(provider corpus.SearchProvider, opts Options) *Assembler {
	limit := opts.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	maxSentences := opts.MaxSentencesPerChunk
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentencesPerChunk
	}
	return &Assembler{
		provider:             provider,
		searchLimit:          limit,
		maxSentencesPerChunk: maxSentences,
	}
}

// CountTokens returns the whitespace word count of text. This is the
// single token approximation used across the pipeline.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// Assemble builds a context for the request.
//
// # Description
//
// Two modes:
//
//   - Excerpt-primary: when the request carries a selected excerpt, the
//     excerpt becomes the context verbatim. If its word count already
//     falls within [MinTokens, MaxTokens] the context returns immediately
//     as sufficient without touching the corpus. Otherwise the remaining
//     budget is supplemented from the corpus, keeping the excerpt first.
//     A selected excerpt is never silently dropped.
//   - Corpus: the provider is queried once for ranked chunks; each chunk
//     is reduced to its most relevant sentences and excerpts accumulate
//     in ranking order until the budget is exhausted.
//
// Per-chunk sentence scoring is fanned out across goroutines; results
// are consumed in ranking order, so the output is deterministic for
// identical inputs against an unchanged corpus.
//
// # Inputs
//
//   - ctx: Propagated to the single provider search call. Cancellation
//     aborts retrieval; the assembler holds nothing that needs cleanup.
//   - req: The retrieval request. Zero budgets select the defaults.
//
// # Outputs
//
//   - AssembledContext: TokenCount never exceeds the effective MaxTokens.
//   - error: A *corpus.RetrievalError when the provider fails. Provider
//     failures are never treated as zero results.
func (a *Assembler) Assemble(ctx context.Context, req RetrievalRequest) (AssembledContext, error) {
	ctx, span := tracer.Start(ctx, "Assembler.Assemble")
	defer span.End()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	minTokens := req.MinTokens
	if minTokens <= 0 {
		minTokens = DefaultMinTokens
	}
	span.SetAttributes(
		attribute.Int("assembler.max_tokens", maxTokens),
		attribute.Int("assembler.min_tokens", minTokens),
		attribute.Bool("assembler.excerpt_provided", req.SelectedExcerpt != ""),
	)

	var (
		parts       []string
		sources     []string
		seenSources = make(map[string]struct{})
		tokens      int
		excerptUsed bool
	)

	if req.SelectedExcerpt != "" {
		excerpt := req.SelectedExcerpt
		excerptTokens := CountTokens(excerpt)

		if excerptTokens >= minTokens && excerptTokens <= maxTokens {
			span.SetAttributes(attribute.String("assembler.mode", "excerpt"))
			return AssembledContext{
				Text:         excerpt,
				Sources:      []string{ExcerptSource},
				TokenCount:   excerptTokens,
				ExcerptUsed:  true,
				IsSufficient: true,
			}, nil
		}

		// Over-budget excerpts are trimmed to the budget rather than
		// dropped; a selected excerpt always stays primary.
		if excerptTokens > maxTokens {
			words := strings.Fields(excerpt)
			excerpt = strings.Join(words[:maxTokens], " ")
			excerptTokens = maxTokens
		}
		parts = append(parts, excerpt)
		sources = append(sources, ExcerptSource)
		tokens = excerptTokens
		excerptUsed = true
	}
	span.SetAttributes(attribute.String("assembler.mode", "corpus"))

	remaining := maxTokens - tokens
	if remaining > 0 {
		chunks, err := a.provider.Search(ctx, req.Query, a.searchLimit)
		if err != nil {
			span.RecordError(err)
			return AssembledContext{}, err
		}
		span.SetAttributes(attribute.Int("assembler.chunks_retrieved", len(chunks)))

		excerpts := a.scoreChunks(chunks, req.Query)
		for i, chunk := range chunks {
			excerpt := excerpts[i]
			if excerpt == "" {
				continue
			}
			excerptTokens := CountTokens(excerpt)
			if tokens+excerptTokens > maxTokens {
				break
			}
			parts = append(parts, excerpt)
			tokens += excerptTokens
			if _, seen := seenSources[chunk.SourceKey()]; !seen {
				seenSources[chunk.SourceKey()] = struct{}{}
				sources = append(sources, chunk.SourceLabel())
			}
		}
	}

	assembled := AssembledContext{
		Text:         strings.Join(parts, "\n\n"),
		Sources:      sources,
		TokenCount:   tokens,
		ExcerptUsed:  excerptUsed,
		IsSufficient: tokens >= minTokens,
	}
	span.SetAttributes(
		attribute.Int("assembler.token_count", assembled.TokenCount),
		attribute.Bool("assembler.is_sufficient", assembled.IsSufficient),
	)
	return assembled, nil
}

// scoreChunks runs the relevance scorer over every chunk concurrently and
// returns the excerpts indexed by chunk position. Scoring is pure, so the
// fan-out needs no coordination beyond the join.
func (a *Assembler) scoreChunks(chunks []corpus.Chunk, query string) []string {
	excerpts := make([]string, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			excerpts[i] = relevance.ScoreAndSelect(chunk.Text, query, a.maxSentencesPerChunk)
			return nil
		})
	}
	// Scoring never returns an error; Wait only joins the goroutines.
	_ = g.Wait()
	return excerpts
}
