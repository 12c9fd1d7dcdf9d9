// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt holds the system and user prompt templates for the book
// QA pipeline. Wording is configuration, not behavior: the pipeline
// treats these strings as parameters and callers may override them at
// construction.
package prompt

import "strings"

// QueryMode selects which user prompt template applies.
type QueryMode string

const (
	// ModeBookScope answers from retrieved corpus context.
	ModeBookScope QueryMode = "book_scope"

	// ModeSelectedTextOnly answers strictly from the reader's selection.
	ModeSelectedTextOnly QueryMode = "selected_text_only"
)

// defaultSystemPrompt constrains the model to the supplied context.
const defaultSystemPrompt = `You are an AI assistant embedded in a published book to answer reader questions.
You must strictly follow these rules:

1. ONLY use information provided in the CONTEXT to answer questions
2. NEVER hallucinate or make up information not present in the CONTEXT
3. NEVER use external knowledge or general world knowledge
4. If the CONTEXT does not contain sufficient information to answer a query, explicitly refuse to answer
5. Always cite specific book sections when providing information
6. Maintain academic integrity and accuracy

Your responses should be clear, concise, and directly based on the provided context.
Do not add information from your general knowledge or external sources.
If you cannot answer based on the provided context, clearly state this limitation.`

// antiHallucinationAddendum is appended to the system prompt for every
// generation that will be grounding-validated afterwards.
const antiHallucinationAddendum = `

CRITICAL ANTI-HALLUCINATION RULES:
1. NEVER use phrases like "according to my training data", "from general knowledge", "I think", "probably", etc.
2. NEVER reference information not explicitly provided in the CONTEXT
3. NEVER make up facts, figures, or details not present in the CONTEXT
4. If the CONTEXT does not contain the answer, explicitly state this limitation
5. NEVER provide external links, resources, or information not in the book
6. Always ground your response in specific content from the CONTEXT
7. When uncertain, refuse to answer rather than guessing

Remember: Your knowledge is limited to the provided CONTEXT. Do not exceed these boundaries.`

const bookScopeTemplate = `Given the following context from the book, please answer the user's question.

CONTEXT:
%context%

QUESTION: %question%

Please provide an accurate answer based only on the information in the CONTEXT. If the context does not contain sufficient information to answer the question, please state that you cannot answer based on the provided book content and suggest the user check the relevant book sections.

Answer:`

const selectedTextTemplate = `Based ONLY on the following selected text, please answer the user's question.

SELECTED TEXT:
%selected_text%

QUESTION: %question%

Please provide an answer based ONLY on the information in the SELECTED TEXT. Do not use any other knowledge. If the selected text does not contain sufficient information to answer the question, please state that you cannot answer based only on the selected text.

Answer:`

// Prompt is a fully built system/user prompt pair ready for the LLM
// boundary.
type Prompt struct {
	System string
	User   string
}

// Builder assembles prompts for both query modes. Immutable after
// construction; safe for concurrent use.
type Builder struct {
	systemPrompt string
	enhance      bool
}

// Options overrides builder defaults. Zero values keep the stock
// templates with anti-hallucination enhancement enabled.
type Options struct {
	// SystemPrompt replaces the default system prompt when non-empty.
	SystemPrompt string

	// DisableEnhancement skips the anti-hallucination addendum. Only
	// useful when the grounding validator is also disabled.
	DisableEnhancement bool
}

// NewBuilder creates a prompt builder.
func NewBuilder(opts Options) *Builder {
	system := opts.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	return &Builder{systemPrompt: system, enhance: !opts.DisableEnhancement}
}

// SystemPrompt returns the effective system prompt, including the
// anti-hallucination addendum unless disabled.
func (b *Builder) SystemPrompt() string {
	if b.enhance {
		return b.systemPrompt + antiHallucinationAddendum
	}
	return b.systemPrompt
}

// BuildBookScope builds the prompt pair for a corpus-context query.
func (b *Builder) BuildBookScope(contextText, question string) Prompt {
	user := strings.ReplaceAll(bookScopeTemplate, "%context%", contextText)
	user = strings.ReplaceAll(user, "%question%", question)
	return Prompt{System: b.SystemPrompt(), User: user}
}

// BuildSelectedText builds the prompt pair for a selection-only query.
func (b *Builder) BuildSelectedText(selectedText, question string) Prompt {
	user := strings.ReplaceAll(selectedTextTemplate, "%selected_text%", selectedText)
	user = strings.ReplaceAll(user, "%question%", question)
	return Prompt{System: b.SystemPrompt(), User: user}
}

// Build selects the template by mode. Selected-text mode without a
// selection falls back to book scope, matching how callers degrade when
// a reader clears their selection mid-request.
func (b *Builder) Build(mode QueryMode, contextText, question, selectedText string) Prompt {
	if mode == ModeSelectedTextOnly && selectedText != "" {
		return b.BuildSelectedText(selectedText, question)
	}
	return b.BuildBookScope(contextText, question)
}
