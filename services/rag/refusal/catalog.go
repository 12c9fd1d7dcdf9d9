// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refusal decides when the QA pipeline must answer with a canned
// negative response instead of attempting an answer, and owns the catalog
// of canonical refusal messages.
//
// Every failure path the pipeline can reach on its own terminates in one
// of these fixed messages. Readers never see a stack trace or a partially
// grounded answer.
package refusal

// Reason classifies why an answer was refused.
type Reason string

const (
	// ReasonInsufficientContext is the generic fallback: context exists
	// but does not carry enough detail to answer.
	ReasonInsufficientContext Reason = "insufficient_context"

	// ReasonNoRelevantContent means retrieval found nothing that shares
	// vocabulary with the question.
	ReasonNoRelevantContent Reason = "no_relevant_content"

	// ReasonSelectedTextInsufficient means the reader's selected passage
	// alone cannot support an answer.
	ReasonSelectedTextInsufficient Reason = "selected_text_only_insufficient"

	// ReasonContextTooBrief means context was assembled but is shorter
	// than the minimum usable length.
	ReasonContextTooBrief Reason = "context_too_brief"

	// ReasonNoContext means no context was available at all.
	ReasonNoContext Reason = "no_context_provided"

	// ReasonHallucination means a generated answer failed grounding
	// validation and could not be repaired.
	ReasonHallucination Reason = "hallucination_prevention"
)

// Decision is the outcome of a refusal check.
//
// Decision is a value, never an error: refusing is a normal, locally
// recoverable outcome of the pipeline.
type Decision struct {
	ShouldRefuse bool   `json:"should_refuse"`
	Reason       Reason `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
}

// defaultMessages holds the canonical reader-facing refusal texts.
var defaultMessages = map[Reason]string{
	ReasonInsufficientContext: "I cannot answer this question based on the provided book content. " +
		"The retrieved information does not contain sufficient details to provide an accurate response. " +
		"Please refer to the relevant sections of the book for the information you need.",
	ReasonNoRelevantContent: "I cannot answer this question based on the provided book content. " +
		"The retrieved information does not appear to contain relevant information for your query. " +
		"Please check the book sections that might contain this information.",
	ReasonSelectedTextInsufficient: "I cannot answer this question based only on the selected text. " +
		"The selected portion does not contain sufficient information to address your query. " +
		"Please select a broader text segment or refer to other relevant sections of the book.",
	ReasonContextTooBrief: "I cannot provide an accurate answer based on the provided context, as it is too brief to contain the necessary information. " +
		"Please provide more context from the book or refer to the relevant sections directly.",
	ReasonNoContext: "I cannot answer this question without context from the book. " +
		"No relevant book content was provided to answer your query. " +
		"Please ensure you have selected text or that the book content is properly indexed.",
	ReasonHallucination: "I cannot answer this question as it requires information not available in the provided book content. " +
		"I am designed to answer only from the specific book content provided. " +
		"Please consult the book directly for this information.",
}

// Catalog maps refusal reasons to canonical user-facing messages.
//
// The catalog is immutable after construction and carries no other state,
// so a single instance can be shared across concurrent requests. Message
// overrides are injected at construction rather than mutated globally,
// which keeps parallel tests free of cross-test interference.
type Catalog struct {
	messages map[Reason]string
}

// NewCatalog returns a catalog with the canonical messages, with any
// entries in overrides replacing the defaults. Pass nil for the stock
// catalog.
func NewCatalog(overrides map[Reason]string) *Catalog {
	messages := make(map[Reason]string, len(defaultMessages))
	for reason, msg := range defaultMessages {
		messages[reason] = msg
	}
	for reason, msg := range overrides {
		if msg != "" {
			messages[reason] = msg
		}
	}
	return &Catalog{messages: messages}
}

// Message returns the canonical message for a reason. Unknown reasons
// fall back to the generic insufficient-context message.
func (c *Catalog) Message(reason Reason) string {
	if msg, ok := c.messages[reason]; ok {
		return msg
	}
	return c.messages[ReasonInsufficientContext]
}

// MessageWithContext returns the canonical message with an optional
// custom suffix appended. An empty suffix returns the base message.
func (c *Catalog) MessageWithContext(reason Reason, customContext string) string {
	base := c.Message(reason)
	if customContext == "" {
		return base
	}
	return base + " " + customContext
}

// Reasons returns every reason the catalog knows, for diagnostics.
func (c *Catalog) Reasons() []Reason {
	reasons := make([]Reason, 0, len(c.messages))
	for reason := range c.messages {
		reasons = append(reasons, reason)
	}
	return reasons
}
