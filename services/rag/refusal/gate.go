// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refusal

import "strings"

// DefaultMinContextLength is the minimum usable context length in
// characters. Contexts shorter than this are refused as too brief.
const DefaultMinContextLength = 50

// Gate decides, from context content alone, whether an answer should be
// attempted or refused. It never calls the language model; the pipeline
// consults it before spending any model budget.
//
// Gate is a pure decision function over its inputs. It holds only the
// injected catalog, so one instance is safe for concurrent use.
type Gate struct {
	catalog *Catalog
}

// NewGate creates a gate that draws messages from catalog.
func NewGate(catalog *Catalog) *Gate {
	return &Gate{catalog: catalog}
}

// Decide runs the ordered sufficiency checks against an assembled context.
//
// # Description
//
// Checks fire in a fixed order, first match wins:
//
//  1. Empty or whitespace-only context -> no_context_provided
//  2. Trimmed length below minLength  -> context_too_brief
//  3. Zero word overlap with a non-empty query -> no_relevant_content
//  4. Otherwise the answer may be attempted.
//
// The ordering is load-bearing: an empty context must always classify as
// no_context_provided, never context_too_brief, and a too-brief context
// must never be reported as irrelevant even with zero word overlap.
//
// The overlap check is a crude lexical proxy for topical relevance and is
// intentionally permissive: any single shared word passes.
//
// # Inputs
//
//   - contextText: The assembled context. May be empty.
//   - query: The reader question. May be empty.
//   - minLength: Minimum trimmed context length in characters. Values
//     <= 0 fall back to DefaultMinContextLength.
//
// # Outputs
//
//   - Decision: ShouldRefuse=false with empty Reason/Message when the
//     answer may be attempted; otherwise the reason and its canonical
//     catalog message.
func (g *Gate) Decide(contextText, query string, minLength int) Decision {
	if minLength <= 0 {
		minLength = DefaultMinContextLength
	}

	trimmed := strings.TrimSpace(contextText)
	if trimmed == "" {
		return g.refuse(ReasonNoContext)
	}
	if len(trimmed) < minLength {
		return g.refuse(ReasonContextTooBrief)
	}

	queryWords := wordSet(query)
	if len(queryWords) > 0 && len(intersect(queryWords, wordSet(contextText))) == 0 {
		return g.refuse(ReasonNoRelevantContent)
	}

	return Decision{ShouldRefuse: false}
}

// DecideForSelection classifies a refusal for selected-text-only mode.
// A present-but-insufficient selection refuses with the selected-text
// message; an absent selection is indistinguishable from no context.
func (g *Gate) DecideForSelection(selectedText string) Decision {
	if strings.TrimSpace(selectedText) == "" {
		return g.refuse(ReasonNoContext)
	}
	return g.refuse(ReasonSelectedTextInsufficient)
}

// RelevanceConfidence returns an advisory confidence in [0,1] that the
// context is topically relevant to the query: the fraction of query words
// that also appear in the context.
//
// This does not influence Decide's pass/refuse outcome. It is surfaced as
// response metadata so callers can observe marginal retrievals (the
// historical alerting threshold is 0.2).
func (g *Gate) RelevanceConfidence(contextText, query string) float64 {
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return 0
	}
	common := intersect(queryWords, wordSet(contextText))
	ratio := float64(len(common)) / float64(len(queryWords))
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// refuse builds a refusing decision with the catalog message for reason.
func (g *Gate) refuse(reason Reason) Decision {
	return Decision{
		ShouldRefuse: true,
		Reason:       reason,
		Message:      g.catalog.Message(reason),
	}
}

// wordSet returns the set of lowercase whitespace-split words in text.
func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// intersect returns the words present in both sets.
func intersect(a, b map[string]struct{}) map[string]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	common := make(map[string]struct{})
	for word := range a {
		if _, ok := b[word]; ok {
			common[word] = struct{}{}
		}
	}
	return common
}
