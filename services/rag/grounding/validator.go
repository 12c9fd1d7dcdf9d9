// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grounding validates that a generated answer is lexically
// traceable to the context it was produced from, and repairs answers
// that are not.
//
// Detection is heuristic on purpose: a fixed list of epistemic-hedge
// phrases plus a word-overlap check per sentence. Like the relevance
// scorer, these lexical semantics are preserved for compatibility with
// the refusal pipeline and must not be swapped for model-based scoring.
package grounding

import (
	"strings"

	"github.com/AleutianAI/AleutianBookQA/services/rag/refusal"
)

// DefaultOverlapThreshold is the minimum fraction of refined-answer words
// that must appear in the context for a refinement to be surfaced.
const DefaultOverlapThreshold = 0.3

// defaultMinSentenceWords is the sentence length above which the
// zero-overlap check applies. Short sentences carry too little signal.
const defaultMinSentenceWords = 5

// confidencePenalty is subtracted from confidence per flagged item.
const confidencePenalty = 0.1

// DefaultPatterns are the hedge and out-of-band phrases whose presence in
// an answer marks it as drawing on knowledge outside the context.
var DefaultPatterns = []string{
	"according to my training data",
	"i know that",
	"from general knowledge",
	"i understand that",
	"most likely",
	"probably",
	"perhaps",
	"maybe",
	"could be",
	"might be",
	"i think",
	"in general",
	"typically",
	"usually",
	"often",
	"as you know",
	"everyone knows",
	"common knowledge",
	"external sources",
	"other places",
	"elsewhere",
	"additionally",
	"furthermore",
	"moreover",
}

// Report is the outcome of grounding validation for one answer.
//
// Report is a value, never an error: an ungrounded answer is a normal
// pipeline outcome that leads to refinement or refusal.
type Report struct {
	// IsGrounded is true when no flags were raised by either pass.
	IsGrounded bool `json:"is_grounded"`

	// Confidence is max(0, 1 - 0.1 * len(FlaggedSpans)).
	Confidence float64 `json:"confidence"`

	// FlaggedSpans lists matched hedge phrases and unsupported
	// sentences, in detection order.
	FlaggedSpans []string `json:"flagged_spans,omitempty"`

	// OverlapRatio is the fraction of answer words present in the
	// context word set.
	OverlapRatio float64 `json:"overlap_ratio"`
}

// Options tunes the validator. Zero values select the defaults.
type Options struct {
	// Patterns replaces DefaultPatterns when non-nil. Phrases are
	// matched case-insensitively as substrings.
	Patterns []string

	// OverlapThreshold replaces DefaultOverlapThreshold when > 0. The
	// historical 0.3 is a tunable, not a derived constant.
	OverlapThreshold float64

	// MinSentenceWords replaces the default of 5 when > 0.
	MinSentenceWords int
}

// Validator applies the grounding checks and the refinement repair.
//
// All configuration is injected at construction and never mutated, so a
// single Validator is safe for concurrent use across requests.
type Validator struct {
	patterns         []string
	overlapThreshold float64
	minSentenceWords int
	catalog          *refusal.Catalog
}

// NewValidator creates a validator drawing refusal text from catalog.
func NewValidator(catalog *refusal.Catalog, opts Options) *Validator {
	patterns := opts.Patterns
	if patterns == nil {
		patterns = DefaultPatterns
	}
	threshold := opts.OverlapThreshold
	if threshold <= 0 {
		threshold = DefaultOverlapThreshold
	}
	minWords := opts.MinSentenceWords
	if minWords <= 0 {
		minWords = defaultMinSentenceWords
	}
	return &Validator{
		patterns:         patterns,
		overlapThreshold: threshold,
		minSentenceWords: minWords,
		catalog:          catalog,
	}
}

// Validate scores how well answer is supported by contextText.
//
// # Description
//
// Two independent passes contribute flags:
//
//   - Pattern pass: any configured hedge phrase found in the lowercased
//     answer is flagged. One match is enough to mark the whole answer as
//     carrying a hallucination indicator.
//   - Sentence pass: each answer sentence longer than the minimum word
//     count is intersected with the context word set; zero overlap flags
//     the sentence as unsupported.
//
// Confidence decays linearly with the number of flags. IsGrounded is
// true only when no pass raised a flag.
//
// # Inputs
//
//   - answer: The generated answer text.
//   - contextText: The context the answer was produced from. When empty,
//     the sentence pass is skipped (there is nothing to ground against);
//     the pattern pass still applies.
//
// # Outputs
//
//   - Report: Never nil-equivalent; an empty answer yields a grounded
//     report with zero flags.
func (v *Validator) Validate(answer, contextText string) Report {
	answerLower := strings.ToLower(answer)

	var flagged []string
	for _, pattern := range v.patterns {
		if strings.Contains(answerLower, pattern) {
			flagged = append(flagged, pattern)
		}
	}

	if contextText != "" && answer != "" {
		contextWords := wordSet(contextText)
		for _, sentence := range strings.Split(answer, ".") {
			words := strings.Fields(strings.ToLower(sentence))
			if len(words) <= v.minSentenceWords {
				continue
			}
			if !anyWordIn(words, contextWords) {
				flagged = append(flagged, strings.TrimSpace(sentence))
			}
		}
	}

	confidence := 1.0 - confidencePenalty*float64(len(flagged))
	if confidence < 0 {
		confidence = 0
	}

	return Report{
		IsGrounded:   len(flagged) == 0,
		Confidence:   confidence,
		FlaggedSpans: flagged,
		OverlapRatio: v.OverlapRatio(answer, contextText),
	}
}

// Refine attempts to repair a flagged answer by dropping every sentence
// that matches a hedge phrase.
//
// # Description
//
// The surviving sentences are rejoined with ". ". If the refined text is
// effectively empty, or its word overlap with the context falls below
// the configured threshold, the refinement is discarded and the canonical
// hallucination refusal message is returned instead: partially grounded
// text is not safe to surface to a reader.
//
// # Outputs
//
//   - string: The refined answer, or the catalog's hallucination message.
//   - bool: True when the refinement was discarded in favor of a refusal.
func (v *Validator) Refine(answer, contextText string) (string, bool) {
	refined := answer
	for _, pattern := range v.patterns {
		kept := make([]string, 0)
		for _, sentence := range strings.Split(refined, ".") {
			if !strings.Contains(strings.ToLower(sentence), pattern) {
				kept = append(kept, strings.TrimSpace(sentence))
			}
		}
		refined = strings.Join(kept, ". ")
	}

	if strings.TrimSpace(strings.ReplaceAll(refined, ".", "")) == "" {
		return v.catalog.Message(refusal.ReasonHallucination), true
	}
	if v.OverlapRatio(refined, contextText) < v.overlapThreshold {
		return v.catalog.Message(refusal.ReasonHallucination), true
	}
	return refined, false
}

// OverlapRatio returns the fraction of answer words that occur in the
// context word set. Returns 0 when either side is empty.
func (v *Validator) OverlapRatio(answer, contextText string) float64 {
	answerWords := wordSet(answer)
	if len(answerWords) == 0 || contextText == "" {
		return 0
	}
	contextWords := wordSet(contextText)
	common := 0
	for word := range answerWords {
		if _, ok := contextWords[word]; ok {
			common++
		}
	}
	return float64(common) / float64(len(answerWords))
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

// anyWordIn reports whether any of words is present in set.
func anyWordIn(words []string, set map[string]struct{}) bool {
	for _, word := range words {
		if _, ok := set[word]; ok {
			return true
		}
	}
	return false
}
