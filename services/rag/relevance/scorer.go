// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relevance scores sentences against a reader question and selects
// the few most likely to matter.
//
// Scoring is lexical on purpose: a sentence earns one point per query term
// that occurs (case-folded) anywhere inside it. This is a deliberate
// stand-in for semantic understanding, kept for compatibility with the
// rest of the refusal pipeline; do not replace it with embedding
// similarity, which would change observable refusal behavior.
//
// Everything in this package is a pure function with no I/O, safe to run
// concurrently across chunks.
package relevance

import (
	"regexp"
	"sort"
	"strings"
)

// sentenceBoundary splits text on runs of terminal punctuation.
var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// SplitSentences splits text into trimmed, non-empty sentences.
//
// Sentences are delimited by runs of '.', '!' or '?'. The delimiters are
// discarded; callers that rejoin sentences re-add periods themselves.
func SplitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// Score returns the number of query terms contained in the sentence.
//
// Terms are the lowercase whitespace-split words of the query; a term
// matches as a plain substring of the lowercased sentence. No stemming,
// no stop-word removal.
func Score(sentence, query string) int {
	sentenceLower := strings.ToLower(sentence)
	score := 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(sentenceLower, term) {
			score++
		}
	}
	return score
}

// ScoreAndSelect extracts the sentences of text most relevant to query.
//
// # Description
//
// Splits text into sentences, scores each against the query, and keeps at
// most maxSentences of the highest-scoring ones. Sentences scoring zero
// are always discarded, even when fewer than maxSentences survive. The
// survivors are rejoined with ". " and a trailing period.
//
// The sort is stable, so among equal scores the original sentence order
// is preserved and the result is deterministic for identical inputs.
//
// # Inputs
//
//   - text: Chunk body to extract from. May be empty.
//   - query: Reader question. May be empty.
//   - maxSentences: Cap on selected sentences. Values <= 0 select nothing.
//
// # Outputs
//
//   - string: The selected excerpt, or "" when no sentence scores above
//     zero. Callers must treat "" as "no relevant excerpt found" and skip
//     the chunk.
func ScoreAndSelect(text, query string, maxSentences int) string {
	if maxSentences <= 0 {
		return ""
	}

	sentences := SplitSentences(text)

	type scored struct {
		sentence string
		score    int
	}
	candidates := make([]scored, 0, len(sentences))
	for _, sentence := range sentences {
		if s := Score(sentence, query); s > 0 {
			candidates = append(candidates, scored{sentence: sentence, score: s})
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxSentences {
		candidates = candidates[:maxSentences]
	}

	selected := make([]string, len(candidates))
	for i, c := range candidates {
		selected[i] = c.sentence
	}
	return strings.Join(selected, ". ") + "."
}
