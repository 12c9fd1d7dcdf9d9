// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package corpus

import (
	"context"
	"sort"
	"strings"
)

// StaticProvider is an in-memory SearchProvider for tests and demo mode.
//
// It ranks chunks by the number of query terms appearing in the chunk text
// (case-insensitive substring match), ties broken by insertion order so
// results are deterministic. It exists so the service can run without a
// Weaviate instance; it is selected by configuration, never by runtime
// type substitution.
type StaticProvider struct {
	chunks []Chunk
}

// Compile-time interface implementation check.
var _ SearchProvider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider over a fixed chunk set.
// The slice is copied; later mutation of the argument has no effect.
func NewStaticProvider(chunks []Chunk) *StaticProvider {
	copied := make([]Chunk, len(chunks))
	copy(copied, chunks)
	return &StaticProvider{chunks: copied}
}

// Ready always succeeds; there is no backing store to probe.
func (p *StaticProvider) Ready(ctx context.Context) error {
	return ctx.Err()
}

// Search implements SearchProvider.
//
// Chunks containing none of the query terms are excluded entirely, so an
// off-topic query returns an empty slice rather than arbitrary chunks.
func (p *StaticProvider) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RetrievalError{Op: "search", Err: err}
	}
	if limit <= 0 {
		limit = 10
	}

	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		chunk Chunk
		score int
		order int
	}
	matches := make([]scored, 0, len(p.chunks))
	for i, chunk := range p.chunks {
		text := strings.ToLower(chunk.Text)
		score := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{chunk: chunk, score: score, order: i})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].order < matches[j].order
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	results := make([]Chunk, len(matches))
	for i, m := range matches {
		results[i] = m.chunk
	}
	return results, nil
}
