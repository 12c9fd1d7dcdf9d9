// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package corpus provides read access to the indexed book content.
//
// The corpus is a store of immutable text chunks produced by an external
// ingestion pipeline. This package only reads it: the QA core asks for the
// top-ranked chunks for a free-text query and never mutates the store.
//
// Two SearchProvider implementations exist:
//   - WeaviateProvider: BM25 keyword search against a Weaviate class
//   - StaticProvider: in-memory provider for tests and demo mode
package corpus

import "fmt"

// Chunk is one stored unit of book text with stable identity and
// chapter/section metadata. Chunks are created by ingestion (out of scope
// here) and are read-only for the life of the process.
type Chunk struct {
	ID         string `json:"chunk_id"`
	Chapter    string `json:"chapter"`
	Section    string `json:"section"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// SourceLabel returns the provenance label shown to readers,
// e.g. "3/3.2 - Nodes and Topics".
func (c Chunk) SourceLabel() string {
	return fmt.Sprintf("%s/%s - %s", c.Chapter, c.Section, c.Title)
}

// SourceKey returns the chapter/section pair used to deduplicate sources.
// Two chunks from the same section share a key even when titles differ.
func (c Chunk) SourceKey() string {
	return c.Chapter + "/" + c.Section
}
