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
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// BookChunkClassName is the Weaviate class name for ingested book chunks.
const BookChunkClassName = "BookChunk"

// GetBookChunkSchema returns the Weaviate schema for the BookChunk class.
//
// The class carries no vectorizer: retrieval is keyword-only (BM25 over the
// inverted index), which keeps ranking deterministic for a fixed corpus.
func GetBookChunkSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       BookChunkClassName,
		Description: "A chunk of published book text with chapter/section metadata",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "chunkId",
				DataType:        []string{"text"},
				Description:     "Stable chunk identifier assigned at ingestion",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "chapter",
				DataType:        []string{"text"},
				Description:     "Chapter number or name",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "section",
				DataType:        []string{"text"},
				Description:     "Section number or name within the chapter",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "title",
				DataType:     []string{"text"},
				Description:  "Human-readable section title",
				Tokenization: "word",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Chunk body text",
				Tokenization: "word",
			},
			{
				Name:        "tokenCount",
				DataType:    []string{"int"},
				Description: "Approximate token count computed at ingestion",
			},
		},
	}
}

// EnsureSchema creates the BookChunk class if it doesn't exist.
//
// # Description
//
// Checks whether the BookChunk class exists in Weaviate and creates it if
// not. The operation is idempotent and safe to run at every startup.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - client: Weaviate client. Must not be nil.
//
// # Outputs
//
//   - error: Non-nil if the existence check or creation fails.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	exists, err := client.Schema().ClassExistenceChecker().
		WithClassName(BookChunkClassName).
		Do(ctx)
	if err != nil {
		return &RetrievalError{Op: "schema", Err: err}
	}
	if exists {
		slog.Debug("BookChunk class already exists")
		return nil
	}

	if err := client.Schema().ClassCreator().
		WithClass(GetBookChunkSchema()).
		Do(ctx); err != nil {
		return &RetrievalError{Op: "schema", Err: err}
	}
	slog.Info("Created Weaviate class", "class", BookChunkClassName)
	return nil
}

// WeaviateProvider implements SearchProvider using Weaviate BM25 search.
//
// Ranking comes entirely from Weaviate's BM25 scoring over the inverted
// index of the content property. The provider performs no reranking of its
// own, so result order is exactly the store's relevance order.
type WeaviateProvider struct {
	client *weaviate.Client
}

// Compile-time interface implementation check.
var _ SearchProvider = (*WeaviateProvider)(nil)

// NewWeaviateProvider creates a provider backed by the given client.
//
// The client must already be configured (host, scheme); this constructor
// performs no connectivity check so that startup does not depend on the
// store being up.
func NewWeaviateProvider(client *weaviate.Client) *WeaviateProvider {
	return &WeaviateProvider{client: client}
}

// Search returns the top-ranked chunks for the query via BM25.
//
// # Inputs
//
//   - ctx: Context for cancellation. This is the single suspend point of
//     a corpus-mode context assembly; cancellation propagates here.
//   - query: Free-text reader question. Must be non-empty.
//   - limit: Maximum chunks to return. Values <= 0 fall back to 10.
//
// # Outputs
//
//   - []Chunk: Matching chunks, best-first. Empty when nothing matches.
//   - error: *RetrievalError when the store cannot be queried.
func (p *WeaviateProvider) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 10
	}

	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "chapter"},
		{Name: "section"},
		{Name: "title"},
		{Name: "content"},
		{Name: "tokenCount"},
	}

	result, err := p.client.GraphQL().Get().
		WithClassName(BookChunkClassName).
		WithFields(fields...).
		WithBM25(p.client.GraphQL().Bm25ArgBuilder().WithQuery(query)).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, &RetrievalError{Op: "search", Err: err}
	}
	if len(result.Errors) > 0 {
		return nil, &RetrievalError{Op: "search", Err: fmt.Errorf("%s", result.Errors[0].Message)}
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []Chunk{}, nil // No results
	}
	objects, ok := data[BookChunkClassName].([]interface{})
	if !ok {
		return []Chunk{}, nil // No results
	}

	chunks := make([]Chunk, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}
		chunks = append(chunks, Chunk{
			ID:         getString(m, "chunkId"),
			Chapter:    getString(m, "chapter"),
			Section:    getString(m, "section"),
			Title:      getString(m, "title"),
			Text:       getString(m, "content"),
			TokenCount: getInt(m, "tokenCount"),
		})
	}
	return chunks, nil
}

// Ready reports whether the Weaviate instance answers its readiness
// probe. Used by the health endpoint.
func (p *WeaviateProvider) Ready(ctx context.Context) error {
	ready, err := p.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return &RetrievalError{Op: "ready", Err: err}
	}
	if !ready {
		return &RetrievalError{Op: "ready", Err: fmt.Errorf("weaviate reports not ready")}
	}
	return nil
}

// getString safely extracts a string from a GraphQL result map.
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getInt safely extracts an int from a GraphQL result map.
// Weaviate returns numbers as float64 in decoded JSON.
func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return 0
}
