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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks() []Chunk {
	return []Chunk{
		{ID: "a", Chapter: "1", Section: "1", Title: "Nodes",
			Text: "A node is a process that performs computation."},
		{ID: "b", Chapter: "1", Section: "2", Title: "Topics",
			Text: "Nodes exchange messages over topics using publish and subscribe."},
		{ID: "c", Chapter: "2", Section: "1", Title: "Gardening",
			Text: "Tomatoes grow best with plenty of sunlight."},
	}
}

func TestStaticSearch_RanksByTermCount(t *testing.T) {
	provider := NewStaticProvider(testChunks())

	results, err := provider.Search(context.Background(), "nodes messages topics", 10)
	require.NoError(t, err)
	require.Len(t, results, 2, "the gardening chunk matches no term and is excluded")
	assert.Equal(t, "b", results[0].ID, "the chunk matching all three terms ranks first")
	assert.Equal(t, "a", results[1].ID)
}

func TestStaticSearch_OffTopicQueryReturnsEmpty(t *testing.T) {
	provider := NewStaticProvider(testChunks())

	results, err := provider.Search(context.Background(), "quaternion kinematics", 10)
	require.NoError(t, err)
	assert.Empty(t, results, "no matches is an empty slice, never an error")
}

func TestStaticSearch_HonorsLimit(t *testing.T) {
	provider := NewStaticProvider(testChunks())

	results, err := provider.Search(context.Background(), "node topics tomatoes", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStaticSearch_TieOrderIsInsertionOrder(t *testing.T) {
	provider := NewStaticProvider([]Chunk{
		{ID: "first", Text: "robot"},
		{ID: "second", Text: "robot"},
	})

	results, err := provider.Search(context.Background(), "robot", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].ID,
		"equal scores preserve insertion order for deterministic contexts")
	assert.Equal(t, "second", results[1].ID)
}

func TestStaticSearch_CancelledContext(t *testing.T) {
	provider := NewStaticProvider(testChunks())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Search(ctx, "nodes", 10)
	require.Error(t, err)
	assert.True(t, IsRetrievalError(err))
}

func TestStaticProvider_CopiesInput(t *testing.T) {
	chunks := []Chunk{{ID: "a", Text: "robot"}}
	provider := NewStaticProvider(chunks)
	chunks[0].Text = "mutated"

	results, err := provider.Search(context.Background(), "robot", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "mutating the input slice must not affect the provider")
}

func TestStaticProvider_Ready(t *testing.T) {
	provider := NewStaticProvider(nil)
	assert.NoError(t, provider.Ready(context.Background()))
}

// =============================================================================
// Chunk Label Tests
// =============================================================================

func TestChunk_SourceLabel(t *testing.T) {
	chunk := Chunk{Chapter: "3", Section: "2", Title: "Launch Files"}
	assert.Equal(t, "3/2 - Launch Files", chunk.SourceLabel())
	assert.Equal(t, "3/2", chunk.SourceKey())
}

func TestRetrievalError_Unwrap(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &RetrievalError{Op: "search", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "search")
	assert.True(t, IsRetrievalError(err))
	assert.False(t, IsRetrievalError(inner))
}
