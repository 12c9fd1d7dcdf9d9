// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBookQA/services/corpus"
)

// =============================================================================
// Mock Search Provider
// =============================================================================

// MockProvider implements corpus.SearchProvider for testing.
// It tracks calls so tests can assert the corpus was or wasn't queried.
type MockProvider struct {
	// Chunks is returned by Search.
	Chunks []corpus.Chunk
	// Err is returned as the Search error.
	Err error
	// SearchCallCount tracks how many times Search was called.
	SearchCallCount int
	// LastQuery stores the last query passed to Search.
	LastQuery string
	// LastLimit stores the last limit passed to Search.
	LastLimit int
}

func (m *MockProvider) Search(ctx context.Context, query string, limit int) ([]corpus.Chunk, error) {
	m.SearchCallCount++
	m.LastQuery = query
	m.LastLimit = limit
	return m.Chunks, m.Err
}

// =============================================================================
// Excerpt-Primary Mode Tests
// =============================================================================

func TestAssemble_ExcerptRoundTrip(t *testing.T) {
	provider := &MockProvider{}
	asm := NewAssembler(provider, Options{})

	excerpt := "ROS 2 is designed for large development efforts."
	result, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query:           "What is ROS 2?",
		SelectedExcerpt: excerpt,
		MinTokens:       5,
		MaxTokens:       50,
	})
	require.NoError(t, err)

	assert.Equal(t, excerpt, result.Text, "a sufficient excerpt is used verbatim")
	assert.Equal(t, []string{ExcerptSource}, result.Sources)
	assert.Equal(t, 8, result.TokenCount)
	assert.True(t, result.ExcerptUsed)
	assert.True(t, result.IsSufficient)
	assert.Zero(t, provider.SearchCallCount, "a sufficient excerpt must not query the corpus")
}

func TestAssemble_ShortExcerptSupplementedFromCorpus(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{
		{ID: "c1", Chapter: "2", Section: "1", Title: "Nodes",
			Text: "A ROS node is a process that performs computation. Nodes exchange messages over topics."},
	}}
	asm := NewAssembler(provider, Options{})

	result, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query:           "What is a ROS node?",
		SelectedExcerpt: "ROS nodes.",
		MinTokens:       10,
		MaxTokens:       100,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.SearchCallCount,
		"an insufficient excerpt falls through to corpus supplementation")
	assert.True(t, result.ExcerptUsed)
	assert.True(t, strings.HasPrefix(result.Text, "ROS nodes."),
		"the excerpt stays primary, ahead of corpus excerpts")
	assert.Contains(t, result.Text, "ROS node")
	assert.Equal(t, ExcerptSource, result.Sources[0])
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "2/1 - Nodes", result.Sources[1])
}

func TestAssemble_OversizedExcerptTrimmedToBudget(t *testing.T) {
	provider := &MockProvider{}
	asm := NewAssembler(provider, Options{})

	excerpt := strings.Repeat("word ", 30) // 30 words
	result, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query:           "word",
		SelectedExcerpt: strings.TrimSpace(excerpt),
		MinTokens:       5,
		MaxTokens:       10,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, result.TokenCount, "the budget invariant holds even for oversized excerpts")
	assert.True(t, result.ExcerptUsed, "the excerpt is trimmed, never dropped")
	assert.True(t, result.IsSufficient)
}

// =============================================================================
// Corpus Mode Tests
// =============================================================================

func TestAssemble_CorpusMode(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{
		{ID: "c1", Chapter: "1", Section: "2", Title: "Topics",
			Text: "Topics carry messages between nodes. Unrelated filler sentence here."},
		{ID: "c2", Chapter: "3", Section: "1", Title: "Services",
			Text: "Services provide request and reply messages. Cats sleep all day."},
	}}
	asm := NewAssembler(provider, Options{SearchLimit: 5})

	result, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query:     "messages between nodes",
		MinTokens: 5,
		MaxTokens: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.SearchCallCount, "search is invoked once per assemble")
	assert.Equal(t, 5, provider.LastLimit)
	assert.Contains(t, result.Text, "Topics carry messages between nodes.")
	assert.Contains(t, result.Text, "Services provide request and reply messages.")
	assert.NotContains(t, result.Text, "Cats sleep",
		"zero-score sentences never enter the context")
	assert.Equal(t, []string{"1/2 - Topics", "3/1 - Services"}, result.Sources)
	assert.False(t, result.ExcerptUsed)
	assert.True(t, result.IsSufficient)
}

func TestAssemble_BudgetNeverExceeded(t *testing.T) {
	long := strings.Repeat("messages flow between robot nodes constantly. ", 10)
	provider := &MockProvider{Chunks: []corpus.Chunk{
		{ID: "c1", Chapter: "1", Section: "1", Title: "A", Text: long},
		{ID: "c2", Chapter: "1", Section: "2", Title: "B", Text: long},
	}}
	asm := NewAssembler(provider, Options{})

	result, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query:     "messages nodes",
		MinTokens: 5,
		MaxTokens: 12,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.TokenCount, 12,
		"token_count must never exceed max_tokens")
}

func TestAssemble_SkipsChunksWithNoRelevantSentences(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{
		{ID: "c1", Chapter: "1", Section: "1", Title: "Filler",
			Text: "Nothing relevant lives in this chunk. Truly nothing."},
		{ID: "c2", Chapter: "2", Section: "2", Title: "Nodes",
			Text: "Nodes communicate over the network transparently."},
	}}
	asm := NewAssembler(provider, Options{})

	result, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query:     "nodes communicate",
		MinTokens: 3,
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2/2 - Nodes"}, result.Sources,
		"chunks producing an empty excerpt contribute neither text nor sources")
}

func TestAssemble_DeduplicatesSourcesByChapterSection(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{
		{ID: "c1", Chapter: "4", Section: "2", Title: "Actions",
			Text: "Actions handle long running robot goals."},
		{ID: "c2", Chapter: "4", Section: "2", Title: "Actions",
			Text: "Action feedback streams progress on robot goals."},
	}}
	asm := NewAssembler(provider, Options{})

	result, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query:     "robot goals",
		MinTokens: 3,
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"4/2 - Actions"}, result.Sources,
		"sources are deduplicated by chapter/section, first-seen order")
}

func TestAssemble_InsufficientWhenBelowMinTokens(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{
		{ID: "c1", Chapter: "1", Section: "1", Title: "A",
			Text: "Robots move."},
	}}
	asm := NewAssembler(provider, Options{})

	result, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query:     "robots",
		MinTokens: 50,
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.False(t, result.IsSufficient)
}

func TestAssemble_RetrievalErrorPropagates(t *testing.T) {
	provider := &MockProvider{Err: &corpus.RetrievalError{Op: "search", Err: errors.New("connection refused")}}
	asm := NewAssembler(provider, Options{})

	_, err := asm.Assemble(context.Background(), RetrievalRequest{
		Query: "anything",
	})
	require.Error(t, err, "provider failures must never be treated as zero results")
	assert.True(t, corpus.IsRetrievalError(err))
}

func TestCountTokens(t *testing.T) {
	assert.Zero(t, CountTokens(""))
	assert.Equal(t, 3, CountTokens("  one two   three \n"))
}
