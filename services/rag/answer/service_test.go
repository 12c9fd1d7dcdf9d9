// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBookQA/services/corpus"
	"github.com/AleutianAI/AleutianBookQA/services/llm"
	"github.com/AleutianAI/AleutianBookQA/services/rag/assembler"
	"github.com/AleutianAI/AleutianBookQA/services/rag/grounding"
	"github.com/AleutianAI/AleutianBookQA/services/rag/prompt"
	"github.com/AleutianAI/AleutianBookQA/services/rag/refusal"
)

// =============================================================================
// Mocks
// =============================================================================

// MockProvider implements corpus.SearchProvider with call tracking.
type MockProvider struct {
	Chunks          []corpus.Chunk
	Err             error
	SearchCallCount int
}

func (m *MockProvider) Search(ctx context.Context, query string, limit int) ([]corpus.Chunk, error) {
	m.SearchCallCount++
	return m.Chunks, m.Err
}

// MockLLM implements llm.LLMClient with call tracking.
type MockLLM struct {
	Response          string
	Err               error
	GenerateCallCount int
	LastSystem        string
	LastUser          string
}

func (m *MockLLM) Generate(ctx context.Context, systemPrompt, userPrompt string, params llm.GenerationParams) (string, error) {
	m.GenerateCallCount++
	m.LastSystem = systemPrompt
	m.LastUser = userPrompt
	return m.Response, m.Err
}

func newTestService(provider corpus.SearchProvider, client llm.LLMClient) *Service {
	catalog := refusal.NewCatalog(nil)
	return NewService(
		assembler.NewAssembler(provider, assembler.Options{}),
		refusal.NewGate(catalog),
		grounding.NewValidator(catalog, grounding.Options{}),
		catalog,
		prompt.NewBuilder(prompt.Options{}),
		client,
		Options{MinContextLength: 10},
	)
}

// relevantChunk scores against questions mentioning ROS.
var relevantChunk = corpus.Chunk{
	ID: "c1", Chapter: "1", Section: "1", Title: "Basics",
	Text: "ROS 2 is a flexible framework for developing robot applications used worldwide.",
}

// =============================================================================
// Answered Path Tests
// =============================================================================

func TestAnswer_GroundedAnswerIsFinal(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{relevantChunk}}
	client := &MockLLM{Response: "ROS 2 is a flexible framework for robot applications."}
	svc := newTestService(provider, client)

	outcome, err := svc.Answer(context.Background(), QueryRequest{
		Query:     "What is ROS 2?",
		MinTokens: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, StateAnswerFinal, outcome.State)
	assert.False(t, outcome.WasRefused)
	assert.Equal(t, client.Response, outcome.Answer)
	assert.Equal(t, 1, client.GenerateCallCount)
	require.NotNil(t, outcome.Grounding)
	assert.True(t, outcome.Grounding.IsGrounded)
	assert.Equal(t, []string{"1/1 - Basics"}, outcome.Sources)
	assert.Greater(t, outcome.ContextTokens, 0)
	assert.NotEmpty(t, outcome.RequestID)
	assert.Equal(t, prompt.ModeBookScope, outcome.Mode, "empty mode defaults to book scope")
}

func TestAnswer_ContextReachesThePrompt(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{relevantChunk}}
	client := &MockLLM{Response: "ROS 2 is a flexible framework for robot applications."}
	svc := newTestService(provider, client)

	_, err := svc.Answer(context.Background(), QueryRequest{
		Query:     "What is ROS 2?",
		MinTokens: 5,
	})
	require.NoError(t, err)
	assert.Contains(t, client.LastUser, "flexible framework",
		"the assembled context must be embedded in the user prompt")
	assert.Contains(t, client.LastUser, "What is ROS 2?")
	assert.Contains(t, client.LastSystem, "ANTI-HALLUCINATION",
		"generation uses the enhanced system prompt")
}

// =============================================================================
// Pre-Generation Refusal Tests
// =============================================================================

func TestAnswer_GateFiresBeforeGeneration(t *testing.T) {
	provider := &MockProvider{}
	client := &MockLLM{Response: "should never be produced"}
	svc := newTestService(provider, client)

	// A sufficient excerpt with zero query overlap: the gate must refuse
	// without spending a model call.
	outcome, err := svc.Answer(context.Background(), QueryRequest{
		Query:        "quaternion kinematics",
		SelectedText: "gardening tips for growing tomatoes indoors across every single season",
		MinTokens:    5,
	})
	require.NoError(t, err)

	assert.True(t, outcome.WasRefused)
	assert.Equal(t, refusal.ReasonNoRelevantContent, outcome.RefusalReason)
	assert.Equal(t, StateRefused, outcome.State)
	assert.Zero(t, client.GenerateCallCount, "refusals must cost zero model calls")
	assert.Nil(t, outcome.Grounding, "no generation means no grounding report")
	assert.NotEmpty(t, outcome.Answer, "the refusal message stands in for the answer")
}

func TestAnswer_EmptyQueryRefusesNoContext(t *testing.T) {
	provider := &MockProvider{}
	client := &MockLLM{}
	svc := newTestService(provider, client)

	outcome, err := svc.Answer(context.Background(), QueryRequest{Query: ""})
	require.NoError(t, err)

	assert.True(t, outcome.WasRefused)
	assert.Equal(t, refusal.ReasonNoContext, outcome.RefusalReason)
	assert.Zero(t, client.GenerateCallCount)
}

// =============================================================================
// Post-Generation Grounding Tests
// =============================================================================

func TestAnswer_HallucinatedAnswerIsRefused(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{relevantChunk}}
	client := &MockLLM{Response: "According to my training data, ROS was invented in 2007."}
	svc := newTestService(provider, client)

	outcome, err := svc.Answer(context.Background(), QueryRequest{
		Query:     "What is ROS 2?",
		MinTokens: 5,
	})
	require.NoError(t, err)

	assert.True(t, outcome.WasRefused)
	assert.Equal(t, refusal.ReasonHallucination, outcome.RefusalReason)
	assert.Equal(t, refusal.NewCatalog(nil).Message(refusal.ReasonHallucination), outcome.Answer)
	require.NotNil(t, outcome.Grounding)
	assert.False(t, outcome.Grounding.IsGrounded)
	assert.Equal(t, 1, client.GenerateCallCount)
}

func TestAnswer_RefinableAnswerIsRepaired(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{relevantChunk}}
	client := &MockLLM{
		Response: "ROS 2 is a flexible framework for developing robot applications. Additionally, elephants migrate seasonally.",
	}
	svc := newTestService(provider, client)

	outcome, err := svc.Answer(context.Background(), QueryRequest{
		Query:     "What is ROS 2?",
		MinTokens: 5,
	})
	require.NoError(t, err)

	assert.False(t, outcome.WasRefused,
		"a mostly grounded answer is repaired, not refused")
	assert.Contains(t, outcome.Answer, "flexible framework")
	assert.NotContains(t, outcome.Answer, "elephants",
		"the hedged sentence is dropped from the final answer")
}

// =============================================================================
// Selected-Text-Only Mode Tests
// =============================================================================

func TestAnswer_SelectedTextInsufficientRefusal(t *testing.T) {
	provider := &MockProvider{}
	client := &MockLLM{}
	svc := newTestService(provider, client)

	outcome, err := svc.Answer(context.Background(), QueryRequest{
		Query:        "what does this mean",
		SelectedText: "just these words",
		Mode:         prompt.ModeSelectedTextOnly,
	})
	require.NoError(t, err)

	assert.True(t, outcome.WasRefused)
	assert.Equal(t, refusal.ReasonSelectedTextInsufficient, outcome.RefusalReason,
		"a short selection must get the selection-specific reason, not a generic one")
	assert.Zero(t, provider.SearchCallCount, "selection mode never queries the corpus")
	assert.Zero(t, client.GenerateCallCount)
}

func TestAnswer_SelectedTextModeAnswers(t *testing.T) {
	provider := &MockProvider{}
	client := &MockLLM{Response: "The gripper closes around the payload with calibrated force."}
	svc := newTestService(provider, client)

	outcome, err := svc.Answer(context.Background(), QueryRequest{
		Query:        "How does the gripper close?",
		SelectedText: "The gripper closes around the payload with calibrated force today.",
		Mode:         prompt.ModeSelectedTextOnly,
		MinTokens:    5,
	})
	require.NoError(t, err)

	assert.Equal(t, StateAnswerFinal, outcome.State)
	assert.Equal(t, prompt.ModeSelectedTextOnly, outcome.Mode)
	assert.Equal(t, []string{assembler.ExcerptSource}, outcome.Sources)
	assert.Zero(t, provider.SearchCallCount, "selection mode never queries the corpus")
	assert.Equal(t, 1, client.GenerateCallCount)
}

func TestAnswer_SelectedTextModeEmptySelection(t *testing.T) {
	provider := &MockProvider{}
	client := &MockLLM{}
	svc := newTestService(provider, client)

	outcome, err := svc.Answer(context.Background(), QueryRequest{
		Query: "anything",
		Mode:  prompt.ModeSelectedTextOnly,
	})
	require.NoError(t, err)

	assert.True(t, outcome.WasRefused)
	assert.Equal(t, refusal.ReasonNoContext, outcome.RefusalReason)
	assert.Zero(t, provider.SearchCallCount)
}

// =============================================================================
// Infrastructure Failure Tests
// =============================================================================

func TestAnswer_RetrievalErrorPropagates(t *testing.T) {
	provider := &MockProvider{Err: &corpus.RetrievalError{Op: "search", Err: errors.New("down")}}
	client := &MockLLM{}
	svc := newTestService(provider, client)

	_, err := svc.Answer(context.Background(), QueryRequest{Query: "what is ROS"})
	require.Error(t, err, "store failures are errors, never silent refusals")
	assert.True(t, corpus.IsRetrievalError(err))
	assert.Zero(t, client.GenerateCallCount)
}

func TestAnswer_GenerationErrorPropagates(t *testing.T) {
	provider := &MockProvider{Chunks: []corpus.Chunk{relevantChunk}}
	client := &MockLLM{Err: errors.New("model backend timeout")}
	svc := newTestService(provider, client)

	_, err := svc.Answer(context.Background(), QueryRequest{
		Query:     "What is ROS 2?",
		MinTokens: 5,
	})
	require.Error(t, err, "model failures are errors, never fabricated answers")
}

func TestAnswer_RequestIDsAreUnique(t *testing.T) {
	provider := &MockProvider{}
	client := &MockLLM{}
	svc := newTestService(provider, client)

	first, err := svc.Answer(context.Background(), QueryRequest{Query: ""})
	require.NoError(t, err)
	second, err := svc.Answer(context.Background(), QueryRequest{Query: ""})
	require.NoError(t, err)
	assert.NotEqual(t, first.RequestID, second.RequestID)
}
