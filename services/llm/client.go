// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm is the boundary to hosted language-model APIs. The QA
// pipeline treats a client as an opaque fallible function from a prompt
// pair to generated text; backend selection happens once at startup.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"
)

// GenerationParams carries optional sampling parameters. Nil pointers
// mean "backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error)
}

// NewClientFromEnv selects a backend by LLM_BACKEND_TYPE. Supported
// values are "anthropic" (the default) and "openai".
func NewClientFromEnv() (LLMClient, error) {
	backend := os.Getenv("LLM_BACKEND_TYPE")
	if backend == "" {
		backend = "anthropic"
		slog.Warn("LLM_BACKEND_TYPE not set, defaulting to anthropic")
	}

	var (
		client LLMClient
		err    error
	)
	switch backend {
	case "anthropic":
		client, err = NewAnthropicClient()
	case "openai":
		client, err = NewOpenAIClient()
	default:
		return nil, fmt.Errorf("unsupported LLM_BACKEND_TYPE: %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// RateLimitedClient wraps a client with a token-bucket limiter so a
// burst of reader queries cannot exhaust the upstream API quota.
type RateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a limiter of requestsPerSecond
// sustained rate and the given burst. Non-positive values disable the
// wrapper and return inner unchanged.
func NewRateLimitedClient(inner LLMClient, requestsPerSecond float64, burst int) LLMClient {
	if requestsPerSecond <= 0 || burst <= 0 {
		return inner
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Generate waits for limiter headroom, then delegates. A cancelled
// context aborts the wait with the context's error.
func (r *RateLimitedClient) Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait aborted: %w", err)
	}
	return r.inner.Generate(ctx, systemPrompt, userPrompt, params)
}
