// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the service configuration from a YAML file,
// creating it with defaults on first run. Endpoints and secrets come
// from environment variables, never from the file.
package config

// BookQAConfig is the root configuration document.
type BookQAConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Refusal   RefusalConfig   `yaml:"refusal"`
	Grounding GroundingConfig `yaml:"grounding"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Port the gin server binds to.
	Port int `yaml:"port"`

	// APIKey, when non-empty, requires X-API-Key on /v1 routes.
	APIKey string `yaml:"api_key"`
}

// RetrievalConfig holds the context-assembly tunables.
type RetrievalConfig struct {
	// SearchLimit is the ranked-chunk count requested per query.
	SearchLimit int `yaml:"search_limit"`

	// MaxSentencesPerChunk caps the excerpt taken from one chunk.
	MaxSentencesPerChunk int `yaml:"max_sentences_per_chunk"`

	// MaxTokens is the context budget in whitespace words.
	MaxTokens int `yaml:"max_tokens"`

	// MinTokens is the sufficiency floor in whitespace words.
	MinTokens int `yaml:"min_tokens"`

	// Provider selects the corpus backend: "weaviate" or "static".
	Provider string `yaml:"provider"`
}

// RefusalConfig holds the gate tunables and message overrides.
type RefusalConfig struct {
	// MinContextLength is the minimum usable context in characters.
	MinContextLength int `yaml:"min_context_length"`

	// RelevanceThreshold is the advisory query/context overlap ratio
	// below which a retrieval is considered marginal.
	RelevanceThreshold float64 `yaml:"relevance_threshold"`

	// MessageOverrides replaces canonical refusal messages by reason.
	MessageOverrides map[string]string `yaml:"message_overrides,omitempty"`
}

// GroundingConfig holds the validator tunables.
type GroundingConfig struct {
	// OverlapThreshold is the minimum refined-answer/context word
	// overlap ratio for a refinement to be surfaced.
	OverlapThreshold float64 `yaml:"overlap_threshold"`

	// MinSentenceWords is the sentence length above which zero context
	// overlap flags a sentence.
	MinSentenceWords int `yaml:"min_sentence_words"`

	// ExtraPatterns extends the built-in hedge-phrase list.
	ExtraPatterns []string `yaml:"extra_patterns,omitempty"`
}

// LLMConfig holds outbound model-call tunables. Backend and credentials
// come from the environment (LLM_BACKEND_TYPE, ANTHROPIC_API_KEY, ...).
type LLMConfig struct {
	// RequestsPerSecond caps outbound model calls; 0 disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the rate-limiter burst size.
	Burst int `yaml:"burst"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Dir enables JSON file logging when non-empty.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() BookQAConfig {
	return BookQAConfig{
		Server: ServerConfig{
			Port: 8000,
		},
		Retrieval: RetrievalConfig{
			SearchLimit:          12,
			MaxSentencesPerChunk: 3,
			MaxTokens:            2000,
			MinTokens:            50,
			Provider:             "weaviate",
		},
		Refusal: RefusalConfig{
			MinContextLength:   50,
			RelevanceThreshold: 0.2,
		},
		Grounding: GroundingConfig{
			OverlapThreshold: 0.3,
			MinSentenceWords: 5,
		},
		LLM: LLMConfig{
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
