// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// QueryRequest is the reader-facing request body for the query routes.
//
// Query is deliberately not required: an empty query with no selected
// text refuses with a no-context message rather than a 400, keeping the
// failure behavior deterministic and reader-facing.
type QueryRequest struct {
	Query        string `json:"query"`
	SelectedText string `json:"selected_text,omitempty"`

	// Mode forces a query mode; empty selects book_scope. The
	// mode-forcing routes override this field.
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=book_scope selected_text_only"`

	// MaxTokens and MinTokens override the configured budgets when > 0.
	MaxTokens int `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	MinTokens int `json:"min_tokens,omitempty" validate:"omitempty,gt=0"`
}

// Validate checks the struct tags and the budget relationship.
func (r *QueryRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.MaxTokens > 0 && r.MinTokens > 0 && r.MinTokens > r.MaxTokens {
		return fmt.Errorf("min_tokens (%d) exceeds max_tokens (%d)", r.MinTokens, r.MaxTokens)
	}
	return nil
}

// GroundingInfo mirrors the validator's report for the response body.
type GroundingInfo struct {
	IsGrounded   bool     `json:"is_grounded"`
	Confidence   float64  `json:"confidence"`
	FlaggedSpans []string `json:"flagged_spans,omitempty"`
	OverlapRatio float64  `json:"overlap_ratio"`
}

// QueryResponse is the reader-facing answer envelope. Refusals are 200
// responses with WasRefused set; only infrastructure failures produce
// error statuses.
type QueryResponse struct {
	RequestID string `json:"request_id"`
	Answer    string `json:"answer"`

	WasRefused    bool   `json:"was_refused"`
	RefusalReason string `json:"refusal_reason,omitempty"`

	Sources             []string       `json:"sources"`
	Grounding           *GroundingInfo `json:"grounding,omitempty"`
	RelevanceConfidence float64        `json:"relevance_confidence"`
	ContextTokens       int            `json:"context_tokens"`
	Mode                string         `json:"mode"`
}

// HealthResponse reports service and corpus-store status.
type HealthResponse struct {
	Status string `json:"status"`
	Corpus string `json:"corpus"`
}
