// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt_EnhancedByDefault(t *testing.T) {
	builder := NewBuilder(Options{})
	system := builder.SystemPrompt()
	assert.Contains(t, system, "ONLY use information provided in the CONTEXT")
	assert.Contains(t, system, "CRITICAL ANTI-HALLUCINATION RULES")
}

func TestSystemPrompt_EnhancementDisabled(t *testing.T) {
	builder := NewBuilder(Options{DisableEnhancement: true})
	assert.NotContains(t, builder.SystemPrompt(), "CRITICAL ANTI-HALLUCINATION RULES")
}

func TestSystemPrompt_Override(t *testing.T) {
	builder := NewBuilder(Options{SystemPrompt: "custom instructions"})
	assert.Contains(t, builder.SystemPrompt(), "custom instructions")
	assert.Contains(t, builder.SystemPrompt(), "CRITICAL ANTI-HALLUCINATION RULES",
		"an override replaces the base prompt but keeps the addendum")
}

func TestBuildBookScope_SubstitutesPlaceholders(t *testing.T) {
	builder := NewBuilder(Options{})
	built := builder.BuildBookScope("nodes exchange messages", "what are topics?")

	assert.Contains(t, built.User, "nodes exchange messages")
	assert.Contains(t, built.User, "what are topics?")
	assert.NotContains(t, built.User, "%context%")
	assert.NotContains(t, built.User, "%question%")
}

func TestBuildSelectedText_SubstitutesPlaceholders(t *testing.T) {
	builder := NewBuilder(Options{})
	built := builder.BuildSelectedText("the gripper closes", "how does it close?")

	assert.Contains(t, built.User, "SELECTED TEXT:")
	assert.Contains(t, built.User, "the gripper closes")
	assert.Contains(t, built.User, "how does it close?")
	assert.NotContains(t, built.User, "%selected_text%")
}

func TestBuild_SelectsTemplateByMode(t *testing.T) {
	builder := NewBuilder(Options{})

	book := builder.Build(ModeBookScope, "ctx", "q", "")
	assert.Contains(t, book.User, "CONTEXT:")

	selected := builder.Build(ModeSelectedTextOnly, "ctx", "q", "selection")
	assert.Contains(t, selected.User, "SELECTED TEXT:")
}

func TestBuild_SelectedModeWithoutSelectionFallsBack(t *testing.T) {
	builder := NewBuilder(Options{})
	built := builder.Build(ModeSelectedTextOnly, "corpus ctx", "q", "")
	assert.Contains(t, built.User, "CONTEXT:",
		"a cleared selection degrades to the book-scope template")
}
