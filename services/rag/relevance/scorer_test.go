// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relevance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences_TerminalPunctuation(t *testing.T) {
	sentences := SplitSentences("First sentence. Second one! Third one? Fourth")
	assert.Equal(t, []string{"First sentence", "Second one", "Third one", "Fourth"}, sentences,
		"should split on all terminal punctuation and keep the trailing fragment")
}

func TestSplitSentences_DiscardsEmptyFragments(t *testing.T) {
	sentences := SplitSentences("One... Two.. ")
	assert.Equal(t, []string{"One", "Two"}, sentences,
		"runs of punctuation should not produce empty sentences")
}

func TestSplitSentences_Empty(t *testing.T) {
	assert.Empty(t, SplitSentences(""), "empty text yields no sentences")
	assert.Empty(t, SplitSentences("   "), "whitespace-only text yields no sentences")
}

func TestScore_CountsContainedTerms(t *testing.T) {
	score := Score("ROS 2 is a flexible framework", "what is ROS")
	// "what" misses, "is" and "ros" hit.
	assert.Equal(t, 2, score)
}

func TestScore_CaseFolded(t *testing.T) {
	assert.Equal(t, 1, Score("THE ROBOT MOVES", "robot"),
		"matching must be case-insensitive")
}

func TestScore_EmptyQuery(t *testing.T) {
	assert.Equal(t, 0, Score("anything at all", ""))
}

func TestScoreAndSelect_PicksHighestScoring(t *testing.T) {
	text := "Cats sleep a lot. Robots use ROS middleware for robot control. The weather is nice."
	result := ScoreAndSelect(text, "robot ROS", 1)
	assert.Equal(t, "Robots use ROS middleware for robot control.", result,
		"the sentence matching both terms should win")
}

func TestScoreAndSelect_NeverExceedsCap(t *testing.T) {
	text := "robot one. robot two. robot three. robot four."
	result := ScoreAndSelect(text, "robot", 2)
	assert.Equal(t, 2, len(strings.Split(result, ". ")),
		"must keep at most maxSentences sentences")
}

func TestScoreAndSelect_DiscardsZeroScores(t *testing.T) {
	text := "Nothing relevant here. Still nothing."
	assert.Equal(t, "", ScoreAndSelect(text, "quaternion", 3),
		"no sentence scores above zero, so the result must be empty")
}

func TestScoreAndSelect_StableAmongTies(t *testing.T) {
	text := "robot alpha. robot beta. robot gamma."
	result := ScoreAndSelect(text, "robot", 2)
	assert.Equal(t, "robot alpha. robot beta.", result,
		"equal scores must preserve original sentence order")
}

func TestScoreAndSelect_Deterministic(t *testing.T) {
	text := "Robots use sensors. Sensors feed planners. Planners drive motors."
	first := ScoreAndSelect(text, "sensors planners", 2)
	second := ScoreAndSelect(text, "sensors planners", 2)
	assert.Equal(t, first, second, "identical inputs must yield identical output")
	assert.NotEmpty(t, first)
}

func TestScoreAndSelect_TrailingPeriod(t *testing.T) {
	result := ScoreAndSelect("Robots move!", "robots", 3)
	assert.Equal(t, "Robots move.", result,
		"survivors are rejoined with a trailing period regardless of original punctuation")
}

func TestScoreAndSelect_NonPositiveCap(t *testing.T) {
	assert.Equal(t, "", ScoreAndSelect("Robots move.", "robots", 0))
	assert.Equal(t, "", ScoreAndSelect("Robots move.", "robots", -1))
}
