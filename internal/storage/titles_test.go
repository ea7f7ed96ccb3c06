// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/efgfdsdfdf/edutrack/internal/model"
)

func TestGenerateTitle(t *testing.T) {
	tests := []struct {
		name string
		msgs []model.Message
		want string
	}{
		{"no messages", nil, "Study Session"},
		{"only assistant", []model.Message{model.NewAssistantMessage("hello")}, "Study Session"},
		{"math", []model.Message{model.NewUserMessage("a", "Solve this Algebra problem", nil)}, "Study: Math"},
		{"programming", []model.Message{model.NewUserMessage("a", "Write Python please", nil)}, "Study: Programming"},
		{"first topic wins", []model.Message{model.NewUserMessage("a", "biology exam tomorrow", nil)}, "Study: Science"},
		{"short fallback", []model.Message{model.NewUserMessage("a", "Hi there", nil)}, "Hi there"},
		{
			"five words cut to thirty",
			[]model.Message{model.NewUserMessage("a", "Tell me about Renaissance Florentine painters quickly", nil)},
			"Tell me about Renaissance Flor...",
		},
		{
			"uses first user message",
			[]model.Message{
				model.NewAssistantMessage("welcome"),
				model.NewUserMessage("a", "Hi there", nil),
				model.NewUserMessage("a", "math", nil),
			},
			"Hi there",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateTitle(tt.msgs))
		})
	}
}

func TestIsDefaultTitle(t *testing.T) {
	assert.True(t, IsDefaultTitle("New Chat"))
	assert.True(t, IsDefaultTitle("Loading..."))
	assert.True(t, IsDefaultTitle("Chat 09:30"))
	assert.False(t, IsDefaultTitle("Chat"))
	assert.False(t, IsDefaultTitle("Study: Math"))
}

func TestGenerateTitle_SubstringMatch(t *testing.T) {
	// Keywords match inside words, so "photosynthesis" hits "photo".
	msgs := []model.Message{model.NewUserMessage("a", "Explain photosynthesis", nil)}
	assert.Equal(t, "Study: Document", GenerateTitle(msgs))
}
