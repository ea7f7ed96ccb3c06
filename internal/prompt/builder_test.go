// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/transport"
)

type fakeNotes struct {
	notes []model.Note
	err   error
	calls int
}

func (f *fakeNotes) List(ctx context.Context) ([]model.Note, error) {
	f.calls++
	return f.notes, f.err
}

func conversation(n int) []model.Message {
	var msgs []model.Message
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			msgs = append(msgs, model.NewUserMessage("alice", fmt.Sprintf("q%d", i), nil))
		} else {
			msgs = append(msgs, model.NewAssistantMessage(fmt.Sprintf("a%d", i)))
		}
	}
	return msgs
}

func TestBuild_SystemHistoryAndUser(t *testing.T) {
	b := NewBuilder(nil, nil)
	history := conversation(14)
	history = append(history[:3], append([]model.Message{model.NewSystemMessage("dialog")}, history[3:]...)...)

	res := b.Build(context.Background(), Input{History: history, Text: "Explain photosynthesis"})

	require.Len(t, res.Messages, 12)
	assert.Equal(t, "system", res.Messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, res.Messages[0].Content)
	assert.Equal(t, transport.ChatMessage{Role: "user", Content: "q4"}, res.Messages[1])
	assert.Equal(t, transport.ChatMessage{Role: "assistant", Content: "a13"}, res.Messages[10])
	assert.Equal(t, transport.ChatMessage{Role: "user", Content: "Explain photosynthesis"}, res.Messages[11])
	for _, m := range res.Messages[1:] {
		assert.NotEqual(t, "dialog", m.Content)
	}
	assert.False(t, res.NotesContext)
}

func TestBuild_CustomConfig(t *testing.T) {
	b := NewBuilder(&Config{SystemPrompt: "be brief", HistoryWindow: 2}, nil)
	res := b.Build(context.Background(), Input{History: conversation(6), Text: "next"})

	require.Len(t, res.Messages, 4)
	assert.Equal(t, "be brief", res.Messages[0].Content)
	assert.Equal(t, "q4", res.Messages[1].Content)
	assert.Equal(t, "a5", res.Messages[2].Content)
}

func TestAsksAboutNotes(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Can you summarize chapter 3?", true},
		{"make FLASHCARDS please", true},
		{"what do my Notes say", true},
		{"Explain photosynthesis", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, AsksAboutNotes(tt.text))
		})
	}
}

func TestBuild_AvailableNotes(t *testing.T) {
	src := &fakeNotes{}
	for i := 0; i < 7; i++ {
		n := model.NewNote(fmt.Sprintf("N%d", i), strings.Repeat("c", 250))
		n.Timestamp = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
		src.notes = append(src.notes, n)
	}
	src.notes[0].Tags = []string{"bio", "exam"}

	b := NewBuilder(&Config{Notes: src}, nil)
	res := b.Build(context.Background(), Input{Text: "summarize my notes"})

	assert.True(t, res.NotesContext)
	assert.Contains(t, res.UserContent, "**USER'S AVAILABLE NOTES:**")
	assert.Contains(t, res.UserContent, "**NOTE 1: N0**")
	assert.Contains(t, res.UserContent, "Tags: bio, exam")
	assert.Contains(t, res.UserContent, "Tags: No tags")
	assert.Contains(t, res.UserContent, "Created: 2026-01-02")
	assert.Contains(t, res.UserContent, "Preview: "+strings.Repeat("c", 200)+"...")
	assert.Contains(t, res.UserContent, "**NOTE 5: N4**")
	assert.NotContains(t, res.UserContent, "**NOTE 6")
	assert.Contains(t, res.UserContent, "... and 2 more notes available.")
}

func TestBuild_AvailableNotesSkipped(t *testing.T) {
	src := &fakeNotes{notes: []model.Note{model.NewNote("N", "c")}}
	b := NewBuilder(&Config{Notes: src}, nil)

	note := model.NewNote("Attached", "text").Attachment()
	res := b.Build(context.Background(), Input{Text: "summarize this note", Attachments: []model.Attachment{note}})
	assert.True(t, res.NotesContext)
	assert.NotContains(t, res.UserContent, "AVAILABLE NOTES")
	assert.Equal(t, 0, src.calls)

	failing := NewBuilder(&Config{Notes: &fakeNotes{err: errors.New("disk")}}, nil)
	res = failing.Build(context.Background(), Input{Text: "my notes"})
	assert.Equal(t, "my notes", res.UserContent)
}

// =============================================================================
// ATTACHMENT CONTEXT TESTS
// =============================================================================

func analyzedFile(name, mime string) model.Attachment {
	a := model.NewAttachment(model.KindFile, name)
	a.MimeType = mime
	a.Analyzed = true
	a.Analysis = "analysis of " + name
	return a
}

func TestAttachmentContext_NotesAndFile(t *testing.T) {
	note := model.NewNote("Week 1", "cells are small").Attachment()
	file := analyzedFile("lab.pdf", "application/pdf")
	file.AnalysisText = strings.Repeat("t", 600)
	file.Description = "lab report"

	got := AttachmentContext([]model.Attachment{note, file}, model.FileModeNone)

	assert.True(t, strings.HasPrefix(got, "\n\n**ATTACHMENTS PROVIDED BY USER:**\n"))
	assert.Contains(t, got, "**NOTE 1: Week 1**\n\ncells are small\n")
	assert.Contains(t, got, "**FILE 2: lab.pdf**\nType: Document\n")
	assert.Contains(t, got, "**AI ANALYSIS:**\nanalysis of lab.pdf\n")
	assert.Contains(t, got, "**EXTRACTED CONTENT (preview):**\n"+strings.Repeat("t", 500)+"...\n")
	assert.NotContains(t, got, strings.Repeat("t", 501))
	assert.Contains(t, got, "Description: lab report\n")
	assert.Empty(t, AttachmentContext(nil, model.FileModeJoin))
}

func TestAttachmentContext_FileModes(t *testing.T) {
	a := analyzedFile("a.pdf", "application/pdf")
	photo := model.NewAttachment(model.KindPhoto, "b.png")
	photo.Analysis = "analysis of b.png"
	atts := []model.Attachment{a, photo}

	separate := AttachmentContext(atts, model.FileModeSeparate)
	assert.Contains(t, separate, "**FILE 1: a.pdf**")
	assert.Contains(t, separate, "**FILE 2: b.png**\nType: Image")
	assert.Contains(t, separate, "treat these 2 files separately")
	assert.NotContains(t, separate, "COMBINED")

	join := AttachmentContext(atts, model.FileModeJoin)
	assert.Contains(t, join, "**COMBINED FILES (2): a.pdf, b.png**")
	assert.Contains(t, join, "### a.pdf (Document)")
	assert.Contains(t, join, "### b.png (Image)")
	assert.Contains(t, join, "analysis of b.png")
	assert.NotContains(t, join, "**FILE 1")
	assert.Equal(t, 1, strings.Count(join, "\n---\n")/2)

	single := AttachmentContext([]model.Attachment{a}, model.FileModeJoin)
	assert.Contains(t, single, "**FILE 1: a.pdf**")
	assert.NotContains(t, single, "COMBINED")
}

func TestWebContext(t *testing.T) {
	assert.Empty(t, WebContext(nil))

	got := WebContext([]transport.SearchResult{
		{Title: "Spaced repetition", Snippet: "Review at intervals", Source: "Journal", URL: "#sr"},
		{Snippet: "no title"},
	})
	assert.Contains(t, got, "**WEB RESULTS")
	assert.Contains(t, got, "1. Spaced repetition (Journal)\nReview at intervals\n#sr\n")
	assert.Contains(t, got, "2. Untitled\nno title\n")
}

func TestBuild_WebResultsAppended(t *testing.T) {
	b := NewBuilder(nil, nil)
	res := b.Build(context.Background(), Input{
		Text:       "study tips",
		WebResults: []transport.SearchResult{{Title: "Pomodoro"}},
	})
	assert.True(t, strings.HasPrefix(res.UserContent, "study tips"))
	assert.Contains(t, res.UserContent, "1. Pomodoro")
}
