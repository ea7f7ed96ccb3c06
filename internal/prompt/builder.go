// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/transport"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// DefaultSystemPrompt is sent first in every conversation.
const DefaultSystemPrompt = `You are a study assistant for students. Help with homework, study techniques, note organization, exam preparation and programming.

When the user attaches files, an analysis of each file is included with their message. Use it to give specific help. When several files are attached, follow the user's choice to treat them separately or together.

When the user attaches or asks about their notes, help them organize, summarize and study from them, and suggest study questions.`

const (
	// DefaultHistoryWindow is how many prior messages are sent.
	DefaultHistoryWindow = 10

	// extractPreview caps the extracted file text included per file.
	extractPreview = 500

	// maxAvailableNotes caps the saved notes listed when the user asks
	// about notes without attaching any.
	maxAvailableNotes = 5
	notePreview       = 200
)

// notesKeywords mark a message as being about the user's notes.
var notesKeywords = []string{
	"note", "notes", "my notes", "study notes", "lecture notes",
	"summary", "summarize", "flashcard", "flash cards",
}

// NotesSource lists the user's saved notes, newest first.
type NotesSource interface {
	List(ctx context.Context) ([]model.Note, error)
}

// =============================================================================
// BUILDER CONFIGURATION
// =============================================================================

// Config holds configuration for the prompt builder.
type Config struct {
	// SystemPrompt is the first message (default: DefaultSystemPrompt)
	SystemPrompt string

	// HistoryWindow is the number of prior messages kept (default: 10)
	HistoryWindow int

	// Notes is consulted when the user asks about notes without
	// attaching any. May be nil.
	Notes NotesSource
}

// Builder assembles chat requests. It is safe for concurrent use.
type Builder struct {
	systemPrompt  string
	historyWindow int
	notes         NotesSource
	log           *zap.Logger
}

// NewBuilder creates a builder, applying defaults for zero values.
func NewBuilder(config *Config, log *zap.Logger) *Builder {
	if config == nil {
		config = &Config{}
	}
	b := &Builder{
		systemPrompt:  config.SystemPrompt,
		historyWindow: config.HistoryWindow,
		notes:         config.Notes,
		log:           log,
	}
	if b.systemPrompt == "" {
		b.systemPrompt = DefaultSystemPrompt
	}
	if b.historyWindow <= 0 {
		b.historyWindow = DefaultHistoryWindow
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	return b
}

// =============================================================================
// BUILD
// =============================================================================

// Input is everything known about one send.
type Input struct {
	// History holds the messages before the one being sent, oldest first.
	History     []model.Message
	Text        string
	Attachments []model.Attachment
	FileMode    model.FileMode
	WebResults  []transport.SearchResult
}

// Result is the assembled request content.
type Result struct {
	Messages     []transport.ChatMessage
	NotesContext bool
	// UserContent is the final user message including all context.
	UserContent string
}

// Build assembles the message list for in.
func (b *Builder) Build(ctx context.Context, in Input) Result {
	msgs := make([]transport.ChatMessage, 0, b.historyWindow+2)
	msgs = append(msgs, transport.ChatMessage{Role: "system", Content: b.systemPrompt})
	msgs = append(msgs, History(in.History, b.historyWindow)...)

	notesCtx := AsksAboutNotes(in.Text)

	var sb strings.Builder
	sb.WriteString(in.Text)
	sb.WriteString(AttachmentContext(in.Attachments, in.FileMode))
	if notesCtx && !hasNote(in.Attachments) {
		sb.WriteString(b.availableNotes(ctx))
	}
	sb.WriteString(WebContext(in.WebResults))

	content := sb.String()
	msgs = append(msgs, transport.ChatMessage{Role: "user", Content: content})

	return Result{
		Messages:     msgs,
		NotesContext: notesCtx,
		UserContent:  content,
	}
}

// History maps the last window messages to chat roles. System notices are
// local only and are skipped before the window is applied.
func History(history []model.Message, window int) []transport.ChatMessage {
	var out []transport.ChatMessage
	for _, m := range history {
		switch m.Role {
		case model.RoleUser, model.RoleAssistant:
			if strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0 {
				continue
			}
			out = append(out, transport.ChatMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	if window > 0 && len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

// AsksAboutNotes reports whether text mentions notes, summaries or
// flashcards.
func AsksAboutNotes(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range notesKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasNote(atts []model.Attachment) bool {
	for _, a := range atts {
		if a.Kind == model.KindNote {
			return true
		}
	}
	return false
}

// availableNotes lists saved notes for a user who asked about notes
// without attaching any.
func (b *Builder) availableNotes(ctx context.Context) string {
	if b.notes == nil {
		return ""
	}
	notes, err := b.notes.List(ctx)
	if err != nil {
		b.log.Warn("could not load notes for context", zap.Error(err))
		return ""
	}
	if len(notes) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\n**USER'S AVAILABLE NOTES:**\n")
	for i, n := range notes {
		if i >= maxAvailableNotes {
			break
		}
		tags := "No tags"
		if len(n.Tags) > 0 {
			tags = strings.Join(n.Tags, ", ")
		}
		sb.WriteString("\n---\n")
		fmt.Fprintf(&sb, "**NOTE %d: %s**\n", i+1, titleOr(n.Title, "Untitled Note"))
		fmt.Fprintf(&sb, "Tags: %s\n", tags)
		fmt.Fprintf(&sb, "Created: %s\n", n.Timestamp.Format("2006-01-02"))
		fmt.Fprintf(&sb, "Preview: %s\n", util.Truncate(n.Content, notePreview))
		sb.WriteString("\n---\n")
	}
	if len(notes) > maxAvailableNotes {
		fmt.Fprintf(&sb, "\n... and %d more notes available.\n", len(notes)-maxAvailableNotes)
	}
	return sb.String()
}

func titleOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
