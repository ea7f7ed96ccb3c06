// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports chats to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a chat to Markdown.
func (e *MarkdownExporter) Export(t Transcript) ([]byte, error) {
	if len(t.Messages) == 0 {
		return nil, ErrEmptyChat
	}

	var sb strings.Builder
	created := t.Messages[0].CreatedAt
	if !t.Chat.Timestamp.IsZero() && created.IsZero() {
		created = t.Chat.Timestamp
	}

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(t.Chat.Title))
		fmt.Fprintf(&sb, "user: %s\n", escapeYAML(t.User))
		fmt.Fprintf(&sb, "chat: %s\n", t.Chat.ID)
		fmt.Fprintf(&sb, "date: %s\n", created.Format(time.RFC3339))
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: edutrack\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Chat.Title))

	if e.options.IncludeMetadata {
		sb.WriteString("## Chat Information\n\n")
		fmt.Fprintf(&sb, "- **Student**: %s\n", t.User)
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(created))
		if !t.Chat.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "- **Last Saved**: %s\n", formatTimestamp(t.Chat.Timestamp))
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(t.Messages))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	for i, msg := range t.Messages {
		label := e.formatRoleLabel(msg)
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if content := strings.TrimSpace(msg.Content); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n\n")
		}
		if att := e.formatAttachments(msg.Attachments); att != "" {
			sb.WriteString(att)
			sb.WriteString("\n")
		}
		if note := e.formatState(msg); note != "" {
			sb.WriteString(note)
			sb.WriteString("\n\n")
		}

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from edutrack on %s*\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func (e *MarkdownExporter) formatRoleLabel(msg model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		if msg.Edited {
			return "[You] (edited)"
		}
		return "[You]"
	case model.RoleAssistant:
		if msg.FromBackground {
			return "[Assistant] (from background)"
		}
		return "[Assistant]"
	case model.RoleSystem:
		return "[System]"
	case "":
		return "Unknown"
	default:
		runes := []rune(string(msg.Role))
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

// formatAttachments lists attachments, one bullet each.
func (e *MarkdownExporter) formatAttachments(atts []model.Attachment) string {
	if len(atts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("**Attachments**:\n\n")
	for _, a := range atts {
		switch {
		case a.Kind == model.KindNote:
			fmt.Fprintf(&sb, "- Note: %s\n", escapeMarkdown(a.Label()))
		case a.Size > 0:
			fmt.Fprintf(&sb, "- %s: `%s` (%s)\n", kindName(a), a.Label(), humanize.Bytes(uint64(a.Size)))
		default:
			fmt.Fprintf(&sb, "- %s: `%s`\n", kindName(a), a.Label())
		}
		if a.Description != "" {
			fmt.Fprintf(&sb, "  - %s\n", a.Description)
		}
	}
	return sb.String()
}

func kindName(a model.Attachment) string {
	if a.IsImage() {
		return "Photo"
	}
	return "File"
}

func (e *MarkdownExporter) formatState(msg model.Message) string {
	switch {
	case msg.Role != model.RoleUser:
		return ""
	case msg.Failed || msg.State == model.StateFailed:
		return "<sub>Not delivered</sub>"
	case msg.State == model.StateBackgrounded:
		return "<sub>Still processing when exported</sub>"
	default:
		return ""
	}
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that break headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes values holding YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
