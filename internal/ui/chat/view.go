// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/ui/components"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

const (
	headerHeight = 1
	inputHeight  = 3
	// footer lines: toast or status line, staged line, help line
	footerHeight = 3
	typingCursor = "▌"
)

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.theme.SetSize(width, height)

	vh := height - headerHeight - inputHeight - footerHeight - 1
	if vh < 3 {
		vh = 3
	}
	if !m.ready {
		m.viewport = viewport.New(width, vh)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vh
	}
	m.input.SetWidth(width)

	if m.app.Markdown.Width() != width-2 {
		m.app.Markdown.SetWidth(width - 2)
		clear(m.rendered)
	}
}

// refresh redraws the conversation into the viewport, keeping the view
// pinned to the end when it was there.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()
	m.trackNewReplies()
	m.viewport.SetContent(m.renderMessages())
	if follow {
		m.viewport.GotoBottom()
	}
	m.typer.SetAtBottom(m.viewport.AtBottom())
}

// trackNewReplies hides replies that will be typed out.
func (m *Model) trackNewReplies() {
	now := time.Now()
	for _, msg := range m.app.Messages.Snapshot() {
		if m.known[msg.ID] {
			continue
		}
		m.known[msg.ID] = true
		if msg.Role == model.RoleAssistant && !msg.FromBackground {
			m.awaiting[msg.ID] = now
		}
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m *Model) renderMessages() string {
	msgs := m.app.Messages.Snapshot()
	if len(msgs) == 0 {
		return m.theme.Muted.Render("No messages yet. Say hello, or type /help.")
	}

	width := max(m.width-2, 20)
	var b strings.Builder
	for i, msg := range msgs {
		if _, hidden := m.awaiting[msg.ID]; hidden {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, i+1, width))
	}
	return b.String()
}

func (m *Model) renderMessage(msg model.Message, number, width int) string {
	t := m.theme
	num := t.Muted.Render(fmt.Sprintf("#%d", number))

	switch msg.Role {
	case model.RoleUser:
		label := t.UserLabel.Render("You") + " " + num
		if msg.Edited {
			label += t.Muted.Render(" (edited)")
		}
		lines := []string{label, t.UserBubble.Width(width).Render(msg.Content)}
		for _, a := range msg.Attachments {
			lines = append(lines, t.Attachment.Render("  + "+attachmentLine(a)))
		}
		if state := t.State(msg, number); state != "" {
			lines = append(lines, "  "+state)
		}
		return strings.Join(lines, "\n")

	case model.RoleAssistant:
		label := t.AssistantLabel.Render("Assistant") + " " + num
		if msg.FromBackground {
			label += t.Muted.Render(" (from background)")
		}
		body, typing := m.typed[msg.ID]
		if typing {
			body += t.TypingCursor.Render(typingCursor)
		} else {
			body = m.markup(msg)
		}
		return label + "\n" + t.AssistantBubble.Render(strings.TrimRight(body, "\n"))

	default:
		return t.SystemText.Width(width).Render(msg.Content)
	}
}

// markup returns the cached render of a reply.
func (m *Model) markup(msg model.Message) string {
	if r, ok := m.rendered[msg.ID]; ok && r.content == msg.Content {
		return r.markup
	}
	out := m.app.Markdown.Render(msg.Content)
	m.rendered[msg.ID] = renderedMarkup{content: msg.Content, markup: out}
	return out
}

func attachmentLine(a model.Attachment) string {
	s := string(a.Kind) + ": " + a.Label()
	if a.Size > 0 {
		s += " (" + humanize.Bytes(uint64(a.Size)) + ")"
	}
	if a.Description != "" {
		s += " " + a.Description
	}
	return s
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	header := components.Header{
		Title:      m.app.Messages.Title(),
		User:       m.app.Messages.User(),
		Status:     m.status,
		WebSearch:  m.app.Controller.WebSearch(),
		Background: m.app.Controller.BackgroundProcessing(),
		Pending:    len(m.app.Registry.Pending()),
		Width:      m.width,
	}.View(m.theme)

	body := m.viewport.View()
	switch {
	case m.overlay != overlayNone:
		body = m.overlayView()
	case m.confirm != nil:
		body = m.promptView("Backend is not connected. Try to reconnect before sending? [y/n]")
	case m.fileMode != nil:
		body = m.promptView(fmt.Sprintf("%d files attached. Send them [s]eparately or [j]oined into one?", m.fileMode.files))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.statusLine(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.stagedLine(),
		m.helpLine(),
	)
}

func (m Model) statusLine() string {
	switch {
	case m.toast != nil:
		return m.toast.View(m.theme, m.width)
	case m.listening:
		heard := m.interim
		if heard == "" {
			heard = "..."
		}
		return m.theme.StatusBar.Render(util.TruncateWidth("Listening: "+heard, m.width))
	case m.thinking:
		line := m.spinner.View() + " " + m.thinkLbl
		if m.analysis != "" {
			line += "  " + m.theme.Muted.Render(m.analysis)
		}
		return ansi.Truncate(m.theme.StatusBar.Render(line), m.width, "...")
	case m.app.Typing.Paused() && m.app.Typing.Active():
		return m.theme.StatusBar.Render("Typing paused. C-p to resume, C-x to show all")
	}
	return ""
}

func (m Model) stagedLine() string {
	if m.completion.Visible {
		var parts []string
		for i, c := range m.completion.Completions {
			s := c.Display
			if i == m.completion.Selected {
				s = m.theme.ListSelected.Render(s)
			}
			parts = append(parts, s)
		}
		return ansi.Truncate(strings.Join(parts, "  "), m.width, "...")
	}
	if s := m.env.Staged.Summary(); s != "" {
		return m.theme.Staged.Render(util.TruncateWidth(s, m.width))
	}
	return ""
}

func (m Model) helpLine() string {
	if m.theme.Compact() {
		return ""
	}
	return m.help.View(m.keys)
}

func (m Model) promptView(question string) string {
	box := m.theme.Prompt.Render(question)
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) overlayView() string {
	w := max(m.width-4, 20)
	h := max(m.viewport.Height-2, 3)

	var inner string
	switch m.overlay {
	case overlayChats:
		inner = m.chatList.View(m.theme, w, h)
	case overlayCode:
		inner = m.codeView.View(m.theme, w, h)
	case overlayText:
		inner = m.theme.OverlayTitle.Render(m.textTitle) + "\n" + m.textBody +
			"\n\n" + m.theme.Muted.Render("esc close")
	}
	return m.theme.Overlay.Width(w).MaxHeight(m.viewport.Height).Render(inner)
}

func (m Model) helpText() string {
	var b strings.Builder
	b.WriteString(m.registry.HelpText())
	b.WriteString("\n\nKeys\n")
	for _, group := range m.keys.FullHelp() {
		for _, k := range group {
			h := k.Help()
			fmt.Fprintf(&b, "  %s %s\n", m.theme.ShortcutKey.Width(12).Render(h.Key), m.theme.ShortcutDesc.Render(h.Desc))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
