// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/ui/styles"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// =============================================================================
// CHAT LIST
// =============================================================================

// ChatList is the overlay listing saved chats.
type ChatList struct {
	Chats   []model.ChatSummary
	Current string
	Cursor  int

	// Now is used for relative times; zero means time.Now.
	Now time.Time
}

// NewChatList opens the list with the current chat selected.
func NewChatList(chats []model.ChatSummary, current string) *ChatList {
	l := &ChatList{Chats: chats, Current: current}
	for i, c := range chats {
		if c.ID == current {
			l.Cursor = i
		}
	}
	return l
}

// Move shifts the selection by delta, clamped to the list.
func (l *ChatList) Move(delta int) {
	l.Cursor += delta
	if l.Cursor >= len(l.Chats) {
		l.Cursor = len(l.Chats) - 1
	}
	if l.Cursor < 0 {
		l.Cursor = 0
	}
}

// Selected returns the highlighted chat.
func (l *ChatList) Selected() (model.ChatSummary, bool) {
	if l.Cursor < 0 || l.Cursor >= len(l.Chats) {
		return model.ChatSummary{}, false
	}
	return l.Chats[l.Cursor], true
}

// Remove drops a chat from the list after it was deleted.
func (l *ChatList) Remove(id string) {
	out := l.Chats[:0]
	for _, c := range l.Chats {
		if c.ID != id {
			out = append(out, c)
		}
	}
	l.Chats = out
	l.Move(0)
}

// View renders the list in a box of the given size.
func (l *ChatList) View(theme *styles.Theme, width, height int) string {
	now := l.Now
	if now.IsZero() {
		now = time.Now()
	}
	inner := width - theme.Overlay.GetHorizontalFrameSize()
	if inner < 20 {
		inner = 20
	}

	var b strings.Builder
	b.WriteString(theme.OverlayTitle.Render(fmt.Sprintf("Chats (%d)", len(l.Chats))))
	b.WriteString("\n")
	if len(l.Chats) == 0 {
		b.WriteString(theme.Muted.Render("No saved chats"))
	}

	rows := height - 6
	if rows < 3 {
		rows = 3
	}
	start := 0
	if l.Cursor >= rows {
		start = l.Cursor - rows + 1
	}
	for i := start; i < len(l.Chats) && i < start+rows; i++ {
		c := l.Chats[i]
		marker := "  "
		if c.ID == l.Current {
			marker = "* "
		}
		meta := fmt.Sprintf(" %d msgs, %s", c.MessageCount, humanize.RelTime(c.Timestamp, now, "ago", "from now"))
		titleRoom := inner - len(marker) - len(meta)
		line := marker + padRight(util.TruncateWidth(c.Title, titleRoom), titleRoom) + meta
		if i == l.Cursor {
			b.WriteString(theme.ListSelected.Render(line))
		} else {
			b.WriteString(theme.ListItem.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString(theme.Muted.Render("enter open | d delete | esc close"))
	return theme.Overlay.Width(width).Render(b.String())
}
