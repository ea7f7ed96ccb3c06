// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/render"
	"github.com/efgfdsdfdf/edutrack/internal/ui/styles"
)

func TestToastDurations(t *testing.T) {
	now := time.Now()
	tests := []struct {
		level delivery.ToastLevel
		want  time.Duration
	}{
		{delivery.ToastInfo, DefaultToastDuration},
		{delivery.ToastSuccess, DefaultToastDuration},
		{delivery.ToastWarning, WarningToastDuration},
		{delivery.ToastError, ErrorToastDuration},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			toast := NewToast(1, tt.level, "hello", now)
			assert.Equal(t, tt.want, toast.Duration)
			assert.False(t, toast.Expired(now.Add(tt.want-time.Millisecond)))
			assert.True(t, toast.Expired(now.Add(tt.want)))
		})
	}
}

func TestToastView(t *testing.T) {
	theme := styles.NewTheme()
	out := NewToast(1, delivery.ToastError, "Failed to send.", time.Now()).View(theme, 0)
	assert.Contains(t, out, "[X] Failed to send.")
}

func TestHeaderView(t *testing.T) {
	theme := styles.NewTheme()
	theme.SetSize(100, 30)
	h := Header{
		Title:      "Photosynthesis",
		User:       "alice",
		Status:     connection.StatusOffline,
		WebSearch:  true,
		Background: true,
		Pending:    2,
		Width:      100,
	}
	out := h.View(theme)
	assert.Contains(t, out, "edutrack")
	assert.Contains(t, out, "Photosynthesis")
	assert.Contains(t, out, "[OFFLINE]")
	assert.Contains(t, out, "2 running")
}

func TestChatListNavigation(t *testing.T) {
	now := time.Now()
	chats := []model.ChatSummary{
		{ID: "a", Title: "Cells", Timestamp: now.Add(-time.Hour), MessageCount: 4},
		{ID: "b", Title: "Osmosis", Timestamp: now.Add(-2 * time.Hour), MessageCount: 2},
		{ID: "c", Title: "Atoms", Timestamp: now.Add(-48 * time.Hour)},
	}
	l := NewChatList(chats, "b")
	assert.Equal(t, 1, l.Cursor)

	l.Move(5)
	sel, ok := l.Selected()
	require.True(t, ok)
	assert.Equal(t, "c", sel.ID)

	l.Move(-10)
	sel, _ = l.Selected()
	assert.Equal(t, "a", sel.ID)

	l.Now = now
	out := l.View(styles.NewTheme(), 60, 20)
	assert.Contains(t, out, "Chats (3)")
	assert.Contains(t, out, "Osmosis")
	assert.Contains(t, out, "1 hour ago")

	l.Remove("a")
	require.Len(t, l.Chats, 2)
	sel, _ = l.Selected()
	assert.Equal(t, "b", sel.ID)

	l.Remove("b")
	l.Remove("c")
	_, ok = l.Selected()
	assert.False(t, ok)
}

func TestCodeView(t *testing.T) {
	blocks := render.ExtractCodeBlocks("x\n```go\nfunc main() {}\n```\ntext\n```python\nprint(1)\nprint(2)\n```\n")
	require.Len(t, blocks, 2)

	v := NewCodeView(blocks)
	v.Prev()
	assert.Equal(t, 1, v.Cursor)
	v.Next()
	assert.Equal(t, 0, v.Cursor)

	v.Next()
	v.Scroll(10)
	assert.Equal(t, 1, v.Offset)
	v.Scroll(-5)
	assert.Zero(t, v.Offset)

	out := v.View(styles.NewTheme(), 60, 20)
	assert.Contains(t, out, "#2 python")

	empty := NewCodeView(nil)
	assert.Contains(t, empty.View(styles.NewTheme(), 60, 20), "No code blocks")
}
