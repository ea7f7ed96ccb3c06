// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

func TestBadgeKeepsLabel(t *testing.T) {
	theme := NewTheme()
	for _, s := range []connection.Status{
		connection.StatusConnected,
		connection.StatusRetrying,
		connection.StatusDisconnected,
		connection.StatusOffline,
		connection.StatusMock,
	} {
		t.Run(string(s), func(t *testing.T) {
			assert.Contains(t, theme.Badge(s), s.Badge())
		})
	}
}

func TestToastIcon(t *testing.T) {
	assert.Equal(t, "[OK]", ToastIcon(delivery.ToastSuccess))
	assert.Equal(t, "[!]", ToastIcon(delivery.ToastWarning))
	assert.Equal(t, "[X]", ToastIcon(delivery.ToastError))
	assert.Equal(t, "[i]", ToastIcon(delivery.ToastInfo))
}

func TestStateNote(t *testing.T) {
	theme := NewTheme()
	tests := []struct {
		name string
		msg  model.Message
		want string
	}{
		{"failed", model.Message{State: model.StateFailed}, "/retry 3"},
		{"legacy failed", model.Message{Failed: true}, "Failed to send"},
		{"background", model.Message{State: model.StateBackgrounded}, "Processing in background"},
		{"sending", model.Message{State: model.StateSending}, "sending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, theme.State(tt.msg, 3), tt.want)
		})
	}
	assert.Empty(t, theme.State(model.Message{State: model.StateDelivered}, 1))
}

func TestCompact(t *testing.T) {
	theme := NewTheme()
	assert.False(t, theme.Compact())
	theme.SetSize(50, 20)
	assert.True(t, theme.Compact())
	theme.SetSize(120, 40)
	assert.False(t, theme.Compact())
}
