// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// Bridge forwards controller callbacks to the running program as messages.
// It is safe for concurrent use. Before Attach every call is dropped and
// reconnect prompts are declined.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewBridge returns an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach sets the function that delivers messages, usually Program.Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *Bridge) post(msg tea.Msg) bool {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send == nil {
		return false
	}
	send(msg)
	return true
}

func (b *Bridge) Toast(level delivery.ToastLevel, text string) {
	b.post(toastMsg{level: level, text: text})
}

// ConfirmReconnect shows the reconnect prompt and waits for the answer.
func (b *Bridge) ConfirmReconnect(ctx context.Context) bool {
	reply := make(chan bool, 1)
	if !b.post(confirmMsg{reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

func (b *Bridge) AskFileMode(messageID string, files int) {
	b.post(fileModeMsg{id: messageID, files: files})
}

func (b *Bridge) Thinking(on bool, label string) {
	b.post(thinkingMsg{on: on, label: label})
}

func (b *Bridge) MessagesChanged() {
	b.post(refreshMsg{})
}

func (b *Bridge) BackgroundStarted(index int, messageID string) {
	b.post(backgroundMsg{index: index, id: messageID})
}

func (b *Bridge) BackgroundFailed(index int, messageID string, reason string) {
	b.post(backgroundMsg{index: index, id: messageID, failed: true, reason: reason})
}

func (b *Bridge) AnalysisProgress(att model.Attachment, status delivery.AnalysisStatus, detail string) {
	b.post(analysisMsg{name: att.Label(), status: status, detail: detail})
}

var _ delivery.UI = (*Bridge)(nil)
