// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package delivery

import (
	"context"

	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// ToastLevel is the severity of a transient notification.
type ToastLevel int

const (
	ToastInfo ToastLevel = iota
	ToastSuccess
	ToastWarning
	ToastError
)

func (l ToastLevel) String() string {
	switch l {
	case ToastSuccess:
		return "success"
	case ToastWarning:
		return "warning"
	case ToastError:
		return "error"
	default:
		return "info"
	}
}

// AnalysisStatus is reported for each attachment being analysed.
type AnalysisStatus string

const (
	AnalysisRunning  AnalysisStatus = "analyzing"
	AnalysisComplete AnalysisStatus = "complete"
	AnalysisFailed   AnalysisStatus = "failed"
)

// UI is what the controller needs from the presentation layer. Methods
// may be called from any goroutine.
type UI interface {
	Toast(level ToastLevel, text string)

	// ConfirmReconnect asks whether to try connecting before a send while
	// the backend is not connected.
	ConfirmReconnect(ctx context.Context) bool

	// AskFileMode asks how several files of one message should be handled.
	// The answer comes back through Controller.ChooseFileMode.
	AskFileMode(messageID string, files int)

	// Thinking shows or hides the waiting indicator of a foreground send.
	Thinking(on bool, label string)

	// MessagesChanged asks for the message list to be redrawn.
	MessagesChanged()

	// BackgroundStarted marks a message as processing in the background.
	BackgroundStarted(index int, messageID string)

	// BackgroundFailed offers a retry for a failed background send.
	BackgroundFailed(index int, messageID string, reason string)

	AnalysisProgress(att model.Attachment, status AnalysisStatus, detail string)
}

// Renderer shows a freshly delivered reply, typically by typing it out.
// It returns when the reply is fully shown.
type Renderer interface {
	Render(ctx context.Context, reply model.Message) error
}

// NopUI ignores every call and declines to reconnect.
type NopUI struct{}

func (NopUI) Toast(ToastLevel, string)                                  {}
func (NopUI) ConfirmReconnect(context.Context) bool                     { return false }
func (NopUI) AskFileMode(string, int)                                   {}
func (NopUI) Thinking(bool, string)                                     {}
func (NopUI) MessagesChanged()                                          {}
func (NopUI) BackgroundStarted(int, string)                             {}
func (NopUI) BackgroundFailed(int, string, string)                      {}
func (NopUI) AnalysisProgress(model.Attachment, AnalysisStatus, string) {}

type nopRenderer struct{}

func (nopRenderer) Render(context.Context, model.Message) error { return nil }
