// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/efgfdsdfdf/edutrack/internal/background"
	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// =============================================================================
// CONTROLLER CALLBACKS
// =============================================================================

type toastMsg struct {
	level delivery.ToastLevel
	text  string
}

// confirmMsg asks the user whether to reconnect. The answer goes to reply.
type confirmMsg struct {
	reply chan bool
}

type fileModeMsg struct {
	id    string
	files int
}

type thinkingMsg struct {
	on    bool
	label string
}

// refreshMsg asks for the message list to be redrawn.
type refreshMsg struct{}

type backgroundMsg struct {
	index  int
	id     string
	failed bool
	reason string
}

type analysisMsg struct {
	name   string
	status delivery.AnalysisStatus
	detail string
}

// =============================================================================
// TYPING
// =============================================================================

// typingMsg carries the revealed part of a reply.
type typingMsg struct {
	id    string
	text  string
	final bool
}

type scrollMsg struct{}

// =============================================================================
// BACKGROUND EVENTS
// =============================================================================

type statusMsg struct {
	status connection.Status
}

type notificationMsg struct {
	n background.Notification
}

type dictationMsg struct {
	text   string
	submit bool
	err    error
}

type externalChangeMsg struct{}

type toastTickMsg struct {
	id int
}

// =============================================================================
// COMMAND RESULTS
// =============================================================================

type commandDoneMsg struct {
	input string
	res   commands.Result
	err   error
}

type sendDoneMsg struct {
	text string
	atts []model.Attachment
	err  error
}

type foregroundDoneMsg struct {
	err error
}

type savedMsg struct {
	err error
}
