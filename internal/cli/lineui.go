// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/render"
	"github.com/efgfdsdfdf/edutrack/internal/storage"
	"github.com/efgfdsdfdf/edutrack/internal/typing"
)

// =============================================================================
// LINE UI
// =============================================================================

// lineUI prints controller callbacks as lines. Replies shown from the
// background are printed when the message list changes; foreground replies
// are printed by lineRenderer.
type lineUI struct {
	out    io.Writer
	quiet  bool
	store  *storage.MessageStore
	md     *render.Markdown
	prompt func(question string) (string, error)

	mu      sync.Mutex
	seen    map[string]bool
	choice  string
	files   int
	lastLbl string
}

func newLineUI(out io.Writer, store *storage.MessageStore, md *render.Markdown, quiet bool) *lineUI {
	u := &lineUI{out: out, quiet: quiet, store: store, md: md, seen: make(map[string]bool)}
	u.markSeen()
	return u
}

// markSeen records every message of the open chat as printed.
func (u *lineUI) markSeen() {
	u.mu.Lock()
	defer u.mu.Unlock()
	clear(u.seen)
	for _, m := range u.store.Snapshot() {
		u.seen[m.ID] = true
	}
}

func (u *lineUI) Toast(level delivery.ToastLevel, text string) {
	if u.quiet && level < delivery.ToastWarning {
		return
	}
	fmt.Fprintln(u.out, RenderToast(level, text))
}

// ConfirmReconnect asks on the terminal; without a prompt it declines.
func (u *lineUI) ConfirmReconnect(context.Context) bool {
	if u.prompt == nil {
		return false
	}
	answer, err := u.prompt("Backend is not connected. Try to reconnect first? [y/N] ")
	if err != nil {
		return false
	}
	ok, _ := ParseBoolString(answer)
	return ok
}

func (u *lineUI) AskFileMode(messageID string, files int) {
	u.mu.Lock()
	u.choice, u.files = messageID, files
	u.mu.Unlock()
}

// takeChoice returns the message waiting for a file mode, if any.
func (u *lineUI) takeChoice() (string, int, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	id, files := u.choice, u.files
	u.choice, u.files = "", 0
	return id, files, id != ""
}

func (u *lineUI) Thinking(on bool, label string) {
	if !on || u.quiet {
		return
	}
	u.mu.Lock()
	repeat := label == u.lastLbl
	u.lastLbl = label
	u.mu.Unlock()
	if !repeat {
		fmt.Fprintln(u.out, MutedStyle.Render(label))
	}
}

func (u *lineUI) MessagesChanged() {
	var show []model.Message
	u.mu.Lock()
	for _, m := range u.store.Snapshot() {
		if u.seen[m.ID] {
			continue
		}
		u.seen[m.ID] = true
		if m.Role == model.RoleAssistant && m.FromBackground {
			show = append(show, m)
		}
	}
	u.lastLbl = ""
	u.mu.Unlock()

	for _, m := range show {
		fmt.Fprintln(u.out, AssistantStyle.Render("Assistant")+MutedStyle.Render(" (from background)"))
		fmt.Fprintln(u.out, strings.TrimRight(u.md.Render(m.Content), "\n"))
	}
}

func (u *lineUI) BackgroundStarted(index int, _ string) {
	u.Toast(delivery.ToastInfo, fmt.Sprintf("Message #%d is processing in the background. /show when it is ready", index+1))
}

func (u *lineUI) BackgroundFailed(index int, _ string, reason string) {
	u.Toast(delivery.ToastError, fmt.Sprintf("Background send #%d failed: %s. /retry %d", index+1, reason, index+1))
}

func (u *lineUI) AnalysisProgress(att model.Attachment, status delivery.AnalysisStatus, detail string) {
	if u.quiet {
		return
	}
	switch status {
	case delivery.AnalysisRunning:
		fmt.Fprintln(u.out, MutedStyle.Render("Analyzing "+att.Label()+"..."))
	case delivery.AnalysisFailed:
		fmt.Fprintln(u.out, WarningStyle.Render("[!]")+" Could not analyze "+att.Label()+": "+detail)
	}
}

// =============================================================================
// RENDERER
// =============================================================================

// lineRenderer prints a reply, typing it out when animate is set. It
// blocks until the reply is fully shown.
type lineRenderer struct {
	out     io.Writer
	sched   *typing.Scheduler
	md      *render.Markdown
	ui      *lineUI
	animate bool
	label   bool
	log     *zap.Logger
}

func (r *lineRenderer) Render(ctx context.Context, reply model.Message) error {
	if r.ui != nil {
		r.ui.mu.Lock()
		r.ui.seen[reply.ID] = true
		r.ui.mu.Unlock()
	}
	if r.label {
		fmt.Fprintln(r.out, AssistantStyle.Render("Assistant"))
	}

	markup := strings.TrimRight(r.md.Render(reply.Content), "\n")
	if !r.animate || r.sched == nil {
		_, err := fmt.Fprintln(r.out, markup)
		return err
	}
	err := r.sched.Type(ctx, typing.NewWriterTarget(r.out), markup)
	if errors.Is(err, typing.ErrBusy) {
		r.log.Debug("typer busy, printing whole reply")
		_, err = fmt.Fprintln(r.out, markup)
	}
	return err
}

var (
	_ delivery.UI       = (*lineUI)(nil)
	_ delivery.Renderer = (*lineRenderer)(nil)
)
