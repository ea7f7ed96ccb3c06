// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/audio"
	"github.com/efgfdsdfdf/edutrack/internal/background"
	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/presence"
	"github.com/efgfdsdfdf/edutrack/internal/render"
	"github.com/efgfdsdfdf/edutrack/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		m.app.Presence.RecordActivity()
		return m.handleKey(msg)

	case tea.FocusMsg:
		m.app.Presence.SetVisible(true)
		m.app.Monitor.OnVisible()
		m.app.Typing.Resume()
		return m, m.foregroundCmd()

	case tea.BlurMsg:
		m.app.Presence.SetVisible(false)
		m.app.Typing.Pause()
		return m, nil

	// Controller callbacks
	case toastMsg:
		return m, m.showToast(msg.level, msg.text)

	case confirmMsg:
		if m.confirm != nil {
			msg.reply <- false
			return m, nil
		}
		m.confirm = &msg
		return m, nil

	case fileModeMsg:
		m.fileMode = &msg
		return m, nil

	case thinkingMsg:
		m.thinking = msg.on
		m.thinkLbl = msg.label
		if msg.on {
			return m, m.spinner.Tick
		}
		m.analysis = ""
		return m, nil

	case refreshMsg:
		m.app.Presence.MarkDirty()
		m.refresh()
		return m, nil

	case backgroundMsg:
		if msg.failed {
			return m, m.showToast(delivery.ToastError,
				fmt.Sprintf("Background send #%d failed: %s. /retry %d", msg.index+1, msg.reason, msg.index+1))
		}
		return m, m.showToast(delivery.ToastInfo,
			fmt.Sprintf("Message #%d is processing in the background", msg.index+1))

	case analysisMsg:
		m.analysis = analysisLine(msg)
		return m, nil

	// Typing
	case typingMsg:
		m.applyTyping(msg)
		return m, nil

	case scrollMsg:
		m.viewport.GotoBottom()
		m.typer.SetAtBottom(true)
		return m, nil

	// Background events
	case statusMsg:
		m.status = msg.status
		return m, nil

	case notificationMsg:
		if msg.n.Status == background.TaskStatusFailed {
			m.app.Log.Debug("background task failed", zap.String("task", msg.n.TaskID), zap.String("error", msg.n.Error))
		}
		return m, nil

	case dictationMsg:
		return m.handleDictation(msg)

	case externalChangeMsg:
		m.resetKnown()
		m.refresh()
		return m, m.showToast(delivery.ToastInfo, "Chat updated from another window")

	case toastTickMsg:
		if m.toast != nil && m.toast.ID == msg.id {
			m.toast = nil
		}
		return m, nil

	// Command results
	case commandDoneMsg:
		return m.handleCommandDone(msg)

	case sendDoneMsg:
		return m.handleSendDone(msg)

	case foregroundDoneMsg:
		if msg.err != nil {
			return m, m.showToast(delivery.ToastWarning, "Could not check background replies: "+msg.err.Error())
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.app.Log.Warn("auto-save failed", zap.Error(msg.err))
		}
		return m, nil

	// Presence
	case presence.TickMsg:
		m.expireAwaiting(msg.Time)
		return m, m.app.Presence.HandleTick()

	case presence.AutoSaveMsg:
		return m, m.saveCmd()

	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		if m.confirm != nil {
			m.confirm.reply <- false
			m.confirm = nil
		}
		return m, tea.Quit
	}

	switch {
	case m.confirm != nil:
		return m.handleConfirmKey(msg)
	case m.fileMode != nil:
		return m.handleFileModeKey(msg)
	case m.overlay != overlayNone:
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Complete):
		m.complete()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.completion.Visible {
			m.completion.Clear()
			return m, nil
		}
		return m.submit()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		m.typer.SetAtBottom(m.viewport.AtBottom())
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		m.typer.SetAtBottom(m.viewport.AtBottom())
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m, m.commandCmd("/new")
	case key.Matches(msg, m.keys.ChatList):
		return m, m.commandCmd("/chats")
	case key.Matches(msg, m.keys.Retry):
		return m, m.commandCmd("/retry")
	case key.Matches(msg, m.keys.ShowBg):
		return m, m.commandCmd("/show")
	case key.Matches(msg, m.keys.WebSearch):
		return m, m.commandCmd("/web")
	case key.Matches(msg, m.keys.Background):
		return m, m.commandCmd("/background")
	case key.Matches(msg, m.keys.Dictate):
		return m, m.commandCmd("/mic")

	case key.Matches(msg, m.keys.PauseType):
		ty := m.app.Typing
		switch {
		case !ty.Active():
		case ty.Paused():
			ty.Resume()
		default:
			ty.Pause()
		}
		return m, nil

	case key.Matches(msg, m.keys.CancelType):
		m.app.Typing.Cancel()
		return m, nil

	case key.Matches(msg, m.keys.CodeBlocks):
		blocks := lastCodeBlocks(m.app.Messages.Snapshot())
		if len(blocks) == 0 {
			return m, m.showToast(delivery.ToastInfo, "No code blocks in the last reply")
		}
		m.codeView = components.NewCodeView(blocks)
		m.overlay = overlayCode
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.openText("Help", m.helpText())
		return m, nil
	}

	m.completion.Clear()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch strings.ToLower(msg.String()) {
	case "y", "enter":
		m.confirm.reply <- true
	case "n", "esc":
		m.confirm.reply <- false
	default:
		return m, nil
	}
	m.confirm = nil
	return m, nil
}

func (m Model) handleFileModeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var mode model.FileMode
	switch strings.ToLower(msg.String()) {
	case "s":
		mode = model.FileModeSeparate
	case "j":
		mode = model.FileModeJoin
	default:
		return m, nil
	}
	id := m.fileMode.id
	m.fileMode = nil
	ctl, ctx := m.app.Controller, m.ctx
	return m, func() tea.Msg {
		return sendDoneMsg{err: ctl.ChooseFileMode(ctx, id, mode)}
	}
}

func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	if k == "esc" || k == "q" {
		m.closeOverlay()
		return m, nil
	}

	switch m.overlay {
	case overlayChats:
		switch k {
		case "up", "k":
			m.chatList.Move(-1)
		case "down", "j":
			m.chatList.Move(1)
		case "enter":
			if c, ok := m.chatList.Selected(); ok {
				m.closeOverlay()
				return m, m.commandCmd("/load " + c.ID)
			}
		case "d", "delete":
			if c, ok := m.chatList.Selected(); ok {
				m.chatList.Remove(c.ID)
				return m, m.commandCmd("/delete " + c.ID)
			}
		}
	case overlayCode:
		switch k {
		case "right", "l", "tab":
			m.codeView.Next()
		case "left", "h", "shift+tab":
			m.codeView.Prev()
		case "up", "k":
			m.codeView.Scroll(-1)
		case "down", "j":
			m.codeView.Scroll(1)
		case "pgup":
			m.codeView.Scroll(-10)
		case "pgdown":
			m.codeView.Scroll(10)
		}
	case overlayText:
		if k == "enter" {
			m.closeOverlay()
		}
	}
	return m, nil
}

func (m *Model) openText(title, body string) {
	m.overlay = overlayText
	m.textTitle = title
	m.textBody = body
}

func (m *Model) closeOverlay() {
	m.overlay = overlayNone
	m.chatList = nil
	m.codeView = nil
	m.textTitle, m.textBody = "", ""
}

// complete fills in the next completion of the input.
func (m *Model) complete() {
	if !m.completion.Visible {
		m.compBase = m.input.Value()
		m.completion.Update(m.completer.Complete(m.compBase))
		if !m.completion.Visible {
			return
		}
	} else {
		m.completion.Next()
	}
	m.input.SetValue(applyCompletion(m.compBase, m.completion.Accept()))
	m.input.CursorEnd()
	if len(m.completion.Completions) == 1 {
		m.completion.Clear()
	}
}

func applyCompletion(base, value string) string {
	if value == "" {
		return base
	}
	return commands.ApplyCompletion(base, value)
}

// =============================================================================
// SUBMIT
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m, m.commandCmd(text)
	}

	atts := m.env.Staged.Take()
	if text == "" && len(atts) == 0 {
		return m, nil
	}
	m.input.Reset()
	ctl, ctx := m.app.Controller, m.ctx
	return m, func() tea.Msg {
		_, err := ctl.Submit(ctx, text, atts)
		return sendDoneMsg{text: text, atts: atts, err: err}
	}
}

func (m Model) commandCmd(input string) tea.Cmd {
	registry, env, ctx := m.registry, m.env, m.ctx
	return func() tea.Msg {
		res, err := registry.Execute(ctx, env, input)
		return commandDoneMsg{input: input, res: res, err: err}
	}
}

func (m Model) foregroundCmd() tea.Cmd {
	ctl, ctx := m.app.Controller, m.ctx
	return func() tea.Msg {
		return foregroundDoneMsg{err: ctl.OnForeground(ctx)}
	}
}

func (m Model) saveCmd() tea.Cmd {
	p := m.app.Presence
	return func() tea.Msg {
		p.Check()
		return savedMsg{}
	}
}

func (m Model) handleSendDone(msg sendDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		return m, nil
	}
	if errors.Is(msg.err, delivery.ErrBusy) || errors.Is(msg.err, delivery.ErrEmptyMessage) {
		// Nothing was added; give the draft back.
		m.env.Staged.Restore(msg.atts)
		if m.input.Value() == "" {
			m.input.SetValue(msg.text)
		}
		return m, m.showToast(delivery.ToastWarning, msg.err.Error())
	}
	return m, m.showToast(delivery.ToastError, msg.err.Error())
}

func (m Model) handleCommandDone(msg commandDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, m.showToast(delivery.ToastError, msg.err.Error())
	}
	res := msg.res
	if res.Quit {
		m.quitting = true
		return m, tea.Quit
	}
	if res.Reloaded {
		m.resetKnown()
		m.refresh()
	}
	if res.Listening {
		m.listening = true
		m.interim = ""
	}

	switch {
	case res.Help:
		m.openText("Help", m.helpText())
		return m, nil
	case len(res.Chats) > 0:
		m.chatList = components.NewChatList(res.Chats, m.app.Messages.ChatID())
		m.overlay = overlayChats
		return m, nil
	case len(res.Notes) > 0:
		var b strings.Builder
		for _, n := range res.Notes {
			fmt.Fprintf(&b, "%s  %s\n", n.Title, m.theme.Muted.Render(n.Timestamp.Format(time.DateOnly)))
		}
		m.openText("Notes", strings.TrimRight(b.String(), "\n"))
		return m, nil
	case strings.Contains(res.Message, "\n"):
		m.openText("Status", res.Message)
		return m, nil
	case res.Message != "":
		return m, m.showToast(res.Level, res.Message)
	}
	return m, nil
}

func (m Model) handleDictation(msg dictationMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.listening = false
		m.interim = ""
		return m, m.showToast(delivery.ToastWarning, audio.ErrorMessage(msg.err))
	}
	if !msg.submit {
		m.interim = msg.text
		return m, nil
	}
	m.listening = false
	m.interim = ""
	m.input.SetValue(msg.text)
	return m.submit()
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m *Model) showToast(level delivery.ToastLevel, text string) tea.Cmd {
	m.toastSeq++
	t := components.NewToast(m.toastSeq, level, text, time.Now())
	m.toast = &t
	id := t.ID
	return tea.Tick(t.Duration, func(time.Time) tea.Msg {
		return toastTickMsg{id: id}
	})
}

// applyTyping shows a typing frame of a reply.
func (m *Model) applyTyping(msg typingMsg) {
	delete(m.awaiting, msg.id)
	m.known[msg.id] = true
	if msg.final {
		delete(m.typed, msg.id)
		if reply, _, ok := m.app.Messages.ByID(msg.id); ok {
			m.rendered[msg.id] = renderedMarkup{content: reply.Content, markup: msg.text}
		}
	} else {
		m.typed[msg.id] = msg.text
	}
	m.refresh()
}

// expireAwaiting shows replies whose typing never started.
func (m *Model) expireAwaiting(now time.Time) {
	changed := false
	for id, since := range m.awaiting {
		if now.Sub(since) >= awaitTimeout {
			delete(m.awaiting, id)
			changed = true
		}
	}
	if changed {
		m.refresh()
	}
}

// lastCodeBlocks returns the code blocks of the newest assistant reply.
func lastCodeBlocks(msgs []model.Message) []render.CodeBlock {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return render.ExtractCodeBlocks(msgs[i].Content)
		}
	}
	return nil
}

func analysisLine(msg analysisMsg) string {
	switch msg.status {
	case delivery.AnalysisRunning:
		return "Analyzing " + msg.name + "..."
	case delivery.AnalysisFailed:
		return "Could not analyze " + msg.name + ": " + msg.detail
	default:
		return "Analyzed " + msg.name
	}
}
