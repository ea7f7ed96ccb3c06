// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/config"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/typing"
	"github.com/efgfdsdfdf/edutrack/internal/ui/styles"
)

// =============================================================================
// HELPERS
// =============================================================================

// recorder collects the messages a bridge posts.
type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) drain() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	t.Setenv("EDUTRACK_HOME", t.TempDir())
	cfg := config.Default()
	cfg.User.Name = "alice"
	cfg.Backend.Mock = true
	cfg.Store.Kind = "memory"
	cfg.SetDefaults()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

type harness struct {
	app *app.App
	rec *recorder
	m   Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	a := newTestApp(t)
	rec := &recorder{}
	bridge := NewBridge()
	bridge.Attach(rec.send)
	typer := NewTyper(a.Typing, a.Markdown, bridge, false)
	a.Controller.SetUI(bridge)
	a.Controller.SetRenderer(typer)

	h := &harness{app: a, rec: rec, m: New(context.Background(), a, styles.NewTheme(), typer)}
	h.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

// flush feeds everything the bridge posted back into the model.
func (h *harness) flush() {
	for _, msg := range h.rec.drain() {
		h.update(msg)
	}
}

// exec runs cmd and feeds its message back into the model.
func (h *harness) exec(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	h.update(cmd())
	h.flush()
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+k":
		return tea.KeyMsg{Type: tea.KeyCtrlK}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// =============================================================================
// BRIDGE
// =============================================================================

func TestBridgeDeclinesWhenDetached(t *testing.T) {
	b := NewBridge()
	assert.False(t, b.ConfirmReconnect(context.Background()))
	b.Toast(delivery.ToastInfo, "dropped")
}

func TestBridgeConfirmReconnect(t *testing.T) {
	b := NewBridge()
	b.Attach(func(msg tea.Msg) {
		if c, ok := msg.(confirmMsg); ok {
			c.reply <- true
		}
	})
	assert.True(t, b.ConfirmReconnect(context.Background()))

	b.Attach(func(tea.Msg) {})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, b.ConfirmReconnect(ctx))
}

func TestBridgeForwardsCallbacks(t *testing.T) {
	rec := &recorder{}
	b := NewBridge()
	b.Attach(rec.send)

	b.Toast(delivery.ToastWarning, "careful")
	b.Thinking(true, "Thinking...")
	b.MessagesChanged()
	b.BackgroundStarted(2, "m1")
	b.BackgroundFailed(2, "m1", "timeout")
	b.AskFileMode("m2", 3)
	b.AnalysisProgress(model.NewAttachment(model.KindFile, "essay.pdf"), delivery.AnalysisRunning, "")

	msgs := rec.drain()
	require.Len(t, msgs, 7)
	assert.Equal(t, toastMsg{level: delivery.ToastWarning, text: "careful"}, msgs[0])
	assert.Equal(t, thinkingMsg{on: true, label: "Thinking..."}, msgs[1])
	assert.Equal(t, refreshMsg{}, msgs[2])
	assert.Equal(t, backgroundMsg{index: 2, id: "m1"}, msgs[3])
	assert.Equal(t, backgroundMsg{index: 2, id: "m1", failed: true, reason: "timeout"}, msgs[4])
	assert.Equal(t, fileModeMsg{id: "m2", files: 3}, msgs[5])
	assert.Equal(t, analysisMsg{name: "essay.pdf", status: delivery.AnalysisRunning}, msgs[6])
}

// =============================================================================
// TYPER
// =============================================================================

func TestTyperDisabledShowsWholeReply(t *testing.T) {
	a := newTestApp(t)
	rec := &recorder{}
	b := NewBridge()
	b.Attach(rec.send)
	typer := NewTyper(a.Typing, a.Markdown, b, false)

	reply := model.NewAssistantMessage("Osmosis moves water")
	require.NoError(t, typer.Render(context.Background(), reply))

	msgs := rec.drain()
	require.Len(t, msgs, 1)
	tm, ok := msgs[0].(typingMsg)
	require.True(t, ok)
	assert.Equal(t, reply.ID, tm.id)
	assert.True(t, tm.final)
	assert.Contains(t, typing.VisibleText(tm.text), "Osmosis")
}

func TestTyperTypesIntoView(t *testing.T) {
	a := newTestApp(t)
	rec := &recorder{}
	b := NewBridge()
	b.Attach(rec.send)
	sched := typing.NewScheduler(typing.Config{CharDelay: time.Millisecond}, zap.NewNop())
	typer := NewTyper(sched, a.Markdown, b, true)

	reply := model.NewAssistantMessage("Diffusion spreads particles out")
	require.NoError(t, typer.Render(context.Background(), reply))

	var final typingMsg
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		for _, msg := range rec.msgs {
			if tm, ok := msg.(typingMsg); ok && tm.final {
				final = tm
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, reply.ID, final.id)
	assert.Contains(t, typing.VisibleText(final.text), "Diffusion")
}

// =============================================================================
// MODEL
// =============================================================================

func TestSubmitShowsReplyAfterTyping(t *testing.T) {
	h := newHarness(t)
	h.m.input.SetValue("what is osmosis")

	cmd := h.update(keyMsg("enter"))
	assert.Empty(t, h.m.input.Value())
	require.NotNil(t, cmd)
	done := cmd()
	require.Equal(t, sendDoneMsg{text: "what is osmosis"}, done)
	require.Equal(t, 2, h.app.Messages.Len())

	reply, ok := h.app.Messages.At(1)
	require.True(t, ok)

	// The refresh arrives before the typing frame: the reply stays hidden.
	for _, msg := range h.rec.drain() {
		if _, typed := msg.(typingMsg); typed {
			assert.Contains(t, h.m.awaiting, reply.ID)
		}
		h.update(msg)
	}
	assert.NotContains(t, h.m.awaiting, reply.ID)
	assert.Contains(t, h.m.rendered, reply.ID)

	view := h.m.viewport.View()
	assert.Contains(t, view, "what is osmosis")
	assert.Contains(t, view, "Assistant")
}

func TestAwaitingReplyExpires(t *testing.T) {
	h := newHarness(t)
	h.m.awaiting["ghost"] = time.Now().Add(-time.Minute)
	h.m.expireAwaiting(time.Now())
	assert.Empty(t, h.m.awaiting)
}

func TestRefusedSendRestoresDraft(t *testing.T) {
	h := newHarness(t)
	att := model.NewAttachment(model.KindFile, "essay.txt")

	h.update(sendDoneMsg{text: "hello", atts: []model.Attachment{att}, err: delivery.ErrBusy})
	assert.Equal(t, "hello", h.m.input.Value())
	assert.Equal(t, 1, h.m.env.Staged.Len())
	require.NotNil(t, h.m.toast)
	assert.Equal(t, delivery.ToastWarning, h.m.toast.Level)
}

func TestCommandResultsShowToast(t *testing.T) {
	h := newHarness(t)
	h.m.input.SetValue("/web on")
	h.exec(t, h.update(keyMsg("enter")))

	require.NotNil(t, h.m.toast)
	assert.Equal(t, "Web search on", h.m.toast.Message)
	assert.True(t, h.app.Controller.WebSearch())

	id := h.m.toast.ID
	h.update(toastTickMsg{id: id + 1})
	assert.NotNil(t, h.m.toast)
	h.update(toastTickMsg{id: id})
	assert.Nil(t, h.m.toast)
}

func TestUnknownCommandShowsError(t *testing.T) {
	h := newHarness(t)
	h.m.input.SetValue("/rety")
	h.exec(t, h.update(keyMsg("enter")))

	require.NotNil(t, h.m.toast)
	assert.Equal(t, delivery.ToastError, h.m.toast.Level)
	assert.Contains(t, h.m.toast.Message, "/retry")
}

func TestStatusOpensTextOverlay(t *testing.T) {
	h := newHarness(t)
	h.m.input.SetValue("/status")
	h.exec(t, h.update(keyMsg("enter")))

	assert.Equal(t, overlayText, h.m.overlay)
	assert.Equal(t, "Status", h.m.textTitle)
	assert.Contains(t, h.m.View(), "Backend:")

	h.update(keyMsg("esc"))
	assert.Equal(t, overlayNone, h.m.overlay)
}

func TestChatListOverlay(t *testing.T) {
	h := newHarness(t)
	h.update(commandDoneMsg{res: commands.Result{Chats: []model.ChatSummary{
		{ID: "zz1", Title: "Biology", Timestamp: time.Now()},
		{ID: "zz2", Title: "History", Timestamp: time.Now()},
	}}})
	require.Equal(t, overlayChats, h.m.overlay)

	h.update(keyMsg("j"))
	c, ok := h.m.chatList.Selected()
	require.True(t, ok)
	assert.Equal(t, "zz2", c.ID)

	cmd := h.update(keyMsg("enter"))
	assert.Equal(t, overlayNone, h.m.overlay)
	require.NotNil(t, cmd)
	done, ok := cmd().(commandDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "/load zz2", done.input)
	assert.ErrorIs(t, done.err, commands.ErrChatNotFound)
}

func TestConfirmPrompt(t *testing.T) {
	h := newHarness(t)
	reply := make(chan bool, 1)
	h.update(confirmMsg{reply: reply})
	assert.Contains(t, h.m.View(), "reconnect")

	// Other keys leave the prompt open.
	h.update(keyMsg("x"))
	require.NotNil(t, h.m.confirm)

	h.update(keyMsg("y"))
	assert.Nil(t, h.m.confirm)
	assert.True(t, <-reply)
}

func TestFileModePrompt(t *testing.T) {
	h := newHarness(t)
	h.update(fileModeMsg{id: "missing", files: 2})
	assert.Contains(t, h.m.View(), "2 files attached")

	cmd := h.update(keyMsg("j"))
	assert.Nil(t, h.m.fileMode)
	require.NotNil(t, cmd)
	done, ok := cmd().(sendDoneMsg)
	require.True(t, ok)
	assert.ErrorIs(t, done.err, delivery.ErrNoPendingChoice)
}

func TestTabCompletesCommand(t *testing.T) {
	h := newHarness(t)
	h.m.input.SetValue("/hel")
	h.update(keyMsg("tab"))
	assert.Equal(t, "/help ", h.m.input.Value())
	assert.False(t, h.m.completion.Visible)
}

func TestCodeBlocksWithoutCode(t *testing.T) {
	h := newHarness(t)
	h.update(keyMsg("ctrl+k"))
	assert.Equal(t, overlayNone, h.m.overlay)
	require.NotNil(t, h.m.toast)
	assert.Contains(t, h.m.toast.Message, "No code blocks")
}

func TestFocusTracksVisibility(t *testing.T) {
	h := newHarness(t)

	h.update(tea.BlurMsg{})
	assert.False(t, h.app.Presence.IsVisible())

	cmd := h.update(tea.FocusMsg{})
	assert.True(t, h.app.Presence.IsVisible())
	require.NotNil(t, cmd)
	assert.Equal(t, foregroundDoneMsg{}, cmd())
}

func TestDictationSubmits(t *testing.T) {
	h := newHarness(t)
	h.update(dictationMsg{text: "what is a cell"})
	assert.Equal(t, "what is a cell", h.m.interim)

	cmd := h.update(dictationMsg{text: "what is a cell", submit: true})
	assert.Empty(t, h.m.interim)
	require.NotNil(t, cmd)
	assert.Equal(t, sendDoneMsg{text: "what is a cell"}, cmd())
	assert.Equal(t, 2, h.app.Messages.Len())
}

func TestViewShowsHeaderAndEmptyChat(t *testing.T) {
	h := newHarness(t)
	view := h.m.View()
	assert.Contains(t, view, "edutrack")
	assert.Contains(t, view, "[MOCK]")
	assert.True(t, strings.Contains(view, "No messages yet"))
}
