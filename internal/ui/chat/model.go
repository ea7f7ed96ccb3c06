// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/commands"
	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/presence"
	"github.com/efgfdsdfdf/edutrack/internal/ui/components"
	"github.com/efgfdsdfdf/edutrack/internal/ui/styles"
)

// awaitTimeout bounds how long a new reply stays hidden waiting for its
// first typing frame.
const awaitTimeout = 3 * time.Second

// overlay is the panel drawn over the conversation.
type overlay int

const (
	overlayNone overlay = iota
	overlayChats
	overlayCode
	overlayText
)

// renderedMarkup caches the markdown render of one reply.
type renderedMarkup struct {
	content string
	markup  string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat screen.
type Model struct {
	ctx   context.Context
	app   *app.App
	theme *styles.Theme
	keys  KeyMap
	typer *Typer

	registry   *commands.Registry
	completer  *commands.Completer
	completion commands.CompletionState
	compBase   string
	env        *commands.Env

	// Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	width  int
	height int
	ready  bool

	// Reply rendering. known holds the IDs drawn so far; a reply that
	// appears afterwards is hidden in awaiting until typing starts.
	known    map[string]bool
	awaiting map[string]time.Time
	typed    map[string]string
	rendered map[string]renderedMarkup

	// Status
	status    connection.Status
	thinking  bool
	thinkLbl  string
	analysis  string
	listening bool
	interim   string

	toast    *components.Toast
	toastSeq int

	// Prompts
	confirm  *confirmMsg
	fileMode *fileModeMsg

	// Overlays
	overlay   overlay
	chatList  *components.ChatList
	codeView  *components.CodeView
	textTitle string
	textBody  string

	quitting bool
}

// New creates the chat screen for a. The typer must render through the
// same bridge the controller reports to.
func New(ctx context.Context, a *app.App, theme *styles.Theme, typer *Typer) Model {
	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Ask anything, or type / for commands"
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.Spinner),
	)

	registry := commands.NewRegistry()
	env := &commands.Env{App: a, Staged: &commands.Staging{}}
	completer := commands.NewCompleter(registry)
	completer.NotesFn = func() []string { return noteTitles(ctx, a) }
	completer.ChatsFn = func() []string { return chatIDs(ctx, a) }

	m := Model{
		ctx:       ctx,
		app:       a,
		theme:     theme,
		keys:      keys,
		typer:     typer,
		registry:  registry,
		completer: completer,
		env:       env,
		input:     ta,
		spinner:   sp,
		help:      help.New(),
		known:     make(map[string]bool),
		awaiting:  make(map[string]time.Time),
		typed:     make(map[string]string),
		rendered:  make(map[string]renderedMarkup),
		status:    a.Monitor.Current(),
	}
	m.resetKnown()
	return m
}

// Init starts the cursor blink and the presence ticks.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, presence.TickCmd())
}

// resetKnown marks every message of the open chat as drawn.
func (m *Model) resetKnown() {
	clear(m.known)
	clear(m.awaiting)
	clear(m.typed)
	for _, msg := range m.app.Messages.Snapshot() {
		m.known[msg.ID] = true
	}
}

func noteTitles(ctx context.Context, a *app.App) []string {
	notes, err := a.Notes.List(ctx)
	if err != nil {
		return nil
	}
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}

func chatIDs(ctx context.Context, a *app.App) []string {
	chats, err := a.Messages.ListChats(ctx)
	if err != nil {
		return nil
	}
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.ID
	}
	return out
}
