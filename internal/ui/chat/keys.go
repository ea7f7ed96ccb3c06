// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat screen.
type KeyMap struct {
	Submit     key.Binding
	Newline    key.Binding
	Complete   key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	NewChat    key.Binding
	ChatList   key.Binding
	Retry      key.Binding
	ShowBg     key.Binding
	PauseType  key.Binding
	CancelType key.Binding
	WebSearch  key.Binding
	Background key.Binding
	CodeBlocks key.Binding
	Dictate    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "new line"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "complete command"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn", "scroll down"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		ChatList: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "chats"),
		),
		Retry: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "retry failed"),
		),
		ShowBg: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "show background replies"),
		),
		PauseType: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "pause typing"),
		),
		CancelType: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "skip typing"),
		),
		WebSearch: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("C-w", "web search"),
		),
		Background: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "background mode"),
		),
		CodeBlocks: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("C-k", "code blocks"),
		),
		Dictate: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "dictate"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.ChatList, k.Retry, k.CodeBlocks, k.Help, k.Quit}
}

// FullHelp returns every binding, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline, k.Complete, k.PageUp, k.PageDown},
		{k.NewChat, k.ChatList, k.Retry, k.ShowBg},
		{k.PauseType, k.CancelType, k.CodeBlocks, k.Dictate},
		{k.WebSearch, k.Background, k.Help, k.Quit},
	}
}
