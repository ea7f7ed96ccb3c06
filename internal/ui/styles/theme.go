// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
)

// Theme holds every style the TUI renders with.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderTitle lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemText      lipgloss.Style
	Attachment      lipgloss.Style
	StateSending    lipgloss.Style
	StateBackground lipgloss.Style
	StateFailed     lipgloss.Style
	TypingCursor    lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	Staged         lipgloss.Style
	StatusBar      lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style
	Spinner        lipgloss.Style
	Prompt         lipgloss.Style

	// ==========================================================================
	// OVERLAYS
	// ==========================================================================

	Overlay      lipgloss.Style
	OverlayTitle lipgloss.Style
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style
	Muted        lipgloss.Style
}

// NewTheme creates a new theme for the current terminal.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextPrimary).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1)
	t.AssistantBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBubbleBorder)
	t.SystemText = lipgloss.NewStyle().Foreground(SystemBubbleFg).Italic(true)
	t.Attachment = lipgloss.NewStyle().Foreground(TextSecondary)
	t.StateSending = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.StateBackground = lipgloss.NewStyle().Foreground(Amber).Italic(true)
	t.StateFailed = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.TypingCursor = lipgloss.NewStyle().Foreground(Purple)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
	t.Staged = lipgloss.NewStyle().Foreground(Cyan).Italic(true)
	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.Prompt = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(0, 1)

	t.Overlay = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.OverlayTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple).MarginBottom(1)
	t.ListItem = lipgloss.NewStyle().Foreground(TextPrimary)
	t.ListSelected = lipgloss.NewStyle().Foreground(TextPrimary).Background(SelectionBg).Bold(true)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// Compact reports whether the terminal is small enough for the compact
// layout.
func (t *Theme) Compact() bool {
	return t.Width > 0 && t.Width < 60
}

// Badge renders the connection badge.
func (t *Theme) Badge(s connection.Status) string {
	style := lipgloss.NewStyle().Bold(true)
	switch s {
	case connection.StatusConnected:
		style = style.Foreground(Emerald)
	case connection.StatusRetrying:
		style = style.Foreground(Cyan)
	case connection.StatusDisconnected:
		style = style.Foreground(Rose)
	case connection.StatusOffline:
		style = style.Foreground(Amber)
	default:
		style = style.Foreground(TextMuted)
	}
	return style.Render(s.Badge())
}

// Toast returns the style of a notification of the given level.
func (t *Theme) Toast(level delivery.ToastLevel) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch level {
	case delivery.ToastSuccess:
		return style.Foreground(Emerald)
	case delivery.ToastWarning:
		return style.Foreground(Amber)
	case delivery.ToastError:
		return style.Foreground(Rose)
	default:
		return style.Foreground(Cyan)
	}
}

// ToastIcon is the ASCII marker of a notification level.
func ToastIcon(level delivery.ToastLevel) string {
	switch level {
	case delivery.ToastSuccess:
		return StatusIndicators.Success
	case delivery.ToastWarning:
		return StatusIndicators.Warning
	case delivery.ToastError:
		return StatusIndicators.Error
	default:
		return StatusIndicators.Info
	}
}

// State renders the delivery state note shown under a user message, or ""
// when nothing needs saying.
func (t *Theme) State(m model.Message, number int) string {
	switch {
	case m.Failed || m.State == model.StateFailed:
		return t.StateFailed.Render(StatusIndicators.Error + " Failed to send. /retry " + strconv.Itoa(number))
	case m.State == model.StateBackgrounded:
		return t.StateBackground.Render(StatusIndicators.Pending + " Processing in background...")
	case m.State == model.StateSending:
		return t.StateSending.Render("sending...")
	default:
		return ""
	}
}

