// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")). // Cyan
			MarginBottom(1)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	// ValueStyle is used for regular values and text
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // Orange
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	// UserStyle and AssistantStyle label chat turns
	UserStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
	AssistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("141")) // Purple

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// RenderSeparator returns a horizontal rule of the given width.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 40
	}
	return SeparatorStyle.Render(strings.Repeat("-", width))
}

// RenderLabel renders a "label:" field name padded to LabelStyle's width.
func RenderLabel(label string) string {
	return LabelStyle.Render(label + ":")
}

// RenderBadge renders a connection badge in its status color.
func RenderBadge(s connection.Status) string {
	switch s {
	case connection.StatusConnected:
		return SuccessStyle.Render(s.Badge())
	case connection.StatusRetrying, connection.StatusMock:
		return InfoStyle.Render(s.Badge())
	case connection.StatusOffline:
		return WarningStyle.Render(s.Badge())
	case connection.StatusDisconnected:
		return ErrorStyle.Render(s.Badge())
	default:
		return MutedStyle.Render(s.Badge())
	}
}

// RenderToast renders a notification line.
func RenderToast(level delivery.ToastLevel, text string) string {
	switch level {
	case delivery.ToastSuccess:
		return SuccessStyle.Render("[OK]") + " " + text
	case delivery.ToastWarning:
		return WarningStyle.Render("[!]") + " " + text
	case delivery.ToastError:
		return ErrorStyle.Render("[X]") + " " + text
	default:
		return InfoStyle.Render("[i]") + " " + text
	}
}
