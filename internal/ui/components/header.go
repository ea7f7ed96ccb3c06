// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/efgfdsdfdf/edutrack/internal/connection"
	"github.com/efgfdsdfdf/edutrack/internal/ui/styles"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// =============================================================================
// HEADER
// =============================================================================

// Header is the title bar: brand, chat title, toggles and connection badge.
type Header struct {
	Title      string
	User       string
	Status     connection.Status
	WebSearch  bool
	Background bool
	Pending    int
	Width      int
}

// View renders the header on one line.
func (h Header) View(theme *styles.Theme) string {
	brand := theme.HeaderBrand.Render("edutrack")
	badge := theme.Badge(h.Status)

	var flags []string
	if h.WebSearch {
		flags = append(flags, "web")
	}
	if h.Background {
		flags = append(flags, "bg")
	}
	if h.Pending > 0 {
		flags = append(flags, fmt.Sprintf("%d running", h.Pending))
	}
	right := badge
	if len(flags) > 0 && !theme.Compact() {
		right = theme.Muted.Render(strings.Join(flags, " | ")) + "  " + badge
	}

	inner := h.Width - theme.Header.GetHorizontalFrameSize()
	room := inner - lipgloss.Width(brand) - lipgloss.Width(right) - 4
	title := ""
	if room > 0 {
		label := h.Title
		if h.User != "" && !theme.Compact() {
			label = h.User + " / " + h.Title
		}
		title = theme.HeaderTitle.Render(util.TruncateWidth(label, room))
	}

	left := brand
	if title != "" {
		left += "  " + title
	}
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	if h.Width > 0 {
		return theme.Header.Width(h.Width).Render(line)
	}
	return theme.Header.Render(line)
}

// padRight pads s with spaces to width cells.
func padRight(s string, width int) string {
	if w := runewidth.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
