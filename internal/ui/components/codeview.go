// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/efgfdsdfdf/edutrack/internal/render"
	"github.com/efgfdsdfdf/edutrack/internal/ui/styles"
)

// =============================================================================
// CODE VIEWER
// =============================================================================

// CodeView shows the code blocks of a reply one at a time, highlighted and
// numbered.
type CodeView struct {
	Blocks []render.CodeBlock
	Cursor int
	Offset int
}

// NewCodeView opens the viewer on the first block.
func NewCodeView(blocks []render.CodeBlock) *CodeView {
	return &CodeView{Blocks: blocks}
}

// Next and Prev switch blocks, wrapping around.
func (v *CodeView) Next() {
	if len(v.Blocks) > 0 {
		v.Cursor = (v.Cursor + 1) % len(v.Blocks)
		v.Offset = 0
	}
}

func (v *CodeView) Prev() {
	if len(v.Blocks) > 0 {
		v.Cursor = (v.Cursor - 1 + len(v.Blocks)) % len(v.Blocks)
		v.Offset = 0
	}
}

// Scroll moves the visible window of the current block.
func (v *CodeView) Scroll(delta int) {
	v.Offset += delta
	if v.Offset < 0 {
		v.Offset = 0
	}
	if b, ok := v.Selected(); ok {
		if last := strings.Count(b.Code, "\n"); v.Offset > last {
			v.Offset = last
		}
	}
}

// Selected returns the current block.
func (v *CodeView) Selected() (render.CodeBlock, bool) {
	if v.Cursor < 0 || v.Cursor >= len(v.Blocks) {
		return render.CodeBlock{}, false
	}
	return v.Blocks[v.Cursor], true
}

// View renders the current block in a box of the given size.
func (v *CodeView) View(theme *styles.Theme, width, height int) string {
	block, ok := v.Selected()
	if !ok {
		return theme.Overlay.Width(width).Render(theme.Muted.Render("No code blocks in the last reply"))
	}

	var b strings.Builder
	b.WriteString(theme.OverlayTitle.Render(block.Title(v.Cursor + 1)))
	b.WriteString("\n")

	lines := strings.Split(render.NumberLines(render.HighlightCode(block.Code, block.Language)), "\n")
	rows := height - 6
	if rows < 3 {
		rows = 3
	}
	start := min(v.Offset, len(lines))
	end := min(start+rows, len(lines))
	b.WriteString(strings.Join(lines[start:end], "\n"))
	b.WriteString("\n")
	b.WriteString(theme.Muted.Render("tab next block | up/down scroll | esc close"))
	return theme.Overlay.Width(width).Render(b.String())
}
