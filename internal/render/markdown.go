// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
)

// DefaultWidth is the wrap width used when none is known.
const DefaultWidth = 80

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

type rendererKey struct {
	width int
	dark  bool
}

// Markdown renders markdown with glamour. Renderers are cached per width
// and background so resizing does not rebuild them every frame.
type Markdown struct {
	mu        sync.Mutex
	width     int
	dark      bool
	plain     bool
	renderers map[rendererKey]*glamour.TermRenderer
	log       *zap.Logger
}

// Options configures a Markdown renderer.
type Options struct {
	Width int

	// Plain disables styling, for piped output.
	Plain bool

	// Dark forces the dark or light style. Nil detects the terminal
	// background.
	Dark *bool
}

// NewMarkdown creates a renderer.
func NewMarkdown(opts Options, log *zap.Logger) *Markdown {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	dark := true
	if opts.Dark != nil {
		dark = *opts.Dark
	} else if !opts.Plain && termenv.ColorProfile() != termenv.Ascii {
		dark = termenv.HasDarkBackground()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Markdown{
		width:     opts.Width,
		dark:      dark,
		plain:     opts.Plain,
		renderers: make(map[rendererKey]*glamour.TermRenderer),
		log:       log.With(zap.String("module", "render")),
	}
}

// SetWidth changes the wrap width.
func (m *Markdown) SetWidth(width int) {
	if width <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.width = width
}

// Width returns the wrap width.
func (m *Markdown) Width() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width
}

// Render returns text as terminal markup. On any rendering error the input
// is returned unchanged.
func (m *Markdown) Render(text string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}

	if m.plain {
		return text
	}

	m.mu.Lock()
	width := m.width
	r := m.rendererLocked(width, m.dark)
	m.mu.Unlock()

	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		m.log.Debug("markdown render failed", zap.Error(err))
		return text
	}
	out = strings.TrimRight(out, "\n")
	out = xansi.Hardwrap(out, width, true)
	return strings.TrimRight(out, "\n")
}

// rendererLocked returns a cached renderer. Caller must hold m.mu.
func (m *Markdown) rendererLocked(width int, dark bool) *glamour.TermRenderer {
	key := rendererKey{width: width, dark: dark}
	if r, ok := m.renderers[key]; ok {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(styleConfig(dark)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.log.Warn("failed to build markdown renderer", zap.Error(err))
		r = nil
	}
	m.renderers[key] = r
	return r
}

func styleConfig(dark bool) glamouransi.StyleConfig {
	base := styles.LightStyleConfig
	if dark {
		base = styles.DarkStyleConfig
	}
	// The chat view pads messages itself.
	base.Document.StylePrimitive.BlockPrefix = ""
	base.Document.StylePrimitive.BlockSuffix = ""
	zero := uint(0)
	base.Document.Margin = &zero
	return base
}

// StripANSI removes escape sequences, for width measurement and tests.
func StripANSI(s string) string {
	return xansi.Strip(s)
}
