// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// CODE BLOCKS
// =============================================================================

// CodeBlock is one fenced block of a reply.
type CodeBlock struct {
	Language string
	Code     string
}

// Title labels the block in the code viewer.
func (c CodeBlock) Title(n int) string {
	lang := c.Language
	if lang == "" {
		lang = DetectLanguage(c.Code)
	}
	if lang == "" {
		lang = "text"
	}
	lines := strings.Count(c.Code, "\n") + 1
	return fmt.Sprintf("#%d %s (%d lines)", n, lang, lines)
}

// ExtractCodeBlocks returns the fenced code blocks of markdown in order.
// An unclosed fence runs to the end of the text.
func ExtractCodeBlocks(markdown string) []CodeBlock {
	var (
		blocks []CodeBlock
		inCode bool
		lang   string
		lines  []string
		fence  string
	)
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inCode {
			if f := fenceOf(trimmed); f != "" {
				inCode = true
				fence = f
				lang = strings.TrimSpace(strings.TrimLeft(trimmed, f[:1]))
				lines = nil
			}
			continue
		}
		if strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, fence[:1]) == "" {
			blocks = append(blocks, CodeBlock{Language: lang, Code: strings.Join(lines, "\n")})
			inCode = false
			continue
		}
		lines = append(lines, line)
	}
	if inCode && len(lines) > 0 {
		blocks = append(blocks, CodeBlock{Language: lang, Code: strings.Join(lines, "\n")})
	}
	return blocks
}

func fenceOf(line string) string {
	for _, f := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, f) {
			n := len(line) - len(strings.TrimLeft(line, f[:1]))
			return line[:n]
		}
	}
	return ""
}

// HighlightCode returns code with ANSI syntax highlighting. The language
// is detected when empty or unknown; on failure the code is returned as is.
func HighlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// DetectLanguage names the language of code, or "" when unsure.
func DetectLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return strings.ToLower(lexer.Config().Name)
	}
	return ""
}

// NumberLines prefixes each line with a right-aligned line number.
func NumberLines(code string) string {
	lines := strings.Split(code, "\n")
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%*d  %s", width, i+1, line)
	}
	return b.String()
}
