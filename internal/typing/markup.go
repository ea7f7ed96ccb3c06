// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package typing

import (
	"strings"
	"unicode/utf8"
)

// =============================================================================
// MARKUP SCANNING
// =============================================================================

const esc = '\x1b'

// tokenEnd returns the end of the zero-width token starting at i, or i when
// markup[i:] does not start one.
func tokenEnd(markup string, i int) int {
	switch markup[i] {
	case '<':
		if !tagStart(markup, i+1) {
			return i
		}
		if j := strings.IndexByte(markup[i:], '>'); j > 0 {
			return i + j + 1
		}
	case esc:
		return ansiEnd(markup, i)
	}
	return i
}

// tagStart reports whether the byte after '<' opens a tag, comment or
// doctype. A bare '<' as in "x < y" is text.
func tagStart(markup string, i int) bool {
	if i >= len(markup) {
		return false
	}
	c := markup[i]
	return c == '/' || c == '!' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// ansiEnd handles CSI (ESC [ ... final) and OSC (ESC ] ... BEL or ST)
// sequences. A lone ESC followed by one byte is two bytes wide.
func ansiEnd(markup string, i int) int {
	if i+1 >= len(markup) {
		return len(markup)
	}
	switch markup[i+1] {
	case '[':
		for j := i + 2; j < len(markup); j++ {
			if c := markup[j]; c >= 0x40 && c <= 0x7e {
				return j + 1
			}
		}
		return len(markup)
	case ']':
		for j := i + 2; j < len(markup); j++ {
			if markup[j] == '\a' {
				return j + 1
			}
			if markup[j] == esc && j+1 < len(markup) && markup[j+1] == '\\' {
				return j + 2
			}
		}
		return len(markup)
	}
	return i + 2
}

// charEnd returns the end of the visible character starting at i. An HTML
// entity such as &amp; counts as one character.
func charEnd(markup string, i int) int {
	if markup[i] == '&' {
		if j := strings.IndexByte(markup[i:], ';'); j > 1 && j <= 10 && !strings.ContainsAny(markup[i+1:i+j], " <&") {
			return i + j + 1
		}
	}
	_, size := utf8.DecodeRuneInString(markup[i:])
	return i + size
}

// VisibleLen returns the number of visible characters in markup.
func VisibleLen(markup string) int {
	n := 0
	for i := 0; i < len(markup); {
		if end := tokenEnd(markup, i); end > i {
			i = end
			continue
		}
		i = charEnd(markup, i)
		n++
	}
	return n
}

// VisibleText strips tags and escape sequences from markup.
func VisibleText(markup string) string {
	var b strings.Builder
	b.Grow(len(markup))
	for i := 0; i < len(markup); {
		if end := tokenEnd(markup, i); end > i {
			i = end
			continue
		}
		end := charEnd(markup, i)
		b.WriteString(markup[i:end])
		i = end
	}
	return b.String()
}

// Prefix returns markup cut after its n-th visible character. Zero-width
// tokens that follow the cut, up to the next visible character, are kept
// so closing tags and resets travel with the text they close.
func Prefix(markup string, n int) string {
	if n <= 0 {
		return leadingTokens(markup)
	}
	seen := 0
	for i := 0; i < len(markup); {
		if end := tokenEnd(markup, i); end > i {
			i = end
			continue
		}
		if seen == n {
			return markup[:i]
		}
		i = charEnd(markup, i)
		seen++
	}
	return markup
}

func leadingTokens(markup string) string {
	i := 0
	for i < len(markup) {
		end := tokenEnd(markup, i)
		if end == i {
			break
		}
		i = end
	}
	return markup[:i]
}
