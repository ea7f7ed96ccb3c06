// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"
	"strings"

	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/transport"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// =============================================================================
// ATTACHMENT CONTEXT
// =============================================================================

// AttachmentContext renders the attachments appended to the user text.
// Attachments are numbered by position. With FileModeJoin and more than one
// file, the files are merged into a single combined block; otherwise every
// file gets its own block, and FileModeSeparate adds an instruction to
// handle them one at a time.
func AttachmentContext(atts []model.Attachment, mode model.FileMode) string {
	if len(atts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\n**ATTACHMENTS PROVIDED BY USER:**\n")

	files := model.CountFileLike(atts)
	join := mode == model.FileModeJoin && files > 1

	for i, a := range atts {
		if a.Kind == model.KindNote {
			writeNote(&sb, i+1, a)
		}
	}

	if join {
		writeCombined(&sb, atts)
		return sb.String()
	}
	for i, a := range atts {
		if a.IsFileLike() {
			writeFile(&sb, i+1, a)
		}
	}
	if mode == model.FileModeSeparate && files > 1 {
		fmt.Fprintf(&sb, "\nThe user chose to treat these %d files separately. "+
			"Address each file on its own, in order, before drawing any comparison.\n", files)
	}
	return sb.String()
}

func writeNote(sb *strings.Builder, n int, a model.Attachment) {
	sb.WriteString("\n---\n")
	fmt.Fprintf(sb, "**NOTE %d: %s**\n\n", n, titleOr(a.Title, "Untitled Note"))
	sb.WriteString(a.Content)
	sb.WriteString("\n\n---\n")
}

func writeFile(sb *strings.Builder, n int, a model.Attachment) {
	sb.WriteString("\n---\n")
	fmt.Fprintf(sb, "**FILE %d: %s**\n", n, titleOr(a.Name, "File"))
	fmt.Fprintf(sb, "Type: %s\n", fileType(a))
	writeAnalysis(sb, a)
	sb.WriteString("\n---\n")
}

func writeCombined(sb *strings.Builder, atts []model.Attachment) {
	var names []string
	for _, a := range atts {
		if a.IsFileLike() {
			names = append(names, titleOr(a.Name, "File"))
		}
	}
	sb.WriteString("\n---\n")
	fmt.Fprintf(sb, "**COMBINED FILES (%d): %s**\n", len(names), strings.Join(names, ", "))
	sb.WriteString("The user chose to combine these files. Treat them as one document and look for connections between them.\n")
	for _, a := range atts {
		if !a.IsFileLike() {
			continue
		}
		fmt.Fprintf(sb, "\n### %s (%s)\n", titleOr(a.Name, "File"), fileType(a))
		writeAnalysis(sb, a)
	}
	sb.WriteString("\n---\n")
}

func writeAnalysis(sb *strings.Builder, a model.Attachment) {
	if a.Analysis != "" {
		fmt.Fprintf(sb, "\n**AI ANALYSIS:**\n%s\n", a.Analysis)
	}
	if a.AnalysisText != "" {
		fmt.Fprintf(sb, "\n**EXTRACTED CONTENT (preview):**\n%s\n", util.Truncate(a.AnalysisText, extractPreview))
	}
	if a.Description != "" {
		fmt.Fprintf(sb, "Description: %s\n", a.Description)
	}
}

func fileType(a model.Attachment) string {
	if a.IsImage() {
		return "Image"
	}
	return "Document"
}

// =============================================================================
// WEB CONTEXT
// =============================================================================

// WebContext renders advisory search results.
func WebContext(results []transport.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n**WEB RESULTS (advisory, may be incomplete):**\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, titleOr(r.Title, "Untitled"))
		if r.Source != "" {
			fmt.Fprintf(&sb, " (%s)", r.Source)
		}
		sb.WriteString("\n")
		if r.Snippet != "" {
			sb.WriteString(r.Snippet)
			sb.WriteString("\n")
		}
		if r.URL != "" {
			sb.WriteString(r.URL)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
