// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// =============================================================================
// MOCK REPLIES
// =============================================================================

// OfflineFooter ends mock replies produced while not connected.
const OfflineFooter = "*Note: Currently in offline mode. Connect to backend for enhanced AI capabilities and file analysis.*"

// MockReply builds the locally generated reply used when the backend is
// disabled or its answer could not be read.
func MockReply(user, text string, attachments []model.Attachment, connected bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s! I received: \"%s\"\n\n", user, util.Truncate(text, 100))

	var files, notes []model.Attachment
	for _, a := range attachments {
		switch {
		case a.IsFileLike() && a.Analyzed:
			files = append(files, a)
		case a.Kind == model.KindNote:
			notes = append(notes, a)
		}
	}

	if len(files) > 0 {
		fmt.Fprintf(&b, "**I analyzed %d file(s):**\n\n", len(files))
		for i, f := range files {
			fmt.Fprintf(&b, "**File %d: %s**\n", i+1, orDefault(f.Name, "Untitled File"))
			fmt.Fprintf(&b, "Type: %s\n", kindLabel(f))
			if f.Analysis != "" {
				fmt.Fprintf(&b, "Analysis: %s\n", util.Truncate(f.Analysis, 150))
			}
			b.WriteString("\n")
		}
		b.WriteString("**I can help you:**\n")
		b.WriteString("• Summarize these documents\n")
		b.WriteString("• Extract key information\n")
		b.WriteString("• Create study questions from the content\n")
		b.WriteString("• Compare multiple documents\n\n")
	}

	if len(notes) > 0 {
		fmt.Fprintf(&b, "**I see %d note(s):**\n\n", len(notes))
		for i, n := range notes {
			fmt.Fprintf(&b, "**Note %d: %s**\n", i+1, orDefault(n.Title, "Untitled Note"))
			words := len(strings.Split(n.Content, " "))
			lines := len(strings.Split(n.Content, "\n"))
			fmt.Fprintf(&b, "• Words: %d, Lines: %d\n", words, lines)

			lower := strings.ToLower(n.Content)
			if strings.Contains(lower, "homework") || strings.Contains(lower, "assignment") {
				b.WriteString("• This looks like homework/assignment notes\n")
			}
			if strings.Contains(lower, "study") || strings.Contains(lower, "review") {
				b.WriteString("• Study material detected\n")
			}
			b.WriteString("\n")
		}
		b.WriteString("**I can help you:**\n")
		b.WriteString("• Organize these notes\n")
		b.WriteString("• Create study questions\n")
		b.WriteString("• Summarize key points\n")
		b.WriteString("• Create flashcards\n\n")
	}

	b.WriteString("**Example Study Assistance:**\n")
	b.WriteString("1. **Break down complex topics** into manageable parts\n")
	b.WriteString("2. **Create a study schedule** based on your material\n")
	b.WriteString("3. **Practice questions** to test your understanding\n")
	b.WriteString("4. **Memory techniques** like spaced repetition\n")
	b.WriteString("5. **Exam preparation** strategies\n\n")

	if !connected {
		b.WriteString(OfflineFooter)
	}
	return b.String()
}

// =============================================================================
// MOCK AND FALLBACK ANALYSES
// =============================================================================

// MockAnalysis stands in for a backend analysis while not connected.
func MockAnalysis(a model.Attachment) Analysis {
	if a.IsImage() {
		name := orDefault(a.Name, "Untitled Image")
		return Analysis{
			Analysis: fmt.Sprintf("[Mock Analysis] Image: %s\n\nI can see this is an image. "+
				"When connected to the backend with vision support, I can analyze images in detail, "+
				"read text from images, and describe visual content.", name),
			Text:     "Image file: " + name,
			MimeType: a.MimeType,
			FileName: a.Name,
			FileSize: a.Size,
		}
	}
	name := orDefault(a.Name, "Untitled Document")
	return Analysis{
		Analysis: fmt.Sprintf("[Mock Analysis] Document: %s\n\nI can see this is a document file. "+
			"When connected to the backend, I can read and analyze PDFs, Word documents, text files, "+
			"and extract text content for study assistance.", name),
		Text:     "Document file: " + name,
		MimeType: a.MimeType,
		FileName: a.Name,
		FileSize: a.Size,
	}
}

// FallbackAnalysis replaces an analysis that failed with err.
func FallbackAnalysis(a model.Attachment, err error) Analysis {
	detail := "unknown error"
	if err != nil {
		detail = util.Truncate(err.Error(), 200)
	}

	var b strings.Builder
	if a.IsImage() {
		name := orDefault(a.Name, "Untitled Image")
		fmt.Fprintf(&b, "**Image Analysis**\n\nFile: %s\n\n", name)
		b.WriteString("I encountered an error analyzing this image. Here's what I can still help with:\n\n")
		b.WriteString("• Describe the file type and size\n")
		b.WriteString("• Help with general image-related questions\n")
		b.WriteString("• Provide study tips for visual materials\n\n")
		fmt.Fprintf(&b, "*Error details: %s*", detail)
		return Analysis{
			Analysis: b.String(),
			Text:     fmt.Sprintf("Image file: %s (Analysis failed)", name),
			MimeType: a.MimeType,
			FileName: a.Name,
			FileSize: a.Size,
		}
	}

	name := orDefault(a.Name, "Untitled Document")
	fmt.Fprintf(&b, "**Document Analysis**\n\nFile: %s\nType: %s\nSize: %s\n\n",
		name, orDefault(a.MimeType, "Unknown"), sizeLabel(a.Size))
	b.WriteString("I encountered an error analyzing this document. Here's what I can still help with:\n\n")
	b.WriteString("• Document organization tips\n")
	b.WriteString("• Study strategies for this file type\n")
	b.WriteString("• How to extract text manually\n\n")
	fmt.Fprintf(&b, "*Error details: %s*", detail)
	return Analysis{
		Analysis: b.String(),
		Text:     fmt.Sprintf("Document file: %s (Analysis failed)", name),
		MimeType: a.MimeType,
		FileName: a.Name,
		FileSize: a.Size,
	}
}

func kindLabel(a model.Attachment) string {
	if a.IsImage() {
		return "Image"
	}
	return "Document"
}

func sizeLabel(n int64) string {
	if n <= 0 {
		return "Unknown"
	}
	return humanize.Bytes(uint64(n))
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
