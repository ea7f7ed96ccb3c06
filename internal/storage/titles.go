// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

type topic struct {
	name     string
	keywords []string
}

// Checked in order; the first topic with a matching keyword wins.
var topics = []topic{
	{"math", []string{"calculate", "equation", "algebra", "calculus", "geometry", "math", "statistics"}},
	{"science", []string{"science", "physics", "chemistry", "biology", "experiment", "theory"}},
	{"programming", []string{"code", "programming", "javascript", "python", "html", "css", "function", "algorithm"}},
	{"history", []string{"history", "historical", "war", "event", "century"}},
	{"language", []string{"translate", "language", "grammar", "vocabulary", "english", "spanish"}},
	{"homework", []string{"homework", "assignment", "project", "due", "essay", "paper"}},
	{"study", []string{"study", "learn", "review", "prepare", "exam", "test", "quiz"}},
	{"notes", []string{"note", "notes", "summary", "review notes", "study notes", "lecture notes"}},
	{"document", []string{"document", "pdf", "doc", "docx", "file", "image", "photo", "scan", "screenshot"}},
}

var titleCaser = cases.Title(language.English)

// GenerateTitle names a chat after its first user message: "Study: <Topic>"
// when a topic keyword appears (substring match, as typed), otherwise the
// first five words cut to 30 characters.
func GenerateTitle(msgs []model.Message) string {
	first := ""
	found := false
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			first = m.Content
			found = true
			break
		}
	}
	if !found {
		return "Study Session"
	}

	lower := strings.ToLower(first)
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return "Study: " + titleCaser.String(t.name)
			}
		}
	}

	title := util.Truncate(util.FirstWords(first, 5), 30)
	if title == "" {
		return "Study Session"
	}
	return title
}

// IsDefaultTitle reports whether title is a placeholder that Save replaces.
func IsDefaultTitle(title string) bool {
	return title == "" || title == "New Chat" || title == "Loading..." || strings.HasPrefix(title, "Chat ")
}
