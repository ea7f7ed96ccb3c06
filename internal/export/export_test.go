// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efgfdsdfdf/edutrack/internal/model"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testOptions(dir string) *Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func testTranscript() Transcript {
	question := model.NewUserMessage("alice", "What is osmosis?", []model.Attachment{
		{ID: "a1", Kind: model.KindFile, Name: "biology.pdf", MimeType: "application/pdf", Size: 2048},
		{ID: "a2", Kind: model.KindNote, Title: "Cell notes", Content: "membranes"},
	})
	question.CreatedAt = fixedNow.Add(-time.Minute)
	reply := model.NewAssistantMessage("Osmosis is the movement of water.\n\n```go\nfmt.Println(1)\n```")
	reply.CreatedAt = fixedNow
	failed := model.NewUserMessage("alice", "and diffusion?", nil)
	failed.Failed = true
	failed.State = model.StateFailed

	return Transcript{
		Chat:     model.ChatSummary{ID: "alice_1", Title: "Osmosis: basics", Timestamp: fixedNow, MessageCount: 3, UserID: "alice"},
		User:     "alice",
		Messages: []model.Message{question, reply, failed},
	}
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions(t.TempDir())).Export(testTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: \"Osmosis: basics\"\n"))
	assert.Contains(t, md, "# Osmosis: basics")
	assert.Contains(t, md, "### [You] <sub>09:25:53</sub>")
	assert.Contains(t, md, "### [Assistant] <sub>09:26:53</sub>")
	assert.Contains(t, md, "```go\nfmt.Println(1)\n```")
	assert.Contains(t, md, "- File: `biology.pdf` (2.0 kB)")
	assert.Contains(t, md, "- Note: Cell notes")
	assert.Contains(t, md, "<sub>Not delivered</sub>")
	assert.Contains(t, md, "*Exported from edutrack on March 14, 2025 at 9:26 AM*")
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	out, err := NewMarkdownExporter(opts).Export(testTranscript())
	require.NoError(t, err)
	md := string(out)
	assert.True(t, strings.HasPrefix(md, "# Osmosis: basics"))
	assert.NotContains(t, md, "Chat Information")
	assert.Contains(t, md, "### [You]\n")
}

func TestJSONExportRoundTrips(t *testing.T) {
	tr := testTranscript()
	out, err := NewJSONExporter(nil).Export(tr)
	require.NoError(t, err)

	var back Transcript
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, tr.Chat.ID, back.Chat.ID)
	require.Len(t, back.Messages, 3)
	assert.Equal(t, tr.Messages[0].Attachments[0].Name, back.Messages[0].Attachments[0].Name)
	assert.True(t, back.Messages[2].Failed)
}

func TestEmptyChatIsRefused(t *testing.T) {
	tr := testTranscript()
	tr.Messages = nil
	for _, e := range []Exporter{NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		_, err := e.Export(tr)
		assert.ErrorIs(t, err, ErrEmptyChat)
	}
	_, err := ToFile(tr, NewMarkdownExporter(nil), testOptions(t.TempDir()))
	assert.ErrorIs(t, err, ErrEmptyChat)
}

func TestToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	opts := testOptions(dir)

	path, err := ToFile(testTranscript(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "edutrack_Osmosis-_basics_20250314_092653.md"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewByFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", ".md"},
		{"md", ".md"},
		{"Markdown", ".md"},
		{"json", ".json"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			e, err := New(tt.format, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, e.FileExtension())
		})
	}

	_, err := New("pdf", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Chat 10:42", "Chat_10-42"},
		{"a/b\\c?", "a-b-c-"},
		{"", "chat"},
		{"   ", "chat"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}
