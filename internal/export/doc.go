// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved chats to files a student can keep or share.
//
// # Formats
//
//   - Markdown: YAML front matter, one section per message, attachments
//     listed under the message that carried them
//   - JSON: the chat summary and its messages as stored
//
// # Usage
//
//	t := export.Transcript{Chat: summary, User: "alice", Messages: msgs}
//	path, err := export.ToFile(t, export.NewMarkdownExporter(nil), nil)
//
// Files are written atomically with owner-only permissions, since chats
// may hold personal notes.
package export
