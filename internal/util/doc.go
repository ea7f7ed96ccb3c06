// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across edutrack packages.
//
// # Key Functions
//
// String Utilities:
//   - Truncate: rune-safe cut with a "..." suffix (titles, previews, prompt context)
//   - TruncateWidth: display-width aware cut for terminal columns
//   - FirstWords: leading words of a text
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.Truncate(text, 30)
//	err := util.AtomicWriteFile(path, data, 0o600)
package util
