// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat screen.
//
// The Model draws the open chat and routes keys. Every call into the
// delivery controller runs inside a tea.Cmd so the controller can call back
// through the Bridge, which turns delivery.UI hooks into messages for the
// program. Replies are typed into the viewport by the Typer.
//
// Terminal focus reporting stands in for page visibility: blur pauses
// typing and marks the user away, focus resumes typing, probes the backend
// and surfaces replies that finished in the background.
package chat
