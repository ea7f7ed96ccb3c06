// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package delivery drives each outgoing message through its delivery
// lifecycle: composed, sending, then delivered or failed, with retry only
// on request.
//
// The Controller decides per send whether to await the reply in the
// foreground or hand it to the background registry, analyses attached
// files before the chat call, and resurfaces background replies when the
// user comes back. Transport errors never leave the controller; they mark
// the message failed and are reported through the UI.
package delivery
