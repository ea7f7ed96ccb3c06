// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt builds the message list sent with each chat request: the
// system prompt, a bounded window of recent history and the new user text
// with its attachment, notes and web-search context.
package prompt
