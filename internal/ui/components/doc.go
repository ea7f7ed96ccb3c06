// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable pieces of the edutrack TUI: the
// header, toasts, the chat list overlay and the code-block viewer.
//
// Components hold plain state and render with a styles.Theme. The chat
// model owns them and routes keys to whichever overlay is open.
package components
