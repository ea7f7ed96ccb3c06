// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app builds the delivery engine from a configuration and owns the
// lifetime of everything it opens.
//
// Both front ends use it: the Bubble Tea TUI and the line-mode REPL create
// an App, attach their delivery.UI and delivery.Renderer, call Start, and
// call Close on exit so in-flight background sends are recorded for the
// next run.
package app
