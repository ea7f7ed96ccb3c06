// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package presence tracks whether the user is looking at the client and
// has interacted with it recently.
//
// The terminal stands in for a browser tab: focus reporting drives
// visibility and key presses count as activity. A user is active while
// the client is visible and the last activity is within the activity
// window (30s by default). The tracker also keeps the dirty flag used to
// auto-save the chat and provides the Bubble Tea tick that drives it.
package presence
