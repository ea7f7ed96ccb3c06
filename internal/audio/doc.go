// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audio defines the speech capture capability used for dictation
// and the silence-based auto-send built on top of it.
//
// No capture backend ships with the client; terminals without one use
// Unavailable.
package audio
