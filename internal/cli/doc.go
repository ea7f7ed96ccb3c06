// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the edutrack command line and runs its commands.
//
// Commands:
//
//	edutrack                 full-screen chat (default)
//	edutrack chat            line-mode chat with history
//	edutrack ask "question"  one foreground question, reply on stdout
//	edutrack chats ...       list, show, export or delete saved chats
//	edutrack status          probe the backend and print the connection state
//	edutrack config ...      show, locate, create or edit the config file
//	edutrack version         print version information
//
// Every command builds the same engine through app.New, so line mode and
// the TUI share storage, delivery and background processing.
package cli
