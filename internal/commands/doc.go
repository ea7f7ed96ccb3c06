// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash commands shared by the TUI and the
// line chat.
//
// # Key Types
//
//   - Registry: every command, looked up by name or alias
//   - Env: the app and the staged attachments a command acts on
//   - Result: what the front end should show or do afterwards
//   - Completer: tab completion for command names and arguments
//
// # Usage
//
//	reg := commands.NewRegistry()
//	res, err := reg.Execute(ctx, env, "/retry 3")
//
// Message numbers typed by the user are 1-based.
package commands
