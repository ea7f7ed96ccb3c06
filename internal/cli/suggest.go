// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// validCommands is the list of all valid edutrack commands.
// This includes primary commands and their aliases.
var validCommands = []string{
	// Primary commands
	"tui",
	"chat",
	"ask",
	"chats",
	"status",
	"config",
	"version",
	"help",
	// Aliases
	"repl",     // chat
	"sessions", // chats
	"session",  // chats
	"s",        // status
}

// SuggestCommand returns the command the user probably meant, or "".
func SuggestCommand(input string) string {
	return util.Suggest(input, validCommands)
}
