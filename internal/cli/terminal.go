// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Width limits for line-mode output.
const (
	DefaultTerminalWidth = 80
	MinTerminalWidth     = 40
)

// Terminal is what the process's standard streams support.
type Terminal struct {
	StdinTTY  bool
	StdoutTTY bool
	Dumb      bool
	Profile   termenv.Profile
}

var (
	detected   Terminal
	detectOnce sync.Once
)

// DetectTerminal inspects the standard streams once. NO_COLOR turns
// colors off, FORCE_COLOR turns them on for pipes, and TERM=dumb
// disables animation.
func DetectTerminal() Terminal {
	detectOnce.Do(func() {
		detected = Terminal{
			StdinTTY:  term.IsTerminal(int(os.Stdin.Fd())),
			StdoutTTY: term.IsTerminal(int(os.Stdout.Fd())),
			Dumb:      os.Getenv("TERM") == "dumb",
		}
		switch {
		case os.Getenv("NO_COLOR") != "":
			detected.Profile = termenv.Ascii
		case os.Getenv("FORCE_COLOR") != "" || detected.StdoutTTY:
			detected.Profile = termenv.ColorProfile()
		default:
			detected.Profile = termenv.Ascii
		}
	})
	return detected
}

// CanPrompt reports whether questions can be asked on stdin.
func CanPrompt() bool {
	return DetectTerminal().StdinTTY
}

// CanAnimate reports whether replies can be typed out on stdout.
func CanAnimate() bool {
	t := DetectTerminal()
	return t.StdoutTTY && !t.Dumb
}

// GetColorProfile is the color profile CLI output renders with.
func GetColorProfile() termenv.Profile {
	return DetectTerminal().Profile
}

// GetTerminalWidth is the current stdout width, at least MinTerminalWidth,
// or DefaultTerminalWidth when stdout is not a terminal.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return max(width, MinTerminalWidth)
}
