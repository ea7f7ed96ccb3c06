// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/efgfdsdfdf/edutrack/internal/app"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdChats
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command's name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdChats:
		return "chats"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Overrides app.Overrides
	Quiet     bool
	JSON      bool

	// ask
	Query string
	Files []string
	Join  bool

	// Subcommand and the arguments after it, for chats and config.
	Subcommand string
	Raw        []string
}

const usageText = `edutrack - a study assistant chat in your terminal

Usage:
  edutrack                        Start the full-screen chat (default)
  edutrack chat                   Line-mode chat with history and slash commands
  edutrack ask "question"         Ask one question and print the reply
    -f, --file PATH               Attach a file or photo (repeatable)
    --join                        Send several files as one combined document
  edutrack chats [list]           List saved chats (alias: sessions)
  edutrack chats show <n|id>      Print a chat transcript
  edutrack chats export <n|id>    Save a chat to a file
    --format md|json              File format (default md)
    --out DIR                     Output directory (default .)
  edutrack chats delete <n|id>    Delete a chat
    -y, --yes                     Do not ask for confirmation
  edutrack status, s              Probe the backend and show the connection state
  edutrack config [show]          Show the effective configuration
  edutrack config path            Print the config file location
  edutrack config init [--force]  Write a default config file
  edutrack config get <key>       Print one setting
  edutrack config set <key> <v>   Change one setting and save
  edutrack config keys            List setting names
  edutrack version                Show version information

Global Flags:
  --config PATH     Read configuration from PATH
  --user NAME       Chat as NAME
  --backend URL     Backend base URL
  --store KIND      Storage backend: sqlite, bolt, redis or memory
  --no-background   Never move sends to the background
  --mock            Do not contact the backend; answer with mock replies
  --json            Machine-readable output (status, chats list)
  -q, --quiet       Minimal output
  -v, --verbose     Debug logging

Examples:
  edutrack --user sam                         Open sam's chats
  edutrack ask "Explain osmosis simply"       One-shot question
  edutrack ask -f notes.pdf "Quiz me on this"  Ask about a document
  edutrack chats show 1                       Print the newest chat
  edutrack --mock chat                        Try it without a backend

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "edutrack version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses command-line arguments (without the program name).
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}
	if len(remaining) == 0 {
		return CmdTUI, args, nil
	}

	name := strings.ToLower(remaining[0])
	rest := remaining[1:]
	args.Raw = rest

	switch name {
	case "tui":
		return CmdTUI, args, nil
	case "chat", "repl":
		return CmdChat, args, nil
	case "ask":
		if err := parseAskArgs(&args, rest); err != nil {
			return CmdAsk, args, err
		}
		return CmdAsk, args, nil
	case "chats", "sessions", "session":
		args.Subcommand = subcommandOr(rest, "list")
		return CmdChats, args, nil
	case "status", "s":
		return CmdStatus, args, nil
	case "config":
		args.Subcommand = subcommandOr(rest, "show")
		return CmdConfig, args, nil
	case "version":
		return CmdVersion, args, nil
	case "help":
		return CmdHelp, args, nil
	}
	return CmdHelp, args, &UnknownCommandError{Name: name, Suggestion: SuggestCommand(name)}
}

func subcommandOr(rest []string, def string) string {
	if len(rest) == 0 || strings.HasPrefix(rest[0], "-") {
		return def
	}
	return strings.ToLower(rest[0])
}

// parseGlobalFlags removes the global flags from argv. A lone "--" ends
// flag parsing.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var (
		args      Args
		remaining []string
	)

	value := func(i *int, flag string) (string, error) {
		if name, v, ok := strings.Cut(argv[*i], "="); ok && strings.HasPrefix(name, "--") {
			return v, nil
		}
		if *i+1 >= len(argv) {
			return "", &UsageError{Message: flag + " requires a value"}
		}
		*i++
		return argv[*i], nil
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, _, _ := strings.Cut(arg, "=")
		var err error

		switch name {
		case "--":
			remaining = append(remaining, argv[i:]...)
			return remaining, args, nil
		case "--config":
			args.Overrides.ConfigPath, err = value(&i, name)
		case "--user":
			args.Overrides.User, err = value(&i, name)
		case "--backend":
			args.Overrides.BackendURL, err = value(&i, name)
		case "--store":
			args.Overrides.StoreKind, err = value(&i, name)
		case "--no-background":
			args.Overrides.NoBackground = true
		case "--mock":
			args.Overrides.Mock = true
		case "-v", "--verbose":
			args.Overrides.Verbose = true
		case "-q", "--quiet":
			args.Quiet = true
		case "--json":
			args.JSON = true
		case "-h", "--help":
			return []string{"help"}, args, nil
		case "--version":
			return []string{"version"}, args, nil
		default:
			remaining = append(remaining, arg)
		}
		if err != nil {
			return nil, args, err
		}
	}
	return remaining, args, nil
}

// parseAskArgs collects the question and attachments of ask.
func parseAskArgs(args *Args, rest []string) error {
	var words []string
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "--":
			words = append(words, rest[i+1:]...)
			i = len(rest)
		case arg == "-f" || arg == "--file":
			if i+1 >= len(rest) {
				return &UsageError{Message: arg + " requires a path"}
			}
			i++
			args.Files = append(args.Files, rest[i])
		case strings.HasPrefix(arg, "--file="):
			args.Files = append(args.Files, strings.TrimPrefix(arg, "--file="))
		case arg == "--join":
			args.Join = true
		default:
			words = append(words, arg)
		}
	}
	args.Query = strings.TrimSpace(strings.Join(words, " "))
	if args.Query == "" && len(args.Files) == 0 {
		return &UsageError{Message: `ask needs a question, e.g. edutrack ask "what is osmosis"`}
	}
	return nil
}
