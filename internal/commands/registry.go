// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/efgfdsdfdf/edutrack/internal/app"
	"github.com/efgfdsdfdf/edutrack/internal/delivery"
	"github.com/efgfdsdfdf/edutrack/internal/model"
	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/retry [n]")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler is the function that executes the command
	Handler Handler

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// Handler executes a parsed command.
type Handler func(ctx context.Context, env *Env, p ParseResult) (Result, error)

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString  ArgType = iota // Free-form string
	ArgTypeFile                   // File path
	ArgTypeEnum                   // One of predefined values
	ArgTypeNote                   // Saved note title
	ArgTypeChat                   // Chat number or ID
	ArgTypeMessage                // 1-based message number
)

// =============================================================================
// ENVIRONMENT AND RESULT
// =============================================================================

// Env is what a command acts on.
type Env struct {
	App    *app.App
	Staged *Staging
}

// Result tells the front end what to show after a command ran.
type Result struct {
	// Message is shown as a toast or printed line.
	Message string
	Level   delivery.ToastLevel

	// Quit asks the front end to exit.
	Quit bool

	// Help asks for the command reference.
	Help bool

	// Chats and Notes are listings to display.
	Chats []model.ChatSummary
	Notes []model.Note

	// Reloaded is set when the open chat was replaced.
	Reloaded bool

	// Listening is set when dictation started.
	Listening bool
}

func info(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...), Level: delivery.ToastInfo}
}

func success(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...), Level: delivery.ToastSuccess}
}

func warning(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...), Level: delivery.ToastWarning}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotCommand is returned by Execute for input without a leading slash.
var ErrNotCommand = errors.New("not a command")

// UnknownCommandError names a command that is not registered.
type UnknownCommandError struct {
	Name       string
	Suggestion string
}

func (e *UnknownCommandError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown command %s (did you mean %s?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown command %s, type /help for a list", e.Name)
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias, ignoring case.
func (r *Registry) Get(name string) *Command {
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns the visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Categories lists the help sections in display order.
var Categories = []string{"Chat", "Attachments", "Chats", "Settings", "General"}

// HelpText renders the command reference.
func (r *Registry) HelpText() string {
	groups := r.ByCategory()
	var b strings.Builder
	for _, cat := range Categories {
		cmds := groups[cat]
		if len(cmds) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s\n", cat)
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			fmt.Fprintf(&b, "  %-28s %s\n", usage, cmd.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Execute parses input and runs the matching command.
func (r *Registry) Execute(ctx context.Context, env *Env, input string) (Result, error) {
	p, ok := r.Parse(input)
	if !ok {
		return Result{}, ErrNotCommand
	}
	if p.Command == nil {
		return Result{}, &UnknownCommandError{Name: p.Name, Suggestion: r.suggest(p.Name)}
	}
	if err := ValidateArgs(p.Command, p.Args); err != nil {
		return Result{}, err
	}
	return p.Command.Handler(ctx, env, p)
}

func (r *Registry) suggest(name string) string {
	names := make([]string, 0, len(r.commands)+len(r.aliases))
	for n := range r.commands {
		names = append(names, n)
	}
	for n := range r.aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	if s := util.Suggest(name, names); s != "" {
		return r.Get(s).Name
	}
	return ""
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	onOff := []string{"on", "off"}

	// Chat
	r.Register(&Command{
		Name:        "/retry",
		Aliases:     []string{"/r"},
		Description: "Resend a failed message (default: the last one)",
		Usage:       "/retry [n]",
		Args:        []ArgDef{{Name: "n", Type: ArgTypeMessage, Description: "message number"}},
		Category:    "Chat",
		Handler:     handleRetry,
	})
	r.Register(&Command{
		Name:        "/edit",
		Aliases:     []string{"/e"},
		Description: "Replace one of your messages and resend it",
		Usage:       "/edit <n> <text>",
		Args: []ArgDef{
			{Name: "n", Required: true, Type: ArgTypeMessage, Description: "message number"},
			{Name: "text", Required: true, Type: ArgTypeString, Description: "new text"},
		},
		Category: "Chat",
		Handler:  handleEdit,
	})
	r.Register(&Command{
		Name:        "/show",
		Description: "Show replies that finished in the background",
		Usage:       "/show [n]",
		Args:        []ArgDef{{Name: "n", Type: ArgTypeMessage, Description: "message number"}},
		Category:    "Chat",
		Handler:     handleShow,
	})
	r.Register(&Command{
		Name:        "/mic",
		Aliases:     []string{"/dictate"},
		Description: "Dictate a message",
		Category:    "Chat",
		Handler:     handleMic,
	})

	// Attachments
	r.Register(&Command{
		Name:        "/attach",
		Aliases:     []string{"/a", "/file"},
		Description: "Stage a file for the next message",
		Usage:       "/attach <path> [description]",
		Args: []ArgDef{
			{Name: "path", Required: true, Type: ArgTypeFile, Description: "file to attach"},
			{Name: "description", Type: ArgTypeString, Description: "what the file is"},
		},
		Category: "Attachments",
		Handler:  handleAttach(model.KindFile),
	})
	r.Register(&Command{
		Name:        "/photo",
		Aliases:     []string{"/image"},
		Description: "Stage a photo for the next message",
		Usage:       "/photo <path> [description]",
		Args: []ArgDef{
			{Name: "path", Required: true, Type: ArgTypeFile, Description: "image to attach"},
			{Name: "description", Type: ArgTypeString, Description: "what the photo shows"},
		},
		Category: "Attachments",
		Handler:  handleAttach(model.KindPhoto),
	})
	r.Register(&Command{
		Name:        "/note",
		Description: "Stage a saved note for the next message",
		Usage:       "/note <title>",
		Args:        []ArgDef{{Name: "title", Required: true, Type: ArgTypeNote, Description: "note title"}},
		Category:    "Attachments",
		Handler:     handleNote,
	})
	r.Register(&Command{
		Name:        "/notes",
		Description: "List saved notes",
		Category:    "Attachments",
		Handler:     handleNotes,
	})
	r.Register(&Command{
		Name:        "/savenote",
		Description: "Save a study note",
		Usage:       "/savenote <title> <text>",
		Args: []ArgDef{
			{Name: "title", Required: true, Type: ArgTypeString, Description: "note title"},
			{Name: "text", Required: true, Type: ArgTypeString, Description: "note content"},
		},
		Category: "Attachments",
		Handler:  handleSaveNote,
	})
	r.Register(&Command{
		Name:        "/detach",
		Description: "Drop the staged attachments",
		Category:    "Attachments",
		Handler:     handleDetach,
	})

	// Chats
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new chat",
		Category:    "Chats",
		Handler:     handleNew,
	})
	r.Register(&Command{
		Name:        "/chats",
		Aliases:     []string{"/list"},
		Description: "List saved chats",
		Category:    "Chats",
		Handler:     handleChats,
	})
	r.Register(&Command{
		Name:        "/load",
		Aliases:     []string{"/open"},
		Description: "Open a saved chat",
		Usage:       "/load <n|id>",
		Args:        []ArgDef{{Name: "chat", Required: true, Type: ArgTypeChat, Description: "chat number or ID"}},
		Category:    "Chats",
		Handler:     handleLoad,
	})
	r.Register(&Command{
		Name:        "/delete",
		Aliases:     []string{"/rm"},
		Description: "Delete a saved chat",
		Usage:       "/delete <n|id>",
		Args:        []ArgDef{{Name: "chat", Required: true, Type: ArgTypeChat, Description: "chat number or ID"}},
		Category:    "Chats",
		Handler:     handleDelete,
	})
	r.Register(&Command{
		Name:        "/export",
		Description: "Save the open chat as Markdown or JSON",
		Usage:       "/export [md|json] [dir]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: []string{"md", "json"}, Description: "file format"},
			{Name: "dir", Type: ArgTypeFile, Description: "output directory"},
		},
		Category: "Chats",
		Handler:  handleExport,
	})

	// Settings
	r.Register(&Command{
		Name:        "/web",
		Description: "Toggle web search",
		Usage:       "/web [on|off]",
		Args:        []ArgDef{{Name: "state", Type: ArgTypeEnum, Values: onOff, Description: "on or off"}},
		Category:    "Settings",
		Handler:     handleWeb,
	})
	r.Register(&Command{
		Name:        "/background",
		Aliases:     []string{"/bg"},
		Description: "Toggle background processing",
		Usage:       "/background [on|off]",
		Args:        []ArgDef{{Name: "state", Type: ArgTypeEnum, Values: onOff, Description: "on or off"}},
		Category:    "Settings",
		Handler:     handleBackground,
	})
	r.Register(&Command{
		Name:        "/connect",
		Aliases:     []string{"/reconnect"},
		Description: "Check the backend connection now",
		Category:    "Settings",
		Handler:     handleConnect,
	})
	r.Register(&Command{
		Name:        "/status",
		Description: "Show connection, toggles and pending sends",
		Category:    "Settings",
		Handler:     handleStatus,
	})

	// General
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show available commands",
		Category:    "General",
		Handler: func(context.Context, *Env, ParseResult) (Result, error) {
			return Result{Help: true, Message: r.HelpText()}, nil
		},
	})
	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit edutrack",
		Category:    "General",
		Handler: func(context.Context, *Env, ParseResult) (Result, error) {
			return Result{Quit: true}, nil
		},
	})
}
