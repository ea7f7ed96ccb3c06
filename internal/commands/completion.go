// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// maxFileCompletions limits path suggestions.
const maxFileCompletions = 20

// Completion is one suggestion.
type Completion struct {
	Value       string
	Display     string
	Description string
	Score       int
}

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// NotesFn returns saved note titles.
	NotesFn func() []string

	// ChatsFn returns chat IDs, newest first.
	ChatsFn func() []string
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns completions for input. Non-command input has none.
func (c *Completer) Complete(input string) []Completion {
	if !strings.HasPrefix(strings.TrimLeft(input, " "), "/") {
		return nil
	}

	trailing := strings.HasSuffix(input, " ")
	parts := Tokenize(input)
	if len(parts) == 0 {
		return c.completeCommands("/")
	}
	if len(parts) == 1 && !trailing {
		return c.completeCommands(parts[0])
	}

	cmd := c.registry.Get(parts[0])
	if cmd == nil {
		return nil
	}
	argIndex := len(parts) - 2
	partial := parts[len(parts)-1]
	if trailing {
		argIndex++
		partial = ""
	}
	return c.completeArg(cmd, argIndex, partial)
}

func (c *Completer) completeCommands(partial string) []Completion {
	partial = strings.ToLower(partial)
	var out []Completion
	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}
		if strings.HasPrefix(cmd.Name, partial) {
			out = append(out, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}
		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(alias, partial) && partial != "/" {
				out = append(out, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}
	sortCompletions(out)
	return out
}

func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}
	arg := cmd.Args[argIndex]
	switch arg.Type {
	case ArgTypeFile:
		return completeFiles(partial)
	case ArgTypeEnum:
		return completeFromList(arg.Values, partial)
	case ArgTypeNote:
		if c.NotesFn != nil {
			return completeFromList(c.NotesFn(), partial)
		}
	case ArgTypeChat:
		if c.ChatsFn != nil {
			return completeFromList(c.ChatsFn(), partial)
		}
	}
	return nil
}

func completeFromList(values []string, partial string) []Completion {
	partial = strings.ToLower(partial)
	var out []Completion
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), partial) {
			out = append(out, Completion{Value: v, Display: v, Score: calculateScore(v, partial)})
		}
	}
	sortCompletions(out)
	return out
}

func completeFiles(partial string) []Completion {
	dir, prefix := filepath.Dir(partial), filepath.Base(partial)
	switch {
	case partial == "":
		dir, prefix = ".", ""
	case strings.HasSuffix(partial, string(os.PathSeparator)):
		dir, prefix = partial, ""
	}

	entries, err := os.ReadDir(expandHome(dir))
	if err != nil {
		return nil
	}

	prefix = strings.ToLower(prefix)
	var out []Completion
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(strings.ToLower(name), prefix) {
			continue
		}
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		score := calculateScore(name, prefix)
		desc := "directory"
		if entry.IsDir() {
			path += string(os.PathSeparator)
			score += 5
		} else if fi, err := entry.Info(); err == nil {
			desc = humanize.Bytes(uint64(fi.Size()))
		}
		out = append(out, Completion{Value: path, Display: name, Description: desc, Score: score})
	}
	sortCompletions(out)
	if len(out) > maxFileCompletions {
		out = out[:maxFileCompletions]
	}
	return out
}

// calculateScore prefers exact and short matches.
func calculateScore(value, partial string) int {
	if strings.EqualFold(value, partial) {
		return 100
	}
	return 50 - (len(value) - len(partial))
}

func sortCompletions(c []Completion) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Value < c[j].Value
	})
}

// =============================================================================
// COMPLETION NAVIGATION
// =============================================================================

// CompletionState cycles through completions on repeated Tab presses.
type CompletionState struct {
	Completions []Completion
	Selected    int
	Visible     bool
}

// Update replaces the completions and selects the first.
func (cs *CompletionState) Update(completions []Completion) {
	cs.Completions = completions
	cs.Selected = 0
	cs.Visible = len(completions) > 0
}

// Next moves to the next completion.
func (cs *CompletionState) Next() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected = (cs.Selected + 1) % len(cs.Completions)
}

// Accept returns the selected completion value, or "" when there is none.
func (cs *CompletionState) Accept() string {
	if cs.Selected < 0 || cs.Selected >= len(cs.Completions) {
		return ""
	}
	return cs.Completions[cs.Selected].Value
}

// Clear drops the completions.
func (cs *CompletionState) Clear() {
	*cs = CompletionState{}
}

// ApplyCompletion replaces the last word of input with value.
func ApplyCompletion(input, value string) string {
	if strings.HasSuffix(input, " ") {
		return input + value
	}
	i := strings.LastIndexByte(input, ' ')
	out := input[:i+1] + value
	if !strings.HasSuffix(value, string(os.PathSeparator)) {
		out += " "
	}
	return out
}
